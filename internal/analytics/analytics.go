package analytics

import (
	"encoding/json"
	"fmt"
	"time"

	"transparency-probe/internal/storage"
)

// DailyStats aggregates one UTC day of the event log.
type DailyStats struct {
	Date             string         `json:"date"`
	TotalEvents      int            `json:"total_events"`
	UniqueSessions   int            `json:"unique_sessions"`
	EventsByType     map[string]int `json:"events_by_type"`
	Questions        int            `json:"questions"`
	AnswersOK        int            `json:"answers_ok"`
	AnswersFailed    int            `json:"answers_failed"`
	SliderChanges    int            `json:"slider_changes"`
	MeanTransparency float64        `json:"mean_transparency"`
}

// Event names emitted by the browser client.
const (
	EventSliderChange      = "slider_change"
	EventQuestionSubmitted = "question_submitted"
	EventAnswerOK          = "answer_ok"
	EventAnswerError       = "answer_error"
)

// AnalyzeDailyEvents reduces the event log to stats for the day containing
// targetDate (UTC).
func AnalyzeDailyEvents(events []storage.EventRecord, targetDate time.Time) *DailyStats {
	targetDate = targetDate.UTC()
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, time.UTC)
	endOfDay := startOfDay.Add(24 * time.Hour)

	stats := &DailyStats{
		Date:         startOfDay.Format("2006-01-02"),
		EventsByType: make(map[string]int),
	}

	uniqueSessions := make(map[string]bool)
	var transparencySum float64
	var transparencyCount int

	for _, event := range events {
		ts := event.Timestamp.UTC()
		if ts.Before(startOfDay) || !ts.Before(endOfDay) {
			continue
		}

		stats.TotalEvents++
		stats.EventsByType[event.Event]++
		if event.SessionID != "" {
			uniqueSessions[event.SessionID] = true
		}

		switch event.Event {
		case EventQuestionSubmitted:
			stats.Questions++
			if event.Transparency != nil {
				transparencySum += *event.Transparency
				transparencyCount++
			}
		case EventAnswerOK:
			stats.AnswersOK++
		case EventAnswerError:
			stats.AnswersFailed++
		case EventSliderChange:
			stats.SliderChanges++
		}
	}

	stats.UniqueSessions = len(uniqueSessions)
	if transparencyCount > 0 {
		stats.MeanTransparency = transparencySum / float64(transparencyCount)
	}
	return stats
}

// GenerateReportSummary renders the stats as an operator-readable text
// block.
func (ds *DailyStats) GenerateReportSummary() string {
	summary := fmt.Sprintf(`Transparency probe usage for %s:

Overall activity:
- Total events: %d
- Unique sessions: %d
- Questions submitted: %d
- Answers ok / failed: %d / %d
- Slider changes: %d
`, ds.Date, ds.TotalEvents, ds.UniqueSessions, ds.Questions, ds.AnswersOK, ds.AnswersFailed, ds.SliderChanges)

	if ds.Questions > 0 {
		summary += fmt.Sprintf("- Mean transparency at question time: %.1f\n", ds.MeanTransparency)
	}
	if len(ds.EventsByType) > 0 {
		summary += "\nEvents by type:\n"
		for name, count := range ds.EventsByType {
			summary += fmt.Sprintf("- %s: %d\n", name, count)
		}
	}
	return summary
}

// ToJSON serializes the stats for the mirror payload.
func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
