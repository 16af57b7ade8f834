// Package storage owns the two append-only CSV logs of the probe: the
// event log (interaction telemetry, no message content) and the QA log
// (full question/answer pairs). Every local append is mirrored best-effort
// to an external destination.
package storage

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"transparency-probe/internal/mirror"
)

var (
	EventHeader = []string{"ts_iso", "session_id", "event", "transparency", "message_len", "ip"}
	QAHeader    = []string{"ts_iso", "session_id", "transparency", "question", "answer"}
)

// EventRecord is one telemetry row. Nil numeric fields serialize as empty
// CSV fields.
type EventRecord struct {
	Timestamp    time.Time
	SessionID    string
	Event        string
	Transparency *float64
	MessageLen   *int
	IP           string
}

// QARecord is one question/answer pair from a successful completion.
type QARecord struct {
	Timestamp    time.Time
	SessionID    string
	Transparency float64
	Question     string
	Answer       string
}

type Logger struct {
	events      *CSVLog
	qa          *CSVLog
	maxFieldLen int
	mirror      mirror.Mirror
}

// NewLogger wires both logs. m may be nil (mirroring disabled).
func NewLogger(eventPath, qaPath string, maxFieldLen int, m mirror.Mirror) (*Logger, error) {
	events, err := NewCSVLog(eventPath, EventHeader)
	if err != nil {
		return nil, fmt.Errorf("event log: %w", err)
	}
	qa, err := NewCSVLog(qaPath, QAHeader)
	if err != nil {
		return nil, fmt.Errorf("qa log: %w", err)
	}
	return &Logger{events: events, qa: qa, maxFieldLen: maxFieldLen, mirror: m}, nil
}

// LogEvent appends one telemetry row, then mirrors it without waiting.
func (lg *Logger) LogEvent(rec EventRecord) error {
	ts := rec.Timestamp.UTC().Format(time.RFC3339)
	row := []string{
		ts,
		rec.SessionID,
		rec.Event,
		formatFloat(rec.Transparency),
		formatInt(rec.MessageLen),
		rec.IP,
	}
	if err := lg.events.Append(row); err != nil {
		return err
	}
	mirror.Dispatch(lg.mirror, mirror.Payload{
		Kind: mirror.KindEvent,
		TS:   ts,
		Row:  row,
		Fields: map[string]string{
			"session_id":   rec.SessionID,
			"event":        rec.Event,
			"transparency": row[3],
			"message_len":  row[4],
			"ip":           rec.IP,
		},
	})
	return nil
}

// LogQA appends one question/answer row with both free-text fields capped,
// then mirrors it without waiting.
func (lg *Logger) LogQA(rec QARecord) error {
	ts := rec.Timestamp.UTC().Format(time.RFC3339)
	tr := rec.Transparency
	question := truncate(rec.Question, lg.maxFieldLen)
	answer := truncate(rec.Answer, lg.maxFieldLen)
	row := []string{
		ts,
		rec.SessionID,
		formatFloat(&tr),
		question,
		answer,
	}
	if err := lg.qa.Append(row); err != nil {
		return err
	}
	mirror.Dispatch(lg.mirror, mirror.Payload{
		Kind: mirror.KindQA,
		TS:   ts,
		Row:  row,
		Fields: map[string]string{
			"session_id":   rec.SessionID,
			"transparency": row[2],
			"question":     question,
			"answer":       answer,
		},
	})
	return nil
}

// WriteEvents streams the event log as a CSV document.
func (lg *Logger) WriteEvents(w io.Writer) error {
	_, err := lg.events.WriteTo(w)
	return err
}

// WriteQA streams the content log as a CSV document.
func (lg *Logger) WriteQA(w io.Writer) error {
	_, err := lg.qa.WriteTo(w)
	return err
}

// LoadEvents parses the event log back into records for reporting. Rows
// with unparseable timestamps are skipped; empty numeric fields load as
// nil.
func (lg *Logger) LoadEvents() ([]EventRecord, error) {
	rows, err := lg.events.ReadRows()
	if err != nil {
		return nil, err
	}
	out := make([]EventRecord, 0, len(rows))
	for _, row := range rows {
		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			continue
		}
		rec := EventRecord{
			Timestamp: ts,
			SessionID: row[1],
			Event:     row[2],
			IP:        row[5],
		}
		if f, err := strconv.ParseFloat(row[3], 64); err == nil {
			rec.Transparency = &f
		}
		if n, err := strconv.Atoi(row[4]); err == nil {
			rec.MessageLen = &n
		}
		out = append(out, rec)
	}
	return out, nil
}

func formatFloat(f *float64) string {
	if f == nil || math.IsNaN(*f) || math.IsInf(*f, 0) {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
