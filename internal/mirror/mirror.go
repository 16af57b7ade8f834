// Package mirror forwards log payloads to an external spreadsheet or
// automation endpoint on a best-effort basis.
package mirror

import (
	"context"
	"log"
	"time"
)

// Payload kinds mirrored by the logger and the daily report.
const (
	KindEvent       = "event"
	KindQA          = "qa"
	KindDailyReport = "daily_report"
)

// Payload is one mirrored row. Row carries the CSV fields in column
// order (what a spreadsheet destination appends); Fields carries the same
// values keyed by column name for JSON consumers.
type Payload struct {
	Kind   string            `json:"kind"`
	TS     string            `json:"ts_iso"`
	Row    []string          `json:"row"`
	Fields map[string]string `json:"fields"`
}

// Mirror delivers a payload to the external destination exactly once; no
// retries, no buffering.
type Mirror interface {
	Send(ctx context.Context, p Payload) error
}

const dispatchTimeout = 10 * time.Second

// Dispatch fires a payload at the mirror from a detached goroutine. The
// caller's request finishes regardless of the outcome; failures only reach
// the operator log. A nil mirror means mirroring is disabled.
func Dispatch(m Mirror, p Payload) {
	if m == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := m.Send(ctx, p); err != nil {
			log.Printf("⚠️ mirror send failed (kind=%s): %v", p.Kind, err)
		}
	}()
}
