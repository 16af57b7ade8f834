package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// CSVLog is one append-only CSV file. The file is opened per write; the
// mutex serializes header creation and makes each appended row atomic with
// respect to other writers in this process.
type CSVLog struct {
	path   string
	header []string
	mu     sync.Mutex
}

func NewCSVLog(path string, header []string) (*CSVLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure log dir: %w", err)
	}
	return &CSVLog{path: path, header: header}, nil
}

func (l *CSVLog) Path() string { return l.path }

// Append writes one data row, preceded by the header row iff the file is
// still empty. encoding/csv escapes embedded commas, quotes and newlines,
// so user-controlled text cannot break row boundaries.
func (l *CSVLog) Append(fields []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open append: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat log: %w", err)
	}

	w := csv.NewWriter(f)
	if st.Size() == 0 {
		if err := w.Write(l.header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := w.Write(fields); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush row: %w", err)
	}
	return nil
}

// WriteTo streams the log to w: the header alone when no file exists yet,
// otherwise the file content verbatim.
func (l *CSVLog) WriteTo(w io.Writer) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		cw := csv.NewWriter(w)
		if err := cw.Write(l.header); err != nil {
			return 0, fmt.Errorf("write header: %w", err)
		}
		cw.Flush()
		return 0, cw.Error()
	}
	if err != nil {
		return 0, fmt.Errorf("open read: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	n, err := io.Copy(w, f)
	if err != nil {
		return n, fmt.Errorf("stream log: %w", err)
	}
	return n, nil
}

// ReadRows parses every data row (header skipped). Short or malformed rows
// are skipped rather than failing the whole read, matching the tolerant
// load path of the interaction recorder this grew out of.
func (l *CSVLog) ReadRows() ([][]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open read: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows [][]string
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if first {
			first = false
			if len(rec) > 0 && len(l.header) > 0 && rec[0] == l.header[0] {
				continue
			}
		}
		if len(rec) < len(l.header) {
			continue
		}
		rows = append(rows, rec)
	}
	return rows, nil
}
