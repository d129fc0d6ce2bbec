// Package audit keeps an append-only record of evaluated cases.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	lockTimeout = time.Second
	lockPoll    = 100 * time.Millisecond
)

// Record is one line of the results log.
type Record struct {
	RunID      string    `json:"run_id"`
	Case       string    `json:"case"`
	Intent     string    `json:"intent"`
	Outcome    string    `json:"outcome"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	Expected   any       `json:"expected_calls,omitempty"`
	Actual     any       `json:"actual_calls,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	At         time.Time `json:"at"`
}

// ResultLog appends records as JSON lines. Writers in separate processes are
// serialized through a sibling ".lock" file.
type ResultLog struct {
	Path string
}

// NewResultLog returns a log at path, creating its directory.
func NewResultLog(path string) (*ResultLog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create results dir: %w", err)
		}
	}
	return &ResultLog{Path: path}, nil
}

// Append writes recs under an exclusive lock.
func (l *ResultLog) Append(recs ...Record) error {
	if len(recs) == 0 {
		return nil
	}

	unlock, err := lockPath(l.Path + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open results log: %w", err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, rec := range recs {
		if err := enc.Encode(rec); err != nil {
			f.Close()
			return fmt.Errorf("encode record %s: %w", rec.Case, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write results log: %w", err)
	}
	return f.Close()
}

// ReadAll returns every record in the log, oldest first. A missing log
// yields no records.
func (l *ResultLog) ReadAll() ([]Record, error) {
	f, err := os.Open(l.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open results log: %w", err)
	}
	defer f.Close()

	var recs []Record
	dec := json.NewDecoder(f)
	for dec.More() {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return recs, fmt.Errorf("decode record %d: %w", len(recs)+1, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
