// File: internal/results/results.go

// Package results owns the CSV boundary of a run: the prompt input file and
// the append-only results file that doubles as the resume journal. Every
// record is flushed and synced before control returns, so a crash loses at
// most the prompt that was in flight.
package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
)

// PromptRecord is one row of the prompt input file.
type PromptRecord struct {
	ID   string
	Text string
}

// ResultRecord is one row of the results file.
type ResultRecord struct {
	ID     string
	Prompt string
	Reply  string
}

var resultHeader = []string{"id", "prompt", "grok_reply"}

// LoadPrompts reads the prompt CSV. The header must carry "id" and "text"
// columns; extra columns and any column order are accepted. Rows missing
// either field and rows reusing an earlier id are rejected rather than
// silently skipped, since a dropped prompt would surface only as a
// mysteriously absent result.
func LoadPrompts(path string) ([]PromptRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prompts file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read prompts header: %w", err)
	}
	idCol, textCol := -1, -1
	for i, name := range header {
		switch name {
		case "id":
			idCol = i
		case "text":
			textCol = i
		}
	}
	if idCol < 0 || textCol < 0 {
		return nil, fmt.Errorf("prompts file %s is missing required columns: need id and text, got %v", path, header)
	}

	var prompts []PromptRecord
	seen := make(map[string]struct{})
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read prompts row: %w", err)
		}
		if idCol >= len(row) || textCol >= len(row) {
			return nil, fmt.Errorf("prompts file %s line %d: row has %d fields, id/text not present", path, line, len(row))
		}
		if row[idCol] == "" {
			return nil, fmt.Errorf("prompts file %s line %d: empty id", path, line)
		}
		// Duplicate ids would collide in the results file and make resume
		// skip rows it never ran; catch them before the browser is touched.
		if _, dup := seen[row[idCol]]; dup {
			return nil, fmt.Errorf("prompts file %s line %d: duplicate id %q", path, line, row[idCol])
		}
		seen[row[idCol]] = struct{}{}
		prompts = append(prompts, PromptRecord{ID: row[idCol], Text: row[textCol]})
	}
	return prompts, nil
}

// CompletedIDs reads the id column of an existing results file so a resumed
// run can skip finished prompts. A missing file is an empty set, not an
// error: the first run of a fresh results path resumes over nothing.
func CompletedIDs(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]struct{}{}, nil
		}
		return nil, fmt.Errorf("open results file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	ids := make(map[string]struct{})
	first := true
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read results file: %w", err)
		}
		if first {
			first = false
			continue
		}
		if len(row) > 0 && row[0] != "" {
			ids[row[0]] = struct{}{}
		}
	}
	return ids, nil
}

// Sink appends result records to a CSV file. The file is opened, synced and
// closed per record; durability beats the syscall cost at one record per
// prompt.
type Sink struct {
	path   string
	logger *zap.Logger
}

func NewSink(path string, logger *zap.Logger) *Sink {
	return &Sink{path: path, logger: logger.Named("results")}
}

// Path returns the results file location.
func (s *Sink) Path() string { return s.path }

// Append durably persists one record. The header is written only when the
// file is new or empty, so appending to an interrupted run's file keeps it
// loadable as a single CSV.
func (s *Sink) Append(rec ResultRecord) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open results file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat results file: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(resultHeader); err != nil {
			return fmt.Errorf("write results header: %w", err)
		}
	}
	if err := w.Write([]string{rec.ID, rec.Prompt, rec.Reply}); err != nil {
		return fmt.Errorf("write result record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush result record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync results file: %w", err)
	}

	s.logger.Debug("Result persisted", zap.String("id", rec.ID))
	return nil
}

// DefaultFilename names a results file after the wall clock, minute
// precision, so consecutive runs never clobber each other.
func DefaultFilename(now time.Time) string {
	return "results_" + now.Format("2006-01-02_15-04") + ".csv"
}
