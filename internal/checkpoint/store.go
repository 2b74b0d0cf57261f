// Package checkpoint persists per-pair outcomes so a multi-hour run can
// be killed and resumed without repeating completed work. The store is an
// append-only CSV log: one row per finished work item, flushed and synced
// before Record returns, so the done-set survives abrupt termination.
package checkpoint

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ddihound/ddihound/internal/extract"
)

// Status is the terminal outcome of one work item.
type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
	StatusTimeout Status = "Timeout"
	StatusError   Status = "Error"
)

// Entry is one immutable checkpoint record. Entries are never mutated or
// re-attempted: a pair key present in the store is done, whatever its
// status, until the operator clears the checkpoint file.
type Entry struct {
	PairKey       string
	Severity      extract.Severity
	Text          string
	Status        Status
	Timestamp     time.Time
	Strategy      int
	LowConfidence bool
}

const timeLayout = "2006-01-02 15:04:05"

var header = []string{"pair_key", "severity", "text", "status", "timestamp", "strategy", "low_confidence"}

// PairKey builds the deterministic idempotence key for a drug pair. The
// source list is generated pre-deduplicated, so the key preserves the
// given order rather than canonicalizing it.
func PairKey(a, b string) string {
	return normalize(a) + "+" + normalize(b)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Store is the durable pair_key -> Entry log.
type Store struct {
	path string
	file *os.File
	w    *csv.Writer
	done map[string]Entry
}

// Open loads the done-set from path and readies the file for appends.
// A missing or empty file means no progress yet, never an error; a
// truncated final row (killed mid-write) is skipped.
func Open(path string) (*Store, error) {
	done, err := load(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}

	s := &Store{
		path: path,
		file: f,
		w:    csv.NewWriter(f),
		done: done,
	}

	if info, err := f.Stat(); err == nil && info.Size() == 0 {
		if err := s.w.Write(header); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to write checkpoint header: %w", err)
		}
		s.w.Flush()
		if err := s.w.Error(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to write checkpoint header: %w", err)
		}
	}

	return s, nil
}

func load(path string) (map[string]Entry, error) {
	done := make(map[string]Entry)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return done, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Partial trailing row from a killed run: stop here, keep
			// everything read so far.
			break
		}
		if len(record) < 5 || record[0] == "pair_key" {
			continue
		}
		entry := Entry{
			PairKey:  record[0],
			Severity: extract.Severity(record[1]),
			Text:     record[2],
			Status:   Status(record[3]),
		}
		if ts, err := time.Parse(timeLayout, record[4]); err == nil {
			entry.Timestamp = ts
		}
		if len(record) > 5 {
			entry.Strategy, _ = strconv.Atoi(record[5])
		}
		if len(record) > 6 {
			entry.LowConfidence, _ = strconv.ParseBool(record[6])
		}
		done[entry.PairKey] = entry
	}

	return done, nil
}

// Has reports whether a pair key already has a terminal outcome.
func (s *Store) Has(key string) bool {
	_, ok := s.done[key]
	return ok
}

// Get returns the stored entry for a pair key.
func (s *Store) Get(key string) (Entry, bool) {
	e, ok := s.done[key]
	return e, ok
}

// Len returns the number of recorded entries.
func (s *Store) Len() int {
	return len(s.done)
}

// Record appends an entry and makes it durable before returning. The
// append is the Persisted transition: after Record returns, the item is
// permanently excluded from future runs against this checkpoint.
func (s *Store) Record(e Entry) error {
	if e.PairKey == "" {
		return errors.New("checkpoint entry has empty pair key")
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	record := []string{
		e.PairKey,
		string(e.Severity),
		e.Text,
		string(e.Status),
		e.Timestamp.Format(timeLayout),
		strconv.Itoa(e.Strategy),
		strconv.FormatBool(e.LowConfidence),
	}
	if err := s.w.Write(record); err != nil {
		return fmt.Errorf("failed to append checkpoint entry: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("failed to flush checkpoint entry: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	s.done[e.PairKey] = e
	return nil
}

// Close releases the underlying file.
func (s *Store) Close() error {
	s.w.Flush()
	return s.file.Close()
}
