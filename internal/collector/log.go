// Package collector implements the central receiving end of the
// inventory sync: agencies POST snapshots, each received record is
// stamped and appended to an unbounded JSON log.
package collector

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// receiptTimeLayout is the fecha_recepcion timestamp format
const receiptTimeLayout = "2006-01-02 15:04:05"

// Entry is one received inventory record. The payload shape is not
// constrained beyond being a JSON object; whatever the agency sent is
// kept as-is plus the receipt timestamp.
type Entry map[string]interface{}

// Log is the append-only receive log. Entries are never mutated or
// removed and the file grows without bound; compaction is explicitly
// out of scope.
type Log struct {
	path string
	mu   sync.Mutex
}

// NewLog returns a log backed by the file at path
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Append stamps each item with fecha_recepcion and appends them to
// the log file, creating it on first use
func (l *Log) Append(items []Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return err
	}

	now := time.Now().Format(receiptTimeLayout)
	for _, item := range items {
		stamped := make(Entry, len(item)+1)
		for k, v := range item {
			stamped[k] = v
		}
		stamped["fecha_recepcion"] = now
		entries = append(entries, stamped)
	}

	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal receive log")
	}
	return errors.Wrapf(os.WriteFile(l.path, data, 0o644), "failed to write receive log %s", l.path)
}

// Entries returns the full accumulated log, empty when the file has
// never been created
func (l *Log) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

func (l *Log) read() ([]Entry, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, errors.Wrapf(err, "failed to read receive log %s", l.path)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrapf(err, "failed to parse receive log %s", l.path)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}
