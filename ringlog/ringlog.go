// Package ringlog keeps a bounded ring of recent log entries so the API can
// serve diagnostics without touching files.
package ringlog

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Entry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Log is a logrus hook retaining the most recent entries.
type Log struct {
	mtx     sync.Mutex
	max     int
	entries []Entry
}

func New(max int) *Log {
	return &Log{
		max: max,
	}
}

// Levels implements logrus.Hook.
func (l *Log) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (l *Log) Fire(entry *logrus.Entry) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	l.entries = append(l.entries, Entry{
		Time:    entry.Time,
		Level:   entry.Level.String(),
		Message: entry.Message,
	})

	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}

	return nil
}

// Entries returns a copy of the retained entries, oldest first.
func (l *Log) Entries() []Entry {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	entries := make([]Entry, len(l.entries))
	copy(entries, l.entries)

	return entries
}
