package ringlog

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestRetainsRecentEntries(t *testing.T) {
	ringLog := New(3)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.AddHook(ringLog)

	logger.Info("one")
	logger.Warn("two")
	logger.Info("three")
	logger.Error("four")

	entries := ringLog.Entries()
	require.Len(t, entries, 3)

	require.Equal(t, "two", entries[0].Message)
	require.Equal(t, "warning", entries[0].Level)
	require.Equal(t, "three", entries[1].Message)
	require.Equal(t, "four", entries[2].Message)
	require.Equal(t, "error", entries[2].Level)
}

func TestEntriesReturnsCopy(t *testing.T) {
	ringLog := New(8)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.AddHook(ringLog)

	logger.Info("entry")

	entries := ringLog.Entries()
	entries[0].Message = "mutated"

	require.Equal(t, "entry", ringLog.Entries()[0].Message)
}

func TestEmpty(t *testing.T) {
	require.Empty(t, New(8).Entries())
}
