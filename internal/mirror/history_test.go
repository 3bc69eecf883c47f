package mirror

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_AppendAndRecent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), metadataDirName, historyFileName)

	history, err := NewHistory(dbPath)
	require.NoError(t, err)
	defer history.Close()

	first := NewCycleReport()
	first.Record(EntryOp{Op: OpCopyFile, RelPath: "a.txt", Size: 5})
	first.Record(EntryOp{Op: OpCreateDir, RelPath: "sub"})
	first.Record(EntryOp{Op: OpUpdateFile, RelPath: "b.txt", Err: errors.New("denied")})
	first.Duration = 120 * time.Millisecond
	require.NoError(t, history.Append(first))

	second := NewCycleReport()
	second.Duration = 10 * time.Millisecond
	require.NoError(t, history.Append(second))

	records, err := history.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// newest first
	assert.False(t, records[0].Changed)
	assert.Zero(t, records[0].FilesCopied)

	assert.True(t, records[1].Changed)
	assert.Equal(t, 1, records[1].FilesCopied)
	assert.Equal(t, 1, records[1].DirsCreated)
	assert.Zero(t, records[1].FilesUpdated)
	assert.Equal(t, 1, records[1].Errors)
	assert.Equal(t, 120*time.Millisecond, records[1].Duration)
	assert.WithinDuration(t, time.Now(), records[1].StartedAt, time.Minute)
}

func TestHistory_RecentLimit(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), historyFileName)

	history, err := NewHistory(dbPath)
	require.NoError(t, err)
	defer history.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, history.Append(NewCycleReport()))
	}

	records, err := history.Recent(3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestHistory_EmptyDatabase(t *testing.T) {
	history, err := NewHistory(filepath.Join(t.TempDir(), historyFileName))
	require.NoError(t, err)
	defer history.Close()

	records, err := history.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, records)
}
