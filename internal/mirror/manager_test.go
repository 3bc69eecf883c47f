package mirror

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmirror/mirrorbox/internal/mirror/config"
)

func managerConfig(t *testing.T, watch bool) *config.Config {
	t.Helper()
	cfg := &config.Config{
		SourceDir:  t.TempDir(),
		ReplicaDir: filepath.Join(t.TempDir(), "replica"),
		Interval:   config.Duration(time.Second),
		Watch:      watch,
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestManager_RunOnce(t *testing.T) {
	cfg := managerConfig(t, false)
	writeFile(t, cfg.SourceDir, "a.txt", "hello")

	m := NewManager(cfg)
	report, err := m.RunOnce(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Changed())
	assert.Equal(t, "hello", readFile(t, cfg.ReplicaDir, "a.txt"))

	// the cycle outcome is recorded in the replica's history db
	history, err := NewHistory(HistoryPath(cfg.ReplicaDir))
	require.NoError(t, err)
	defer history.Close()

	records, err := history.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Changed)
	assert.Equal(t, 1, records[0].FilesCopied)
}

func TestManager_RunOnce_MissingReplicaRootCountsAsChange(t *testing.T) {
	// empty source, replica dir does not exist yet: creating the root alone
	// is a change, even though the lock file's directory materializes it
	// before the engine runs
	cfg := managerConfig(t, false)

	report, err := NewManager(cfg).RunOnce(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Changed())
	assert.Equal(t, 1, report.Count(OpCreateDir))

	history, err := NewHistory(HistoryPath(cfg.ReplicaDir))
	require.NoError(t, err)
	defer history.Close()

	records, err := history.Recent(1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Changed)
	assert.Equal(t, 1, records[0].DirsCreated)

	// the next cycle reports no changes
	report, err = NewManager(cfg).RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Changed())
}

func TestManager_RunOnce_ReleasesLock(t *testing.T) {
	cfg := managerConfig(t, false)

	_, err := NewManager(cfg).RunOnce(context.Background())
	require.NoError(t, err)

	// a second run must be able to reacquire the replica lock
	_, err = NewManager(cfg).RunOnce(context.Background())
	require.NoError(t, err)
}

func TestManager_Run_CancelStopsLoop(t *testing.T) {
	cfg := managerConfig(t, false)
	writeFile(t, cfg.SourceDir, "a.txt", "hello")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	m := NewManager(cfg)
	go func() {
		done <- m.Run(ctx)
	}()

	// wait for the initial cycle to land
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(cfg.ReplicaDir, "a.txt"))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not stop after cancellation")
	}
}

func TestManager_ReplicaLockedByAnotherManager(t *testing.T) {
	cfg := managerConfig(t, false)

	first := NewManager(cfg)
	require.NoError(t, first.lock.Lock())
	defer first.lock.Unlock()

	_, err := NewManager(cfg).RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrReplicaLocked)
}
