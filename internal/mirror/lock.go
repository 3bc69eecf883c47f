package mirror

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/openmirror/mirrorbox/internal/utils"
)

const (
	metadataDirName = ".mirrorbox"
	lockFileName    = "mirrorbox.lock"
)

var ErrReplicaLocked = errors.New("replica locked by another process")

// ReplicaLock guards a replica tree against concurrent mirrorbox processes.
// The lock file lives in the replica's metadata directory and is held for the
// lifetime of the process.
type ReplicaLock struct {
	metadataDir string
	flock       *flock.Flock
}

func NewReplicaLock(replicaRoot string) *ReplicaLock {
	metadataDir := filepath.Join(replicaRoot, metadataDirName)
	return &ReplicaLock{
		metadataDir: metadataDir,
		flock:       flock.New(filepath.Join(metadataDir, lockFileName)),
	}
}

func (l *ReplicaLock) Lock() error {
	if err := utils.EnsureDir(l.metadataDir); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", l.metadataDir, err)
	}

	locked, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock replica: %w", err)
	}
	if !locked {
		return ErrReplicaLocked
	}

	return nil
}

func (l *ReplicaLock) Unlock() error {
	return l.flock.Unlock()
}
