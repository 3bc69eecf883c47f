package mirror

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/openmirror/mirrorbox/internal/utils"
)

// Engine brings the replica tree into structural and content agreement with
// the source tree, one full re-diff per cycle. It keeps no state between
// cycles: both trees are re-walked from scratch every time, so any external
// tampering with the replica is corrected on the next cycle.
type Engine struct {
	sourceRoot  string
	replicaRoot string
	ignore      *IgnoreList
}

func NewEngine(sourceRoot, replicaRoot string) *Engine {
	return &Engine{
		sourceRoot:  sourceRoot,
		replicaRoot: replicaRoot,
		ignore:      NewIgnoreList(sourceRoot),
	}
}

// Synchronize runs one full mirror cycle: a propagation pass (source to
// replica), then a file deletion pass, then a directory deletion pass
// (replica to source). Per-entry failures are logged, recorded in the report
// and skipped; only a failure of a whole tree walk aborts the cycle.
func (e *Engine) Synchronize(ctx context.Context) (*CycleReport, error) {
	report := NewCycleReport()
	defer func() {
		report.Duration = time.Since(report.StartedAt)
	}()

	// like everything else the engine consumes, ignore rules are re-derived
	// every cycle, so .mirrorignore edits take effect without a restart
	e.ignore = NewIgnoreList(e.sourceRoot)

	// Root guarantee: the replica root is created if missing. This alone
	// counts as a change.
	if !utils.DirExists(e.replicaRoot) {
		if err := os.MkdirAll(e.replicaRoot, 0o755); err != nil {
			return report, fmt.Errorf("create replica root %s: %w", e.replicaRoot, err)
		}
		report.Record(EntryOp{Op: OpCreateDir, RelPath: "."})
		slog.Info("mirror", "op", OpCreateDir, "path", e.replicaRoot)
	}

	if err := e.propagate(ctx, report); err != nil {
		return report, fmt.Errorf("propagation pass: %w", err)
	}

	// Deletions run after propagation so that a file moved within the source
	// is copied to its new replica location before the old one is removed.
	if err := e.deleteFiles(ctx, report); err != nil {
		return report, fmt.Errorf("file deletion pass: %w", err)
	}

	if err := e.deleteDirs(ctx, report); err != nil {
		return report, fmt.Errorf("directory deletion pass: %w", err)
	}

	return report, nil
}

// propagate walks the source tree and creates or updates the mirrored entry
// under the replica root for every directory and file it finds.
func (e *Engine) propagate(ctx context.Context, report *CycleReport) error {
	return filepath.WalkDir(e.sourceRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == e.sourceRoot {
				return err
			}
			// entry vanished or unreadable mid-walk, continue with the rest
			e.recordFailure(report, OpError, e.relTo(e.sourceRoot, path), err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, err := filepath.Rel(e.sourceRoot, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		if e.ignore.ShouldIgnore(relPath) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		replicaPath := filepath.Join(e.replicaRoot, relPath)
		if d.IsDir() {
			e.propagateDir(report, relPath, replicaPath)
			return nil
		}
		e.propagateFile(report, relPath, path, replicaPath)
		return nil
	})
}

func (e *Engine) propagateDir(report *CycleReport, relPath, replicaPath string) {
	if utils.DirExists(replicaPath) {
		return
	}

	// A file occupying the directory's path is replaced: delete then recreate.
	if utils.FileExists(replicaPath) {
		if err := os.Remove(replicaPath); err != nil {
			e.recordFailure(report, OpDeleteFile, relPath, err)
			return
		}
		report.Record(EntryOp{Op: OpDeleteFile, RelPath: relPath})
		slog.Info("mirror", "op", OpDeleteFile, "path", relPath, "reason", "replaced by directory")
	}

	if err := os.MkdirAll(replicaPath, 0o755); err != nil {
		e.recordFailure(report, OpCreateDir, relPath, err)
		return
	}
	report.Record(EntryOp{Op: OpCreateDir, RelPath: relPath})
	slog.Info("mirror", "op", OpCreateDir, "path", relPath)
}

func (e *Engine) propagateFile(report *CycleReport, relPath, sourcePath, replicaPath string) {
	op := OpCopyFile

	switch {
	case utils.DirExists(replicaPath):
		// A directory occupying the file's path is replaced: delete then recreate.
		if err := os.RemoveAll(replicaPath); err != nil {
			e.recordFailure(report, OpDeleteDir, relPath, err)
			return
		}
		report.Record(EntryOp{Op: OpDeleteDir, RelPath: relPath})
		slog.Info("mirror", "op", OpDeleteDir, "path", relPath, "reason", "replaced by file")

	case utils.FileExists(replicaPath):
		if FilesEqual(sourcePath, replicaPath) {
			return
		}
		op = OpUpdateFile
	}

	size, err := copyFile(sourcePath, replicaPath)
	if err != nil {
		e.recordFailure(report, op, relPath, err)
		return
	}
	report.Record(EntryOp{Op: op, RelPath: relPath, Size: size})
	slog.Info("mirror", "op", op, "path", relPath, "size", humanize.Bytes(uint64(size)))
}

// deleteFiles removes every replica file whose relative path has no file in
// the source tree.
func (e *Engine) deleteFiles(ctx context.Context, report *CycleReport) error {
	return filepath.WalkDir(e.replicaRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == e.replicaRoot {
				return err
			}
			e.recordFailure(report, OpError, e.relTo(e.replicaRoot, path), err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(e.replicaRoot, path)
		if err != nil {
			return err
		}
		if e.ignore.ShouldIgnore(relPath) {
			return nil
		}

		if utils.FileExists(filepath.Join(e.sourceRoot, relPath)) {
			return nil
		}

		if err := os.Remove(path); err != nil {
			e.recordFailure(report, OpDeleteFile, relPath, err)
			return nil
		}
		report.Record(EntryOp{Op: OpDeleteFile, RelPath: relPath})
		slog.Info("mirror", "op", OpDeleteFile, "path", relPath)
		return nil
	})
}

// deleteDirs removes every replica directory whose relative path has no
// directory in the source tree. It runs after deleteFiles; only the
// directory's own existence in the source is tested, not its contents.
func (e *Engine) deleteDirs(ctx context.Context, report *CycleReport) error {
	return filepath.WalkDir(e.replicaRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == e.replicaRoot {
				return err
			}
			e.recordFailure(report, OpError, e.relTo(e.replicaRoot, path), err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !d.IsDir() || path == e.replicaRoot {
			return nil
		}

		relPath, err := filepath.Rel(e.replicaRoot, path)
		if err != nil {
			return err
		}
		if e.ignore.ShouldIgnore(relPath) {
			return fs.SkipDir
		}

		if utils.DirExists(filepath.Join(e.sourceRoot, relPath)) {
			return nil
		}

		if err := os.RemoveAll(path); err != nil {
			e.recordFailure(report, OpDeleteDir, relPath, err)
			return fs.SkipDir
		}
		report.Record(EntryOp{Op: OpDeleteDir, RelPath: relPath})
		slog.Info("mirror", "op", OpDeleteDir, "path", relPath)
		return fs.SkipDir
	})
}

func (e *Engine) recordFailure(report *CycleReport, op OpType, relPath string, err error) {
	report.Record(EntryOp{Op: op, RelPath: relPath, Err: err})
	slog.Warn("mirror", "op", op, "path", relPath, "error", err)
}

func (e *Engine) relTo(root, path string) string {
	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return relPath
}
