package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openmirror/mirrorbox/internal/mirror/config"
	"github.com/openmirror/mirrorbox/internal/utils"
)

const (
	historyFileName = "history.db"
	watchDebounce   = 500 * time.Millisecond
)

var ErrCycleRunning = errors.New("cycle already running")

// Manager drives the mirror engine: it acquires the replica lock, runs one
// cycle immediately, then repeats on a fixed interval until the context is
// cancelled. With watch enabled, source filesystem events schedule earlier
// cycles. A failed cycle is logged and the loop continues to the next one.
type Manager struct {
	cfg     *config.Config
	engine  *Engine
	lock    *ReplicaLock
	history *History
	watcher *SourceWatcher
	trigger chan struct{}
	muSync  sync.Mutex

	// set when the replica root did not exist before the lock file's
	// directory was created; the first cycle must still report the root
	// creation as a change
	rootCreated bool
}

func NewManager(cfg *config.Config) *Manager {
	m := &Manager{
		cfg:     cfg,
		engine:  NewEngine(cfg.SourceDir, cfg.ReplicaDir),
		lock:    NewReplicaLock(cfg.ReplicaDir),
		trigger: make(chan struct{}, 1),
	}
	if cfg.Watch {
		m.watcher = NewSourceWatcher(cfg.SourceDir)
	}
	return m
}

// Run blocks until ctx is cancelled, mirroring on every interval tick.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.setup(ctx); err != nil {
		return err
	}
	defer m.teardown()

	slog.Info("mirror start",
		"source", m.cfg.SourceDir,
		"replica", m.cfg.ReplicaDir,
		"interval", m.cfg.PollInterval(),
		"watch", m.cfg.Watch,
	)

	// initial cycle before the timer starts ticking
	m.cycle(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// a timer instead of a ticker, so a cycle that outlasts the
		// interval never queues up follow-on ticks
		timer := time.NewTimer(m.cfg.PollInterval())
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-timer.C:
			case <-m.trigger:
				if !timer.Stop() {
					<-timer.C
				}
			}
			m.cycle(ctx)
			timer.Reset(m.cfg.PollInterval())
		}
	})

	if m.watcher != nil {
		g.Go(func() error {
			return m.handleWatcherEvents(ctx)
		})
	}

	return g.Wait()
}

// RunOnce performs a single cycle with the replica lock held and returns its
// report.
func (m *Manager) RunOnce(ctx context.Context) (*CycleReport, error) {
	if err := m.setup(ctx); err != nil {
		return nil, err
	}
	defer m.teardown()

	return m.runCycle(ctx)
}

func (m *Manager) setup(ctx context.Context) error {
	// taking the lock creates the replica root for the lock file, so note
	// its absence before the engine gets a chance to see it
	m.rootCreated = !utils.DirExists(m.cfg.ReplicaDir)

	if err := m.lock.Lock(); err != nil {
		return err
	}

	history, err := NewHistory(HistoryPath(m.cfg.ReplicaDir))
	if err != nil {
		// history is an audit trail, never a reason not to mirror
		slog.Warn("cycle history unavailable", "error", err)
	} else {
		m.history = history
	}

	if m.watcher != nil {
		if err := m.watcher.Start(ctx); err != nil {
			m.teardown()
			return fmt.Errorf("failed to start source watcher: %w", err)
		}
	}

	return nil
}

func (m *Manager) teardown() {
	if m.watcher != nil {
		m.watcher.Stop()
		m.watcher = nil
	}
	if m.history != nil {
		m.history.Close()
		m.history = nil
	}
	if err := m.lock.Unlock(); err != nil {
		slog.Warn("failed to unlock replica", "error", err)
	}
}

// cycle runs one cycle and contains its failure: an error is logged and the
// caller's loop continues to the next interval.
func (m *Manager) cycle(ctx context.Context) {
	if _, err := m.runCycle(ctx); err != nil &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, ErrCycleRunning) {
		slog.Error("cycle failed", "error", err)
	}
}

func (m *Manager) runCycle(ctx context.Context) (*CycleReport, error) {
	if !m.muSync.TryLock() {
		return nil, ErrCycleRunning
	}
	defer m.muSync.Unlock()

	report, err := m.engine.Synchronize(ctx)
	if err != nil {
		return report, err
	}

	if m.rootCreated {
		m.rootCreated = false
		report.Record(EntryOp{Op: OpCreateDir, RelPath: "."})
		slog.Info("mirror", "op", OpCreateDir, "path", m.cfg.ReplicaDir)
	}

	if report.Changed() {
		slog.Info("changes detected and synchronized",
			"took", report.Duration,
			"dirs_created", report.Count(OpCreateDir),
			"copied", report.Count(OpCopyFile),
			"updated", report.Count(OpUpdateFile),
			"files_deleted", report.Count(OpDeleteFile),
			"dirs_deleted", report.Count(OpDeleteDir),
			"errors", len(report.Errors()),
		)
	} else {
		slog.Info("no changes detected", "took", report.Duration, "errors", len(report.Errors()))
	}

	if m.history != nil {
		if err := m.history.Append(report); err != nil {
			slog.Warn("failed to record cycle history", "error", err)
		}
	}

	return report, nil
}

func (m *Manager) handleWatcherEvents(ctx context.Context) error {
	events := m.watcher.Events()

	debounce := time.NewTimer(watchDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-events:
			if !ok {
				return nil
			}
			slog.Debug("source event", "event", event.Event(), "path", event.Path())
			debounce.Reset(watchDebounce)

		case <-debounce.C:
			select {
			case m.trigger <- struct{}{}:
			default:
			}
		}
	}
}
