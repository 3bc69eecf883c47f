package mirror

import (
	"context"
	"log/slog"

	"github.com/rjeczalik/notify"
)

// SourceWatcher emits an event whenever something under the source tree is
// written, created, removed or renamed. It only schedules earlier cycles;
// the periodic full re-diff remains the correctness backstop.
type SourceWatcher struct {
	watchDir string
	events   chan notify.EventInfo
}

func NewSourceWatcher(watchDir string) *SourceWatcher {
	return &SourceWatcher{
		watchDir: watchDir,
		events:   make(chan notify.EventInfo, 64),
	}
}

func (w *SourceWatcher) Start(ctx context.Context) error {
	slog.Info("source watcher start", "dir", w.watchDir)

	recursivePath := w.watchDir + "/..."
	if err := notify.Watch(recursivePath, w.events, notify.Write, notify.Create, notify.Remove, notify.Rename); err != nil {
		return err
	}
	return nil
}

func (w *SourceWatcher) Stop() {
	notify.Stop(w.events)
	close(w.events)
	slog.Info("source watcher stop")
}

func (w *SourceWatcher) Events() <-chan notify.EventInfo {
	return w.events
}
