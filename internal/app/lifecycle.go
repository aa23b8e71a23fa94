package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sleepydirt/vision/internal/domain"
	"github.com/sleepydirt/vision/internal/platform/correlation"
)

type modelController interface {
	Load(ctx context.Context) domain.Outcome
	Unload(ctx context.Context) domain.Outcome
}

// Lifecycle follows the persisted enabled flag: it loads the model at
// startup when enabled and loads or unloads it whenever the flag changes.
type Lifecycle struct {
	models   modelController
	settings domain.SettingsStore

	mu      sync.Mutex
	desired bool
	wg      sync.WaitGroup
}

func NewLifecycle(models modelController, settings domain.SettingsStore) *Lifecycle {
	return &Lifecycle{models: models, settings: settings}
}

// Run blocks until ctx is cancelled. The watch is set up before the flag is
// read so no change between the two is lost.
func (l *Lifecycle) Run(ctx context.Context) error {
	changes, err := l.settings.WatchEnabled(ctx)
	if err != nil {
		return fmt.Errorf("watch enabled flag: %w", err)
	}

	enabled, err := l.settings.Enabled(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read enabled flag, not auto-loading", "error", err)
	} else {
		l.apply(ctx, enabled, "startup")
	}

	for {
		select {
		case enabled, ok := <-changes:
			if !ok {
				l.wg.Wait()
				return nil
			}
			l.apply(ctx, enabled, "settings_change")
		case <-ctx.Done():
			l.wg.Wait()
			return nil
		}
	}
}

func (l *Lifecycle) apply(ctx context.Context, enabled bool, trigger string) {
	l.mu.Lock()
	l.desired = enabled
	l.mu.Unlock()

	ctx = correlation.WithID(ctx, correlation.NewID())
	slog.InfoContext(ctx, "Model lifecycle trigger", "trigger", trigger, "enabled", enabled)

	if !enabled {
		l.models.Unload(ctx)
		return
	}

	// Loading can take minutes; keep reacting to the flag meanwhile.
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		outcome := l.models.Load(ctx)
		if !outcome.Success {
			slog.WarnContext(ctx, "Background model load failed", "error", outcome.Error)
			return
		}

		l.mu.Lock()
		stillWanted := l.desired
		l.mu.Unlock()
		if !stillWanted {
			slog.InfoContext(ctx, "Model disabled while loading, unloading")
			l.models.Unload(ctx)
		}
	}()
}
