package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sleepydirt/vision/internal/domain"
	"github.com/sleepydirt/vision/internal/platform/retry"
)

// EnsureLoaded loads the model unless the coordinator already has it.
func (c *Controller) EnsureLoaded(ctx context.Context) error {
	status, err := c.channel.CheckModelStatus(ctx)
	if err != nil {
		return err
	}
	if status == domain.ModelLoaded {
		c.setPhase(LoadLoaded, TextModelLoaded)
		return nil
	}
	return c.LoadWithRetry(ctx)
}

// LoadWithRetry asks the coordinator to load the model, up to
// LoadMaxAttempts times with a fixed LoadRetryDelay between attempts. After
// each failed attempt the status is re-checked in case the model came up
// anyway. Exhausting the attempts leaves the controller in LoadFailed, which
// disables Submit until the next load.
//
// Starting a new loop cancels the one in flight, as does Disable.
func (c *Controller) LoadWithRetry(ctx context.Context) error {
	loopCtx, seq := c.startLoadLoop(ctx)
	defer c.endLoadLoop(seq)

	c.setPhase(LoadLoading, TextModelLoadingNow)

	maxAttempts := c.cfg.LoadMaxAttempts
	policy := retry.Policy{
		MaxAttempts:    maxAttempts,
		InitialBackoff: c.cfg.LoadRetryDelay,
		Constant:       true,
		Clock:          c.clock,
		OnRetry: func(attempt int, err error, _ time.Duration) {
			slog.InfoContext(ctx, "Model load failed, retrying", "attempt", attempt, "max_attempts", maxAttempts, "error", err)
			c.observer(fmt.Sprintf(TextModelRetrying, attempt, maxAttempts))
		},
	}

	err := retry.DoVoid(loopCtx, policy, classifyLoad, c.loadOnce)
	switch {
	case err == nil:
		c.setPhase(LoadLoaded, TextModelLoaded)
		return nil
	case loopCtx.Err() != nil:
		// Superseded, disabled or abandoned by the caller.
		if c.isCurrentLoop(seq) {
			c.setPhase(LoadIdle, TextModelNotLoaded)
		}
		return loopCtx.Err()
	default:
		slog.WarnContext(ctx, "Model failed to load", "attempts", maxAttempts, "error", err)
		c.setPhase(LoadFailed, TextModelFailed)
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
}

// loadOnce is one attempt. A failed load still counts as success when the
// follow-up status check says the model is loaded.
func (c *Controller) loadOnce(ctx context.Context, _ int) error {
	out, loadErr := c.channel.LoadModel(ctx)

	status, statusErr := c.channel.CheckModelStatus(ctx)
	if statusErr == nil && status == domain.ModelLoaded {
		return nil
	}

	if loadErr != nil {
		return loadErr
	}
	if out.Success {
		return nil
	}
	if out.Error == "" {
		return errors.New("load failed")
	}
	return errors.New(out.Error)
}

func classifyLoad(err error) retry.Action {
	if errors.Is(err, context.Canceled) {
		return retry.Stop
	}
	return retry.Retry
}

// WaitModelSettled reports the model status, re-checking every
// StatusRecheckInterval while it is loading.
func (c *Controller) WaitModelSettled(ctx context.Context) (domain.ModelStatus, error) {
	for {
		status, err := c.channel.CheckModelStatus(ctx)
		if err != nil {
			return "", err
		}
		if status != domain.ModelLoading {
			return status, nil
		}

		c.observer(TextModelLoadingNow)
		select {
		case <-c.clock.After(c.cfg.StatusRecheckInterval):
		case <-ctx.Done():
			return status, ctx.Err()
		}
	}
}

// ModelStatus reports the coordinator's model status without waiting.
func (c *Controller) ModelStatus(ctx context.Context) (domain.ModelStatus, error) {
	return c.channel.CheckModelStatus(ctx)
}

// Unload stops any load loop and asks the coordinator to release the model.
// The view and the enabled flag are left alone.
func (c *Controller) Unload(ctx context.Context) (domain.Outcome, error) {
	c.cancelLoadLoop()

	out, err := c.channel.UnloadModel(ctx)
	if err != nil {
		return out, err
	}
	c.setPhase(LoadIdle, TextModelNotLoaded)
	return out, nil
}

// Enable persists the enabled flag and loads the model.
func (c *Controller) Enable(ctx context.Context) error {
	if err := c.store.SetEnabled(ctx, true); err != nil {
		return fmt.Errorf("enable: %w", err)
	}
	return c.EnsureLoaded(ctx)
}

// Disable persists the flag, stops any load loop, unloads the model and
// resets the view.
func (c *Controller) Disable(ctx context.Context) error {
	if err := c.store.SetEnabled(ctx, false); err != nil {
		return fmt.Errorf("disable: %w", err)
	}

	c.cancelLoadLoop()

	out, err := c.channel.UnloadModel(ctx)
	if err != nil {
		return err
	}
	if !out.Success {
		slog.WarnContext(ctx, "Unload reported failure", "error", out.Error)
	}

	c.setPhase(LoadIdle, TextModelNotLoaded)
	return c.Reset(ctx)
}

// Enabled reports the persisted enabled flag.
func (c *Controller) Enabled(ctx context.Context) (bool, error) {
	enabled, err := c.store.Enabled(ctx)
	if err != nil {
		return false, fmt.Errorf("read enabled flag: %w", err)
	}
	return enabled, nil
}

func (c *Controller) setPhase(phase LoadPhase, text string) {
	c.mu.Lock()
	c.phase = phase
	c.mu.Unlock()
	c.observer(text)
}

func (c *Controller) startLoadLoop(ctx context.Context) (context.Context, uint64) {
	loopCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelLoad != nil {
		c.cancelLoad()
	}
	c.loadSeq++
	c.cancelLoad = cancel
	return loopCtx, c.loadSeq
}

func (c *Controller) endLoadLoop(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadSeq == seq && c.cancelLoad != nil {
		c.cancelLoad()
		c.cancelLoad = nil
	}
}

func (c *Controller) isCurrentLoop(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadSeq == seq && c.cancelLoad != nil
}

func (c *Controller) cancelLoadLoop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelLoad != nil {
		c.cancelLoad()
		c.cancelLoad = nil
	}
}
