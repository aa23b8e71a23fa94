package client

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/sleepydirt/vision/internal/domain"
)

// Await waits for request id to settle. Push and polling run side by side
// and the first terminal observation wins. The wait is bounded by
// PollTimeout when it is set.
func (c *Controller) Await(ctx context.Context, id string) (domain.ClientViewState, error) {
	awaitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if c.cfg.PollTimeout > 0 {
		var cancelTimeout context.CancelFunc
		awaitCtx, cancelTimeout = clockwork.WithTimeout(awaitCtx, c.clock, c.cfg.PollTimeout)
		defer cancelTimeout()
	}

	updates, err := c.channel.Subscribe(awaitCtx)
	if err != nil {
		slog.DebugContext(ctx, "Push unavailable, polling only", "request_id", id, "error", err)
		updates = nil
	}

	return c.awaitWith(ctx, awaitCtx, id, updates)
}

// awaitWith runs the wait loop on an existing subscription. parent is the
// caller's context; awaitCtx additionally carries the poll timeout.
func (c *Controller) awaitWith(parent, awaitCtx context.Context, id string, updates <-chan domain.RequestUpdate) (domain.ClientViewState, error) {
	ticker := c.clock.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				slog.DebugContext(parent, "Push closed, polling only", "request_id", id)
				updates = nil
				continue
			}
			if update.RequestID != id || !update.Status.Terminal() {
				continue
			}
			return c.finishRequest(parent, id, update.Result)

		case <-ticker.Chan():
			status, err := c.channel.CheckRequestStatus(awaitCtx, id)
			if err != nil {
				if awaitCtx.Err() != nil {
					continue
				}
				slog.WarnContext(parent, "Status check failed", "request_id", id, "error", err)
				continue
			}

			switch {
			case status.Status.Terminal():
				return c.finishRequest(parent, id, status.Result)
			case status.Status == domain.WorkUnknown:
				view, err := c.abandonRequest(parent, id, TextUnknownRequest)
				return view, errors.Join(domain.ErrUnknownRequest, err)
			}

		case <-awaitCtx.Done():
			if parent.Err() != nil {
				return c.View(), parent.Err()
			}
			slog.WarnContext(parent, "Gave up waiting for request", "request_id", id, "timeout", c.cfg.PollTimeout)
			view, err := c.abandonRequest(parent, id, TextTimedOut)
			return view, errors.Join(ErrTimedOut, err)
		}
	}
}
