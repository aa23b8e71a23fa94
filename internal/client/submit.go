package client

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/sleepydirt/vision/internal/domain"
)

type directReply struct {
	result domain.Result
	err    error
}

// rejection is an error from a coordinator that refused a message outright.
// Nothing was recorded for the request, so polling for it is pointless.
type rejection interface {
	error
	Rejected() bool
	Reason() string
}

// Submit sends an image for explanation and waits for the result. The direct
// reply races the push channel; polling only starts if the direct send fails
// in transit or with a server error.
func (c *Controller) Submit(ctx context.Context, imageData string) (domain.ClientViewState, error) {
	if c.Phase() == LoadFailed {
		return c.View(), domain.ErrSubmissionDisabled
	}

	status, err := c.channel.CheckModelStatus(ctx)
	if err != nil {
		return c.View(), err
	}
	switch status {
	case domain.ModelLoading:
		return c.View(), domain.ErrModelLoading
	case domain.ModelNotLoaded:
		if err := c.LoadWithRetry(ctx); err != nil {
			return c.View(), err
		}
	}

	id := c.newRequestID()
	c.mu.Lock()
	c.view = domain.ClientViewState{ImageData: imageData, RequestID: id, IsProcessing: true}
	c.mu.Unlock()
	if _, err := c.save(ctx); err != nil {
		return c.View(), err
	}

	submitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, err := c.channel.Subscribe(submitCtx)
	if err != nil {
		slog.DebugContext(ctx, "Push unavailable", "request_id", id, "error", err)
		updates = nil
	}

	replies := make(chan directReply, 1)
	go func() {
		result, err := c.channel.ExplainImage(submitCtx, imageData, id)
		replies <- directReply{result: result, err: err}
	}()

	for {
		select {
		case reply := <-replies:
			if reply.err == nil {
				return c.finishRequest(ctx, id, &reply.result)
			}
			if ctx.Err() != nil {
				return c.View(), ctx.Err()
			}
			var rejected rejection
			if errors.As(reply.err, &rejected) && rejected.Rejected() {
				slog.WarnContext(ctx, "Request rejected", "request_id", id, "error", reply.err)
				view, err := c.abandonRequest(ctx, id, rejected.Reason())
				return view, errors.Join(reply.err, err)
			}
			slog.WarnContext(ctx, "Direct reply failed, polling", "request_id", id, "error", reply.err)
			return c.Await(ctx, id)

		case update, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if update.RequestID == id && update.Status.Terminal() {
				return c.finishRequest(ctx, id, update.Result)
			}

		case <-ctx.Done():
			return c.View(), ctx.Err()
		}
	}
}

// newRequestID is a millisecond timestamp, unique enough for one client view.
func (c *Controller) newRequestID() string {
	return strconv.FormatInt(c.clock.Now().UnixMilli(), 10)
}

