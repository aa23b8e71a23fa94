package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/sleepydirt/vision/internal/domain"
	"github.com/sleepydirt/vision/internal/platform/correlation"
)

const pushPath = "/ws"

// Subscribe attaches to the coordinator's push endpoint. The returned channel
// carries every requestUpdate frame and is closed when ctx ends or the
// connection drops; callers fall back to polling in that case.
func (c *Client) Subscribe(ctx context.Context) (<-chan domain.RequestUpdate, error) {
	pushURL, err := pushURL(c.baseURL)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("User-Agent", c.userAgent)
	if id, ok := correlation.ID(ctx); ok {
		header.Set(correlation.Header, id)
	}

	dialCtx := ctx
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, pushURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("subscribe to push: %w", err)
	}

	updates := make(chan domain.RequestUpdate)
	readerDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-readerDone:
		}
	}()
	go func() {
		defer close(readerDone)
		readUpdates(ctx, conn, updates)
	}()

	return updates, nil
}

func readUpdates(ctx context.Context, conn *websocket.Conn, updates chan<- domain.RequestUpdate) {
	defer close(updates)
	defer func() { _ = conn.Close() }()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				slog.DebugContext(ctx, "Push connection closed", "error", err)
			}
			return
		}

		var update domain.RequestUpdate
		if err := json.Unmarshal(data, &update); err != nil {
			slog.DebugContext(ctx, "Ignoring malformed push frame", "error", err)
			continue
		}
		if update.Action != domain.ActionRequestUpdate {
			continue
		}

		select {
		case updates <- update:
		case <-ctx.Done():
			return
		}
	}
}

// pushURL maps http(s)://host/base to ws(s)://host/base/ws.
func pushURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse coordinator url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported coordinator url scheme %q", u.Scheme)
	}
	u.Path += pushPath
	return u.String(), nil
}
