package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sleepydirt/vision/internal/domain"
	"github.com/sleepydirt/vision/internal/platform/correlation"
	apperrors "github.com/sleepydirt/vision/internal/platform/errors"
	"github.com/sleepydirt/vision/internal/platform/retry"
	"github.com/sleepydirt/vision/internal/platform/version"
)

const (
	messagesPath = "/api/messages"
	maxErrorBody = 64 << 10
)

// StatusError is a non-200 answer from the coordinator.
type StatusError struct {
	Code    int
	Type    apperrors.ErrorType
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("coordinator returned %d", e.Code)
	}
	return fmt.Sprintf("coordinator returned %d: %s", e.Code, e.Message)
}

// Rejected reports a 4xx: the coordinator refused the message and recorded
// nothing for it, so there is no request to poll.
func (e *StatusError) Rejected() bool {
	return e.Code >= 400 && e.Code < 500
}

// Reason is the coordinator's message, or the status text when it sent none.
func (e *StatusError) Reason() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Code)
}

// Client talks to the coordinator. Status queries are short and retried;
// loadModel and explainImage can run for minutes and are bounded only by
// the caller's context.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	requestTimeout time.Duration
	statusPolicy   retry.Policy
	userAgent      string
}

// NewClient creates a client for the coordinator at baseURL.
func NewClient(baseURL string, requestTimeout time.Duration, clock clockwork.Clock) *Client {
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{},
		requestTimeout: requestTimeout,
		statusPolicy: retry.Policy{
			MaxAttempts:      3,
			InitialBackoff:   200 * time.Millisecond,
			RateLimitBackoff: time.Second,
			Clock:            clock,
		},
		userAgent: version.UserAgent("visionctl"),
	}
}

func (c *Client) CheckModelStatus(ctx context.Context) (domain.ModelStatus, error) {
	resp, err := retry.Do(ctx, c.statusPolicy, classify, func(ctx context.Context, _ int) (domain.ModelStatusResponse, error) {
		var resp domain.ModelStatusResponse
		err := c.send(ctx, c.requestTimeout, domain.Message{Action: domain.ActionCheckModelStatus}, &resp)
		return resp, err
	})
	if err != nil {
		return "", fmt.Errorf("check model status: %w", err)
	}
	return resp.Status, nil
}

func (c *Client) LoadModel(ctx context.Context) (domain.Outcome, error) {
	var out domain.Outcome
	if err := c.send(ctx, 0, domain.Message{Action: domain.ActionLoadModel}, &out); err != nil {
		return domain.Outcome{}, fmt.Errorf("load model: %w", err)
	}
	return out, nil
}

func (c *Client) UnloadModel(ctx context.Context) (domain.Outcome, error) {
	var out domain.Outcome
	if err := c.send(ctx, c.requestTimeout, domain.Message{Action: domain.ActionUnloadModel}, &out); err != nil {
		return domain.Outcome{}, fmt.Errorf("unload model: %w", err)
	}
	return out, nil
}

// ExplainImage submits the image and waits for its result.
func (c *Client) ExplainImage(ctx context.Context, imageData, requestID string) (domain.Result, error) {
	msg := domain.Message{Action: domain.ActionExplainImage, ImageData: imageData, RequestID: requestID}
	var result domain.Result
	if err := c.send(ctx, 0, msg, &result); err != nil {
		return domain.Result{}, fmt.Errorf("explain image: %w", err)
	}
	return result, nil
}

func (c *Client) CheckRequestStatus(ctx context.Context, requestID string) (domain.RequestStatus, error) {
	msg := domain.Message{Action: domain.ActionCheckRequestStatus, RequestID: requestID}
	status, err := retry.Do(ctx, c.statusPolicy, classify, func(ctx context.Context, _ int) (domain.RequestStatus, error) {
		var status domain.RequestStatus
		err := c.send(ctx, c.requestTimeout, msg, &status)
		return status, err
	})
	if err != nil {
		return domain.RequestStatus{}, fmt.Errorf("check request status: %w", err)
	}
	return status, nil
}

// send posts one message and decodes the 200 body into out. A zero timeout
// leaves the call bounded only by ctx.
func (c *Client) send(ctx context.Context, timeout time.Duration, msg domain.Message, out any) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if id, ok := correlation.ID(ctx); ok {
		req.Header.Set(correlation.Header, id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return decodeStatusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", msg.Action, err)
	}
	return nil
}

func decodeStatusError(resp *http.Response) error {
	statusErr := &StatusError{Code: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return statusErr
	}

	var body apperrors.ErrorResponse
	if json.Unmarshal(data, &body) == nil {
		statusErr.Type = body.Type
		statusErr.Message = body.Error
	}
	return statusErr
}

// classify retries transport failures and 5xx answers. 429 waits longer.
// Other 4xx answers and cancellation are final.
func classify(err error) retry.Action {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == http.StatusTooManyRequests:
			return retry.After
		case statusErr.Code >= 500:
			return retry.Retry
		default:
			return retry.Stop
		}
	}
	if errors.Is(err, context.Canceled) {
		return retry.Stop
	}
	return retry.Retry
}
