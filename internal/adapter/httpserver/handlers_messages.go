package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sleepydirt/vision/internal/domain"
	apperrors "github.com/sleepydirt/vision/internal/platform/errors"
)

func (s *Server) registerMessageRoutes() {
	s.echo.POST("/api/messages", s.handleMessage)
}

// handleMessage dispatches one message-channel request on its action tag.
// Resource and inference failures are answered with 200 and success=false;
// only malformed requests produce error statuses.
func (s *Server) handleMessage(c echo.Context) error {
	var msg domain.Message
	if err := c.Bind(&msg); err != nil {
		return apperrors.ValidationError("invalid message body")
	}

	switch msg.Action {
	case domain.ActionCheckModelStatus:
		return s.sendJSON(c, domain.ModelStatusResponse{Status: s.coordinator.GlobalStatus().WireStatus()})
	case domain.ActionLoadModel:
		return s.sendJSON(c, s.coordinator.Load(c.Request().Context()))
	case domain.ActionUnloadModel:
		return s.sendJSON(c, s.coordinator.Unload(c.Request().Context()))
	case domain.ActionExplainImage:
		return s.submitLimiter(func(c echo.Context) error {
			return s.handleExplainImage(c, msg)
		})(c)
	case domain.ActionCheckRequestStatus:
		if msg.RequestID == "" {
			return apperrors.ValidationError("requestId is required")
		}
		return s.sendJSON(c, s.coordinator.Status(msg.RequestID))
	case "":
		return apperrors.ValidationError("action is required")
	default:
		return apperrors.ValidationError("unknown action").WithField("action", msg.Action)
	}
}

// handleExplainImage submits the image and holds the request open until the
// item is terminal. A caller that goes away does not cancel the work; the
// result is still recorded and pushed.
func (s *Server) handleExplainImage(c echo.Context, msg domain.Message) error {
	ctx := c.Request().Context()

	item, done, err := s.coordinator.Submit(ctx, domain.Payload{ImageData: msg.ImageData}, msg.RequestID)
	if err != nil {
		return err
	}

	select {
	case final := <-done:
		if final.Result == nil {
			return apperrors.InternalError("request finished without a result", nil).WithField("request_id", final.ID)
		}
		return s.sendJSON(c, final.Result)
	case <-ctx.Done():
		slog.DebugContext(ctx, "Caller detached before result", "request_id", item.ID)
		return nil
	}
}

func (s *Server) sendJSON(c echo.Context, body any) error {
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
