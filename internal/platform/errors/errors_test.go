package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/sleepydirt/vision/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name   string
		err    *Error
		typ    ErrorType
		status int
	}{
		{"validation", ValidationError("imageData is required"), TypeValidation, http.StatusBadRequest},
		{"not found", NotFoundError("request not found"), TypeNotFound, http.StatusNotFound},
		{"conflict", ConflictError("model is loading"), TypeConflict, http.StatusConflict},
		{"unavailable", UnavailableError("store down", cause), TypeUnavailable, http.StatusServiceUnavailable},
		{"timeout", TimeoutError("too slow", cause), TypeTimeout, http.StatusGatewayTimeout},
		{"internal", InternalError("failed to save", cause), TypeInternal, http.StatusInternalServerError},
		{"external", ExternalError("worker crashed", cause), TypeExternal, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.err.Type)
			assert.Equal(t, tt.status, tt.err.HTTPStatus())
			assert.NotNil(t, tt.err.Context)
			assert.Contains(t, tt.err.Error(), string(tt.typ))
		})
	}
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "validation: bad input", ValidationError("bad input").Error())
	assert.Equal(t, "internal: save failed: disk full", InternalError("save failed", errors.New("disk full")).Error())
}

func TestWithField_Chaining(t *testing.T) {
	err := ValidationError("unknown action").WithField("action", "dance").WithField("request_id", "r1")

	assert.Equal(t, "dance", err.Context["action"])
	assert.Equal(t, "r1", err.Context["request_id"])
}

func TestWithField_NilContext(t *testing.T) {
	err := &Error{Type: TypeInternal, Message: "x"}
	err.WithField("k", "v")
	assert.Equal(t, "v", err.Context["k"])
}

func TestToResponse(t *testing.T) {
	resp := NotFoundError("request not found").WithField("request_id", "r9").ToResponse()

	assert.Equal(t, "request not found", resp.Error)
	assert.Equal(t, TypeNotFound, resp.Type)
	assert.Equal(t, "r9", resp.Context["request_id"])
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := UnavailableError("store unavailable", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Nil(t, ValidationError("x").Unwrap())
}

func TestAsStructuredError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, AsStructuredError(nil))
	})

	t.Run("already structured", func(t *testing.T) {
		orig := ConflictError("dup")
		assert.Same(t, orig, AsStructuredError(fmt.Errorf("wrapped: %w", orig)))
	})

	t.Run("domain sentinels", func(t *testing.T) {
		tests := []struct {
			err error
			typ ErrorType
		}{
			{domain.ErrUnknownRequest, TypeNotFound},
			{domain.ErrWorkItemNotFound, TypeNotFound},
			{domain.ErrModelLoading, TypeConflict},
			{domain.ErrSubmissionDisabled, TypeConflict},
			{domain.ErrResourceNotLoaded, TypeUnavailable},
			{fmt.Errorf("infer: %w", domain.ErrSessionTornDown), TypeUnavailable},
			{context.DeadlineExceeded, TypeTimeout},
		}
		for _, tt := range tests {
			got := AsStructuredError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.typ, got.Type, tt.err.Error())
			assert.ErrorIs(t, got, tt.err)
		}
	})

	t.Run("plain error", func(t *testing.T) {
		got := AsStructuredError(errors.New("weird"))
		assert.Equal(t, TypeInternal, got.Type)
		assert.Equal(t, "internal server error", got.Message)
	})
}
