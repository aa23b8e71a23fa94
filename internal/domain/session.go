package domain

import "context"

// SessionState is the lifecycle state of the shared model session.
type SessionState int

const (
	SessionUnloaded SessionState = iota
	SessionLoading
	SessionLoaded
	SessionFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionUnloaded:
		return "unloaded"
	case SessionLoading:
		return "loading"
	case SessionLoaded:
		return "loaded"
	case SessionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ModelStatus is the wire form reported by checkModelStatus.
type ModelStatus string

const (
	ModelNotLoaded ModelStatus = "not_loaded"
	ModelLoading   ModelStatus = "loading"
	ModelLoaded    ModelStatus = "loaded"
)

// WireStatus maps a session state to what clients see. Failed reads as
// not_loaded so the client is free to retry.
func (s SessionState) WireStatus() ModelStatus {
	switch s {
	case SessionLoaded:
		return ModelLoaded
	case SessionLoading:
		return ModelLoading
	default:
		return ModelNotLoaded
	}
}

// Outcome is the success/failure value returned across the session boundary.
// Failures are never raised as errors to the caller.
type Outcome struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func Succeeded() Outcome { return Outcome{Success: true} }

func Failed(reason string) Outcome { return Outcome{Success: false, Error: reason} }

// Releaser is implemented by every loaded sub-component. Release frees the
// underlying memory or process and must be safe to call once.
type Releaser interface {
	Release(ctx context.Context) error
}

// Payload is the opaque input reference handed to inference: a data URL or
// an http(s) URL pointing at an image.
type Payload struct {
	ImageData string
}

// Prepared is the processor's output, consumed by the generator.
type Prepared struct {
	ModelID      string `json:"model_id"`
	Prompt       string `json:"prompt"`
	ImageData    string `json:"image"`
	ImageSize    int    `json:"image_size"`
	MaxNewTokens int    `json:"max_new_tokens"`
}

// Processor turns a payload into generator input.
type Processor interface {
	Releaser
	Prepare(ctx context.Context, payload Payload) (Prepared, error)
}

// Generator runs the model and returns the decoded explanation text.
type Generator interface {
	Releaser
	Generate(ctx context.Context, input Prepared) (string, error)
}

// ModelLoader performs the slow, external load of both sub-components.
type ModelLoader interface {
	LoadProcessor(ctx context.Context) (Processor, error)
	LoadGenerator(ctx context.Context) (Generator, error)
}

// ResourceSession is the contract the coordinator needs from the session manager.
type ResourceSession interface {
	Acquire(ctx context.Context) Outcome
	Release(ctx context.Context) Outcome
	Status() SessionState
	Infer(ctx context.Context, payload Payload) (string, error)
}
