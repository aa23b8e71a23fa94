package inference

import "time"

// Config is shared by every backend.
type Config struct {
	ModelID      string
	Prompt       string
	MaxNewTokens int
	ImageSize    int

	// Command and Args start the exec backend worker. The model id is
	// appended as "--model <id>".
	Command string
	Args    []string

	// InferenceTimeout bounds a single Generate call (0 = unbounded).
	InferenceTimeout time.Duration

	// StopGrace is how long Release waits for the worker to exit after
	// stdin is closed before killing it.
	StopGrace time.Duration
}

const defaultStopGrace = 5 * time.Second

func (c Config) stopGrace() time.Duration {
	if c.StopGrace <= 0 {
		return defaultStopGrace
	}
	return c.StopGrace
}
