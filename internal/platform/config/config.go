package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"

	InferenceExec = "exec"
	InferenceEcho = "echo"
)

// Server configures the long-lived coordinator process.
type Server struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	AppURL    string `env:"APP_URL" default:"http://localhost:8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	StoreBackend string `env:"STORE_BACKEND" default:"redis"`
	RedisURL     string `env:"REDIS_URL"`

	ModelID           string        `env:"MODEL_ID" default:"onnx-community/Qwen2-VL-2B-Instruct"`
	ModelPrompt       string        `env:"MODEL_PROMPT" default:"Explain this image."`
	ModelMaxNewTokens int           `env:"MODEL_MAX_NEW_TOKENS" default:"1024"`
	ModelImageSize    int           `env:"MODEL_IMAGE_SIZE" default:"256"`
	ModelLoadTimeout  time.Duration `env:"MODEL_LOAD_TIMEOUT" default:"5m"`

	InferenceBackend string        `env:"INFERENCE_BACKEND" default:"exec"`
	InferenceCommand string        `env:"INFERENCE_COMMAND"`
	InferenceArgs    string        `env:"INFERENCE_ARGS"`
	InferenceTimeout time.Duration `env:"INFERENCE_TIMEOUT" default:"5m"`

	WorkItemRetention     time.Duration `env:"WORK_ITEM_RETENTION" default:"0s"`
	WorkItemSweepInterval time.Duration `env:"WORK_ITEM_SWEEP_INTERVAL" default:"1m"`

	SubmitRateLimit float64 `env:"SUBMIT_RATE_LIMIT" default:"2"`
	SubmitRateBurst int     `env:"SUBMIT_RATE_BURST" default:"5"`

	MaxWebSocketConnections int `env:"MAX_WEBSOCKET_CONNECTIONS" default:"64"`
}

// InferenceArgv splits INFERENCE_ARGS on whitespace.
func (c *Server) InferenceArgv() []string {
	return strings.Fields(c.InferenceArgs)
}

func (c *Server) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Client configures one invocation of the client view.
type Client struct {
	CoordinatorURL string `env:"COORDINATOR_URL" default:"http://localhost:8080"`
	ClientID       string `env:"CLIENT_ID" default:"default"`
	LogLevel       string `env:"LOG_LEVEL" default:"warn"`
	LogFormat      string `env:"LOG_FORMAT" default:"text"`

	StoreBackend string `env:"STORE_BACKEND" default:"redis"`
	RedisURL     string `env:"REDIS_URL"`

	PollInterval          time.Duration `env:"POLL_INTERVAL" default:"1s"`
	PollTimeout           time.Duration `env:"POLL_TIMEOUT" default:"10m"`
	LoadMaxAttempts       int           `env:"LOAD_MAX_ATTEMPTS" default:"3"`
	LoadRetryDelay        time.Duration `env:"LOAD_RETRY_DELAY" default:"2s"`
	StatusRecheckInterval time.Duration `env:"STATUS_RECHECK_INTERVAL" default:"1500ms"`
	RequestTimeout        time.Duration `env:"REQUEST_TIMEOUT" default:"10s"`
}

// LoadServer reads the coordinator configuration from the environment.
func LoadServer() (*Server, error) {
	loadDotEnv()

	var cfg Server
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validateServer(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadClient reads the client view configuration from the environment.
func LoadClient() (*Client, error) {
	loadDotEnv()

	var cfg Client
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validateClient(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}
}

func validateServer(cfg *Server) error {
	if err := validateStore(cfg.StoreBackend, cfg.RedisURL); err != nil {
		return err
	}

	switch cfg.InferenceBackend {
	case InferenceExec:
		if cfg.InferenceCommand == "" {
			return errors.New("INFERENCE_COMMAND is required")
		}
	case InferenceEcho:
	default:
		return fmt.Errorf("INFERENCE_BACKEND must be %q or %q, got %q", InferenceExec, InferenceEcho, cfg.InferenceBackend)
	}

	if cfg.ModelMaxNewTokens <= 0 {
		return errors.New("MODEL_MAX_NEW_TOKENS must be positive")
	}
	if cfg.WorkItemRetention < 0 {
		return errors.New("WORK_ITEM_RETENTION must not be negative")
	}
	if cfg.WorkItemRetention > 0 && cfg.WorkItemSweepInterval <= 0 {
		return errors.New("WORK_ITEM_SWEEP_INTERVAL must be positive when retention is enabled")
	}
	if cfg.SubmitRateLimit <= 0 || cfg.SubmitRateBurst <= 0 {
		return errors.New("SUBMIT_RATE_LIMIT and SUBMIT_RATE_BURST must be positive")
	}

	return nil
}

// validateClient insists on redis: every invocation is a fresh process, so a
// memory store would forget the view and the enabled flag between commands.
func validateClient(cfg *Client) error {
	if cfg.StoreBackend != StoreRedis {
		return fmt.Errorf("STORE_BACKEND must be %q for the client, got %q", StoreRedis, cfg.StoreBackend)
	}
	if err := validateStore(cfg.StoreBackend, cfg.RedisURL); err != nil {
		return err
	}

	required := map[string]string{
		"COORDINATOR_URL": cfg.CoordinatorURL,
		"CLIENT_ID":       cfg.ClientID,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if _, err := url.ParseRequestURI(cfg.CoordinatorURL); err != nil {
		return fmt.Errorf("COORDINATOR_URL must be a valid URL: %w", err)
	}
	if cfg.LoadMaxAttempts < 1 {
		return errors.New("LOAD_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.PollInterval <= 0 {
		return errors.New("POLL_INTERVAL must be positive")
	}
	if cfg.PollTimeout < 0 {
		return errors.New("POLL_TIMEOUT must not be negative")
	}

	return nil
}

func validateStore(backend, redisURL string) error {
	switch backend {
	case StoreRedis:
		if redisURL == "" {
			return errors.New("REDIS_URL is required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreRedis, StoreMemory, backend)
	}
	return nil
}
