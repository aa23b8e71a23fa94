package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setServerEnv(t *testing.T) {
	t.Helper()
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("INFERENCE_COMMAND", "/usr/bin/python3")
}

func TestLoadServer_AllRequiredVarsSet(t *testing.T) {
	setServerEnv(t)

	cfg, err := LoadServer()
	require.NoError(t, err)

	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, "/usr/bin/python3", cfg.InferenceCommand)
}

func TestLoadServer_DefaultValues(t *testing.T) {
	setServerEnv(t)

	cfg, err := LoadServer()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoreRedis, cfg.StoreBackend)
	assert.Equal(t, InferenceExec, cfg.InferenceBackend)
	assert.Equal(t, "Explain this image.", cfg.ModelPrompt)
	assert.Equal(t, 1024, cfg.ModelMaxNewTokens)
	assert.Equal(t, 256, cfg.ModelImageSize)
	assert.Equal(t, time.Duration(0), cfg.WorkItemRetention)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadServer_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing REDIS_URL", map[string]string{"REDIS_URL": ""}, "REDIS_URL is required"},
		{"missing INFERENCE_COMMAND", map[string]string{"INFERENCE_COMMAND": ""}, "INFERENCE_COMMAND is required"},
		{"bad store backend", map[string]string{"STORE_BACKEND": "etcd"}, `STORE_BACKEND must be "redis" or "memory", got "etcd"`},
		{"bad inference backend", map[string]string{"INFERENCE_BACKEND": "grpc"}, `INFERENCE_BACKEND must be "exec" or "echo", got "grpc"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setServerEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadServer()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestLoadServer_MemoryBackendNeedsNoRedis(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("REDIS_URL", "")
	t.Setenv("INFERENCE_BACKEND", "echo")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
}

func TestLoadServer_InferenceArgv(t *testing.T) {
	setServerEnv(t)
	t.Setenv("INFERENCE_ARGS", "worker.py  --device cuda")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, []string{"worker.py", "--device", "cuda"}, cfg.InferenceArgv())
}

func TestLoadServer_RetentionNeedsSweepInterval(t *testing.T) {
	setServerEnv(t)
	t.Setenv("WORK_ITEM_RETENTION", "24h")
	t.Setenv("WORK_ITEM_SWEEP_INTERVAL", "0s")

	_, err := LoadServer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WORK_ITEM_SWEEP_INTERVAL")
}

func TestLoadClient_Defaults(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	cfg, err := LoadClient()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.CoordinatorURL)
	assert.Equal(t, "default", cfg.ClientID)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.PollTimeout)
	assert.Equal(t, 3, cfg.LoadMaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.LoadRetryDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.StatusRecheckInterval)
}

func TestLoadClient_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"zero attempts", "LOAD_MAX_ATTEMPTS", "0", "LOAD_MAX_ATTEMPTS must be at least 1"},
		{"zero poll interval", "POLL_INTERVAL", "0s", "POLL_INTERVAL must be positive"},
		{"negative poll timeout", "POLL_TIMEOUT", "-1s", "POLL_TIMEOUT must not be negative"},
		{"memory store", "STORE_BACKEND", "memory", `STORE_BACKEND must be "redis" for the client, got "memory"`},
		{"missing redis url", "REDIS_URL", "", "REDIS_URL is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("REDIS_URL", "redis://localhost:6379")
			t.Setenv(tt.key, tt.value)

			_, err := LoadClient()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}
