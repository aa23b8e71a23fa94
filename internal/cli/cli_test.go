package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/sleepydirt/vision/internal/adapter/memory"
	"github.com/sleepydirt/vision/internal/client"
	"github.com/sleepydirt/vision/internal/domain"
	"github.com/sleepydirt/vision/internal/platform/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG.
var pngBytes, _ = base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

type stubChannel struct {
	status    domain.ModelStatus
	result    domain.Result
	requests  map[string]domain.RequestStatus
	unloaded  int
	lastImage string
}

func (s *stubChannel) CheckModelStatus(context.Context) (domain.ModelStatus, error) {
	return s.status, nil
}

func (s *stubChannel) LoadModel(context.Context) (domain.Outcome, error) {
	s.status = domain.ModelLoaded
	return domain.Succeeded(), nil
}

func (s *stubChannel) UnloadModel(context.Context) (domain.Outcome, error) {
	s.unloaded++
	s.status = domain.ModelNotLoaded
	return domain.Succeeded(), nil
}

func (s *stubChannel) ExplainImage(_ context.Context, imageData, _ string) (domain.Result, error) {
	s.lastImage = imageData
	return s.result, nil
}

func (s *stubChannel) CheckRequestStatus(_ context.Context, id string) (domain.RequestStatus, error) {
	if st, ok := s.requests[id]; ok {
		return st, nil
	}
	return domain.UnknownRequestStatus(), nil
}

func (s *stubChannel) Subscribe(ctx context.Context) (<-chan domain.RequestUpdate, error) {
	return make(chan domain.RequestUpdate), nil
}

// useStub routes every activation in the test to ch and one shared store.
func useStub(t *testing.T, ch *stubChannel) *memory.Store {
	t.Helper()
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("CLIENT_ID", "test-view")

	store := memory.NewStore()
	clock := clockwork.NewFakeClock()
	orig := newActivation
	newActivation = func(_ context.Context, cfg *config.Client, statusOut io.Writer) (*activation, error) {
		c := client.NewController(client.Config{ClientID: cfg.ClientID}, ch, store, clock, func(text string) {
			_, _ = io.WriteString(statusOut, text+"\n")
		})
		return &activation{controller: c, close: func() error { return nil }}, nil
	}
	t.Cleanup(func() {
		newActivation = orig
		statusWait = false
		clientIDFlag = ""
		coordinatorFlag = ""
	})
	return store
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := Execute(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	pngPath := filepath.Join(dir, "pixel.png")
	require.NoError(t, os.WriteFile(pngPath, pngBytes, 0o600))
	textPath := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(textPath, []byte("hello there"), 0o600))
	emptyPath := filepath.Join(dir, "empty.png")
	require.NoError(t, os.WriteFile(emptyPath, nil, 0o600))

	tests := []struct {
		name    string
		arg     string
		want    string
		wantErr string
	}{
		{name: "https url", arg: "https://example.com/cat.jpg", want: "https://example.com/cat.jpg"},
		{name: "http url", arg: "http://example.com/cat.jpg", want: "http://example.com/cat.jpg"},
		{name: "data url", arg: "data:image/png;base64,AAAA", want: "data:image/png;base64,AAAA"},
		{name: "png file", arg: pngPath, want: "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)},
		{name: "text file", arg: textPath, wantErr: "is not an image"},
		{name: "empty file", arg: emptyPath, wantErr: "is empty"},
		{name: "missing file", arg: filepath.Join(dir, "nope.png"), wantErr: "failed to read image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadImage(tt.arg)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExplainCommand(t *testing.T) {
	ch := &stubChannel{status: domain.ModelLoaded, result: domain.Result{Success: true, Explanation: "A single transparent pixel."}}
	store := useStub(t, ch)

	stdout, _, err := run(t, "explain", "https://example.com/pixel.png")

	require.NoError(t, err)
	assert.Equal(t, "A single transparent pixel.\n", stdout)
	assert.Equal(t, "https://example.com/pixel.png", ch.lastImage)

	saved, err := store.LoadViewState(context.Background(), "test-view")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "A single transparent pixel.", saved.Explanation)
}

func TestExplainCommand_FailureResult(t *testing.T) {
	ch := &stubChannel{status: domain.ModelLoaded, result: domain.Result{Error: "inference failed"}}
	useStub(t, ch)

	stdout, _, err := run(t, "explain", "https://example.com/pixel.png")

	require.Error(t, err)
	assert.Equal(t, "Error: inference failed\n", stdout)
}

func TestExplainCommand_RejectsNonImage(t *testing.T) {
	useStub(t, &stubChannel{status: domain.ModelLoaded})
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o600))

	_, _, err := run(t, "explain", path)

	assert.ErrorContains(t, err, "is not an image")
}

func TestStatusCommand(t *testing.T) {
	store := useStub(t, &stubChannel{status: domain.ModelLoaded})
	ctx := context.Background()
	require.NoError(t, store.SetEnabled(ctx, true))
	require.NoError(t, store.SaveViewState(ctx, "test-view", domain.ClientViewState{Explanation: "a lighthouse"}))

	stdout, _, err := run(t, "status")

	require.NoError(t, err)
	assert.Equal(t, "Model: Loaded\nEnabled: true\na lighthouse\n", stdout)
}

func TestResumeCommand_UnknownRequest(t *testing.T) {
	store := useStub(t, &stubChannel{status: domain.ModelLoaded})
	require.NoError(t, store.SaveViewState(context.Background(), "test-view", domain.ClientViewState{RequestID: "gone", IsProcessing: true}))

	stdout, _, err := run(t, "resume")

	require.NoError(t, err)
	assert.Equal(t, "Error: "+client.TextUnknownRequest+"\n", stdout)
}

func TestLoadCommand_ReportsProgress(t *testing.T) {
	ch := &stubChannel{status: domain.ModelNotLoaded}
	useStub(t, ch)

	_, stderr, err := run(t, "load")

	require.NoError(t, err)
	assert.Equal(t, domain.ModelLoaded, ch.status)
	assert.Equal(t, "Model: Loading...\nModel: Loaded\n", stderr)
}

func TestDisableCommand(t *testing.T) {
	ch := &stubChannel{status: domain.ModelLoaded}
	store := useStub(t, ch)
	ctx := context.Background()
	require.NoError(t, store.SetEnabled(ctx, true))
	require.NoError(t, store.SaveViewState(ctx, "test-view", domain.ClientViewState{Explanation: "old"}))

	_, _, err := run(t, "disable")

	require.NoError(t, err)
	assert.Equal(t, 1, ch.unloaded)
	enabled, err := store.Enabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)
	saved, err := store.LoadViewState(ctx, "test-view")
	require.NoError(t, err)
	assert.Nil(t, saved)
}

func TestClientIDFlagOverridesEnv(t *testing.T) {
	store := useStub(t, &stubChannel{status: domain.ModelLoaded})
	require.NoError(t, store.SaveViewState(context.Background(), "other-view", domain.ClientViewState{Explanation: "from the other view"}))

	stdout, _, err := run(t, "resume", "--client-id", "other-view")

	require.NoError(t, err)
	assert.Equal(t, "from the other view\n", stdout)
}

func TestPrintView(t *testing.T) {
	tests := []struct {
		name string
		view domain.ClientViewState
		want string
	}{
		{"processing", domain.ClientViewState{RequestID: "17", IsProcessing: true}, "Processing request 17...\n"},
		{"error", domain.ClientViewState{Error: "boom"}, "Error: boom\n"},
		{"explanation", domain.ClientViewState{Explanation: "a cat"}, "a cat\n"},
		{"empty", domain.ClientViewState{}, "Nothing to show.\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printView(&buf, tt.view)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestExplainCommand_ModelStillLoading(t *testing.T) {
	useStub(t, &stubChannel{status: domain.ModelLoading})

	_, _, err := run(t, "explain", "https://example.com/pixel.png")

	assert.EqualError(t, err, client.TextModelLoading)
}
