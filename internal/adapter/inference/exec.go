package inference

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/sleepydirt/vision/internal/domain"
)

var ErrWorkerExited = errors.New("inference worker exited")

// ExecLoader loads the generator by starting an external worker process.
type ExecLoader struct {
	cfg   Config
	clock clockwork.Clock
}

var _ domain.ModelLoader = (*ExecLoader)(nil)

func NewExecLoader(cfg Config, clock clockwork.Clock) (*ExecLoader, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("inference command is required")
	}
	return &ExecLoader{cfg: cfg, clock: clock}, nil
}

func (l *ExecLoader) LoadProcessor(context.Context) (domain.Processor, error) {
	return newImageProcessor(l.cfg), nil
}

// LoadGenerator starts the worker and blocks until it reports ready, reports
// a load error, exits, or ctx ends.
func (l *ExecLoader) LoadGenerator(ctx context.Context) (domain.Generator, error) {
	args := append(append([]string{}, l.cfg.Args...), "--model", l.cfg.ModelID)
	// Not CommandContext: the worker must outlive the load context.
	cmd := exec.Command(l.cfg.Command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start inference worker: %w", err)
	}

	g := &execGenerator{
		cfg:       l.cfg,
		clock:     l.clock,
		cmd:       cmd,
		stdin:     stdin,
		responses: make(chan workerMessage, 1),
		stop:      make(chan struct{}),
		exited:    make(chan struct{}),
	}

	slog.Info("Inference worker spawned", "pid", cmd.Process.Pid, "model", l.cfg.ModelID)

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		g.readResponses(stdout)
	}()
	go func() {
		defer readers.Done()
		logStderr(stderr, cmd.Process.Pid)
	}()
	go func() {
		// Wait closes the pipes, so the readers must finish first.
		readers.Wait()
		g.waitErr = cmd.Wait()
		close(g.exited)
	}()

	if err := g.awaitReady(ctx); err != nil {
		close(g.stop)
		_ = g.kill()
		<-g.exited
		return nil, err
	}

	slog.Info("Inference worker ready", "pid", cmd.Process.Pid)
	return g, nil
}

type execGenerator struct {
	cfg   Config
	clock clockwork.Clock

	cmd   *exec.Cmd
	stdin io.WriteCloser

	responses chan workerMessage
	stop      chan struct{}
	exited    chan struct{}
	waitErr   error

	// mu serializes requests; the worker handles one at a time.
	mu      sync.Mutex
	nextID  uint64
	broken  bool
	release sync.Once
}

func (g *execGenerator) awaitReady(ctx context.Context) error {
	select {
	case msg, ok := <-g.responses:
		if !ok {
			return fmt.Errorf("%w before becoming ready", ErrWorkerExited)
		}
		switch msg.Type {
		case msgReady:
			return nil
		case msgError:
			return fmt.Errorf("inference worker failed to load: %s", msg.Error)
		default:
			return fmt.Errorf("unexpected %q message while waiting for ready", msg.Type)
		}
	case <-ctx.Done():
		return fmt.Errorf("waiting for inference worker: %w", ctx.Err())
	}
}

func (g *execGenerator) Generate(ctx context.Context, input domain.Prepared) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.broken {
		return "", fmt.Errorf("inference worker unusable after an interrupted write")
	}

	if g.cfg.InferenceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.InferenceTimeout)
		defer cancel()
	}

	g.nextID++
	id := g.nextID
	req := workerRequest{
		Type:         msgGenerate,
		ID:           id,
		ModelID:      input.ModelID,
		Prompt:       input.Prompt,
		Image:        input.ImageData,
		ImageSize:    input.ImageSize,
		MaxNewTokens: input.MaxNewTokens,
	}

	writeErr := make(chan error, 1)
	go func() { writeErr <- writeFrame(g.stdin, req) }()

	select {
	case err := <-writeErr:
		if err != nil {
			return "", fmt.Errorf("send request to inference worker: %w", err)
		}
	case <-g.exited:
		return "", ErrWorkerExited
	case <-ctx.Done():
		// The frame may be half written; nothing after it can be trusted.
		g.broken = true
		return "", ctx.Err()
	}

	for {
		select {
		case msg, ok := <-g.responses:
			if !ok {
				return "", ErrWorkerExited
			}
			if msg.ID != id {
				// Late answer to a request whose caller gave up.
				slog.Debug("Discarding stale inference response", "id", msg.ID, "want", id)
				continue
			}
			if msg.Type == msgError || msg.Error != "" {
				if msg.Error == "" {
					return "", errors.New("inference failed")
				}
				return "", errors.New(msg.Error)
			}
			return msg.Text, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Release closes stdin so the worker can finish what it is doing and exit on
// its own. It kills the worker if it is still running after the grace period
// or once ctx ends.
func (g *execGenerator) Release(ctx context.Context) error {
	var err error
	g.release.Do(func() {
		_ = g.stdin.Close()

		select {
		case <-g.exited:
		case <-g.clock.After(g.cfg.stopGrace()):
			slog.Warn("Inference worker did not exit in time, killing", "pid", g.cmd.Process.Pid)
			close(g.stop)
			err = g.kill()
			<-g.exited
		case <-ctx.Done():
			close(g.stop)
			err = g.kill()
			<-g.exited
		}
	})
	return err
}

func (g *execGenerator) kill() error {
	if err := g.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill inference worker: %w", err)
	}
	return nil
}

func (g *execGenerator) readResponses(r io.Reader) {
	defer close(g.responses)

	br := bufio.NewReader(r)
	for {
		var msg workerMessage
		if err := readFrame(br, &msg); err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Error("Failed to read from inference worker", "error", err)
			}
			return
		}
		select {
		case g.responses <- msg:
		case <-g.stop:
			// Keep draining so the worker never blocks on a full stdout.
		}
	}
}

// logStderr forwards worker stderr lines to slog, mapping Python-style level
// markers.
func logStderr(r io.Reader, pid int) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "[ERROR]"), strings.Contains(line, "[CRITICAL]"):
			slog.Error("Inference worker error", "pid", pid, "log", line)
		case strings.Contains(line, "[WARNING]"), strings.Contains(line, "[WARN]"):
			slog.Warn("Inference worker warning", "pid", pid, "log", line)
		default:
			slog.Debug("Inference worker log", "pid", pid, "log", line)
		}
	}
}
