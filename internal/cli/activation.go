package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jonboulle/clockwork"
	"github.com/sleepydirt/vision/internal/adapter/channel"
	redisadapter "github.com/sleepydirt/vision/internal/adapter/redis"
	"github.com/sleepydirt/vision/internal/client"
	"github.com/sleepydirt/vision/internal/platform/config"
)

// activation is one controller wired to its store and message channel.
type activation struct {
	controller *client.Controller
	close      func() error
}

// newActivation is swapped out in tests.
var newActivation = openActivation

func openActivation(ctx context.Context, cfg *config.Client, statusOut io.Writer) (*activation, error) {
	clock := clockwork.NewRealClock()

	rdb, err := redisadapter.NewClient(ctx, cfg.RedisURL, redisadapter.NewCircuitBreakerHook(nil))
	if err != nil {
		return nil, err
	}
	store := redisadapter.NewStore(rdb)

	ch := channel.NewClient(cfg.CoordinatorURL, cfg.RequestTimeout, clock)
	observer := func(text string) { fmt.Fprintln(statusOut, text) }

	controller := client.NewController(client.Config{
		ClientID:              cfg.ClientID,
		PollInterval:          cfg.PollInterval,
		PollTimeout:           cfg.PollTimeout,
		LoadMaxAttempts:       cfg.LoadMaxAttempts,
		LoadRetryDelay:        cfg.LoadRetryDelay,
		StatusRecheckInterval: cfg.StatusRecheckInterval,
	}, ch, store, clock, observer)

	return &activation{controller: controller, close: rdb.Close}, nil
}

// withController opens an activation for the duration of fn.
func withController(ctx context.Context, statusOut io.Writer, fn func(*client.Controller) error) (err error) {
	act, err := newActivation(ctx, clientConfig, statusOut)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := act.close(); cerr != nil && err == nil {
			err = fmt.Errorf("close store: %w", cerr)
		}
	}()
	return fn(act.controller)
}
