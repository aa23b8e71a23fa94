package inference

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/sleepydirt/vision/internal/domain"
)

// EchoLoader is an in-process backend that describes the input instead of
// running a model. Loads and generations are instant and deterministic.
type EchoLoader struct {
	cfg Config
}

var _ domain.ModelLoader = (*EchoLoader)(nil)

func NewEchoLoader(cfg Config) *EchoLoader {
	return &EchoLoader{cfg: cfg}
}

func (l *EchoLoader) LoadProcessor(context.Context) (domain.Processor, error) {
	return newImageProcessor(l.cfg), nil
}

func (l *EchoLoader) LoadGenerator(context.Context) (domain.Generator, error) {
	return echoGenerator{}, nil
}

type echoGenerator struct{}

func (echoGenerator) Generate(ctx context.Context, input domain.Prepared) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s (%s): %s", input.Prompt, input.ModelID, describeImage(input.ImageData)), nil
}

func (echoGenerator) Release(context.Context) error { return nil }

func describeImage(ref string) string {
	if header, data, ok := strings.Cut(ref, ","); ok && strings.HasPrefix(header, "data:") {
		mediaType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		return fmt.Sprintf("an inline %s image of %d bytes", mediaType, base64.StdEncoding.DecodedLen(len(data)))
	}
	if u, err := url.Parse(ref); err == nil && u.Host != "" {
		return fmt.Sprintf("a remote image hosted at %s", u.Host)
	}
	return "an image"
}
