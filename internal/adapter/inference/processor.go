package inference

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sleepydirt/vision/internal/domain"
)

var ErrUnsupportedImage = errors.New("unsupported image reference")

// imageProcessor checks the payload and attaches the prompt and generation
// parameters. Resizing is left to the worker, which knows the model's input
// format.
type imageProcessor struct {
	cfg Config
}

func newImageProcessor(cfg Config) *imageProcessor {
	return &imageProcessor{cfg: cfg}
}

func (p *imageProcessor) Prepare(_ context.Context, payload domain.Payload) (domain.Prepared, error) {
	if err := ValidateImageRef(payload.ImageData); err != nil {
		return domain.Prepared{}, err
	}
	return domain.Prepared{
		ModelID:      p.cfg.ModelID,
		Prompt:       p.cfg.Prompt,
		ImageData:    payload.ImageData,
		ImageSize:    p.cfg.ImageSize,
		MaxNewTokens: p.cfg.MaxNewTokens,
	}, nil
}

func (p *imageProcessor) Release(context.Context) error { return nil }

// ValidateImageRef accepts base64 image data URLs and absolute http(s) URLs.
func ValidateImageRef(ref string) error {
	switch {
	case ref == "":
		return fmt.Errorf("%w: empty", ErrUnsupportedImage)
	case strings.HasPrefix(ref, "data:"):
		header, _, ok := strings.Cut(ref, ",")
		if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
			return fmt.Errorf("%w: expected a base64 image data URL", ErrUnsupportedImage)
		}
		return nil
	default:
		u, err := url.Parse(ref)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: expected a data URL or http(s) URL", ErrUnsupportedImage)
		}
		return nil
	}
}
