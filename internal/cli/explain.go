package cli

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/sleepydirt/vision/internal/client"
	"github.com/sleepydirt/vision/internal/domain"
	"github.com/spf13/cobra"
)

var explainCmd = &cobra.Command{
	Use:   "explain <file|url>",
	Short: "Explain an image",
	Long: `Submits an image and prints its explanation. A local file must be an
image and is sent inline as a data URL. http and https URLs are passed to the
coordinator as they are.

Interrupting the command abandons the wait, not the request: run
"visionctl resume" to pick up the result.`,
	Args: cobra.ExactArgs(1),
	RunE: runExplain,
}

func runExplain(cmd *cobra.Command, args []string) error {
	imageData, err := loadImage(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	return withController(ctx, cmd.ErrOrStderr(), func(c *client.Controller) error {
		view, err := c.Submit(ctx, imageData)
		switch {
		case errors.Is(err, domain.ErrModelLoading):
			return errors.New(client.TextModelLoading)
		case err != nil:
			return err
		}
		printView(cmd.OutOrStdout(), view)
		if view.Error != "" {
			return errors.New("image was not explained")
		}
		return nil
	})
}

// loadImage turns a command line argument into the imageData the
// coordinator accepts.
func loadImage(arg string) (string, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") || strings.HasPrefix(arg, "data:image/") {
		return arg, nil
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%s is empty", arg)
	}

	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%s is not an image (detected %s)", arg, mime)
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
