package cli

import (
	"fmt"

	"github.com/sleepydirt/vision/internal/client"
	"github.com/sleepydirt/vision/internal/domain"
	"github.com/spf13/cobra"
)

var statusWait bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the model status and the saved view",
	Long: `Shows whether the coordinator has the model loaded, whether loading is
enabled, and the last saved view for this client.

With --wait a loading model is re-checked until it settles.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWait, "wait", "w", false, "Wait while the model is loading")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return withController(ctx, cmd.ErrOrStderr(), func(c *client.Controller) error {
		var (
			status domain.ModelStatus
			err    error
		)
		if statusWait {
			status, err = c.WaitModelSettled(ctx)
		} else {
			status, err = c.ModelStatus(ctx)
		}
		if err != nil {
			return fmt.Errorf("failed to check model status: %w", err)
		}

		enabled, err := c.Enabled(ctx)
		if err != nil {
			return err
		}

		view, err := c.Restore(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintln(out, modelStatusText(status))
		fmt.Fprintf(out, "Enabled: %t\n", enabled)
		printView(out, view)
		return nil
	})
}
