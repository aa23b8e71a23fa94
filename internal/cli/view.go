package cli

import (
	"errors"

	"github.com/sleepydirt/vision/internal/client"
	"github.com/sleepydirt/vision/internal/domain"
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Show the saved view, finishing an interrupted request",
	Long: `Restores the saved view. If it was waiting on a request, the request is
reconciled with the coordinator's records and, if still processing, awaited.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		return withController(ctx, cmd.ErrOrStderr(), func(c *client.Controller) error {
			view, _, err := c.Resume(ctx)
			if err != nil && !errors.Is(err, domain.ErrUnknownRequest) {
				return err
			}
			printView(cmd.OutOrStdout(), view)
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the saved view",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withController(cmd.Context(), cmd.ErrOrStderr(), func(c *client.Controller) error {
			return c.Reset(cmd.Context())
		})
	},
}
