package cli

import (
	"fmt"

	"github.com/sleepydirt/vision/internal/client"
	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the model on the coordinator",
	Long: `Asks the coordinator to load the model unless it already has it. A failed
load is retried with a fixed delay before giving up.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withController(cmd.Context(), cmd.ErrOrStderr(), func(c *client.Controller) error {
			return c.EnsureLoaded(cmd.Context())
		})
	},
}

var unloadCmd = &cobra.Command{
	Use:   "unload",
	Short: "Release the model on the coordinator",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withController(cmd.Context(), cmd.ErrOrStderr(), func(c *client.Controller) error {
			out, err := c.Unload(cmd.Context())
			if err != nil {
				return err
			}
			if !out.Success {
				return fmt.Errorf("unload failed: %s", out.Error)
			}
			return nil
		})
	},
}

var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable the coordinator and load the model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withController(cmd.Context(), cmd.ErrOrStderr(), func(c *client.Controller) error {
			return c.Enable(cmd.Context())
		})
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable the coordinator, unload the model and clear the view",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withController(cmd.Context(), cmd.ErrOrStderr(), func(c *client.Controller) error {
			return c.Disable(cmd.Context())
		})
	},
}
