package cli

import (
	"context"
	"os"

	"github.com/sleepydirt/vision/internal/platform/config"
	"github.com/sleepydirt/vision/internal/platform/logging"
	"github.com/spf13/cobra"
)

var (
	clientIDFlag    string
	coordinatorFlag string
)

var rootCmd = &cobra.Command{
	Use:   "visionctl",
	Short: "Client view for the image explanation coordinator",
	Long: `visionctl submits images to a running vision coordinator and shows the
explanation. The last view is saved per client id, so an interrupted request
can be picked up again with "visionctl resume".`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command. ctx is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&clientIDFlag, "client-id", "", "Client view id (overrides CLIENT_ID)")
	rootCmd.PersistentFlags().StringVar(&coordinatorFlag, "coordinator", "", "Coordinator base URL (overrides COORDINATOR_URL)")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(unloadCmd)
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
}

var clientConfig *config.Client

func loadConfig(cmd *cobra.Command, _ []string) error {
	if cmd == versionCmd {
		return nil
	}

	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	if clientIDFlag != "" {
		cfg.ClientID = clientIDFlag
	}
	if coordinatorFlag != "" {
		cfg.CoordinatorURL = coordinatorFlag
	}

	// stdout carries results only.
	logging.InitLoggerTo(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	clientConfig = cfg
	return nil
}
