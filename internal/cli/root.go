package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/weiawesome/hybrid-relay/internal/config"
	"github.com/weiawesome/hybrid-relay/pkg/log"
)

const serviceName = "hybrid-relay"

var configFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "relay",
	Short:         "Realtime signaling and room relay for live coding streams",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config/config.yaml)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newStreamCmd())
	rootCmd.AddCommand(newCodeCmd())
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		l := log.L()
		l.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// loadConfig loads the configuration and initialises the global logger.
func loadConfig(instanceID string) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	log.Init(log.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: serviceName,
		InstanceID:  instanceID,
	})
	return cfg, nil
}
