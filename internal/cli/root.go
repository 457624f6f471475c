package cli

import (
	"github.com/spf13/cobra"

	"github.com/seuros/pathflow/internal/config"
)

var Version string

// Global flags
var (
	flagDatabaseURL string
	flagPort        string
	flagRedisURL    string
)

// RootCmd represents the root command
var RootCmd = &cobra.Command{
	Use:   "pathflow",
	Short: "Visitor journeys and funnel drafting",
	Long: `Pathflow - visitor journey aggregation.

Pathflow turns recorded visits into a column-per-step flow of pages and
events, lets dashboards drill into it, and saves funnels drafted from it.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
	// Default to serve command if no subcommand provided
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return runServe()
		}
		return cmd.Help()
	},
}

// Execute is called by main
func Execute(version string) error {
	Version = version
	RootCmd.Version = version
	return RootCmd.Execute()
}

// loadConfig merges file, environment and global flag values.
func loadConfig() (*config.Config, error) {
	return config.LoadWithOverrides(flagDatabaseURL, flagPort, flagRedisURL)
}

func init() {
	RootCmd.PersistentFlags().StringVar(&flagDatabaseURL, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	RootCmd.PersistentFlags().StringVar(&flagPort, "port", "", "HTTP port (overrides PORT)")
	RootCmd.PersistentFlags().StringVar(&flagRedisURL, "redis-url", "", "Redis URL for the path cache (overrides REDIS_URL)")

	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(flowCmd)
	RootCmd.AddCommand(funnelsCmd)
}
