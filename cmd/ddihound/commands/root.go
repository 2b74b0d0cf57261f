// Package commands implements the CLI commands for ddihound.
package commands

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "ddihound",
	Short: "Resumable drug-drug interaction scraper",
	Long: `Ddihound walks a CSV of drug pairs through a public interaction
checker and records the reported severity for each pair.

Runs span hours and sites fail in creative ways, so every finished pair
is checkpointed durably: kill the process at any point and the next run
picks up at the first unfinished pair.

Examples:
  # Generate a pair template from a drug list
  ddihound pairs --drugs drugs.yaml -o pairs.csv

  # Check the site is serveable before burning a long run
  ddihound probe --source drugscom

  # Run (and later resume) the pipeline
  ddihound run -i pairs.csv --source drugscom

  # Process a slice of the queue with a slower cadence
  ddihound run -i pairs.csv --start 100 --end 200 --delay 5s`,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.ddihound.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "only log errors")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".ddihound")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("DDIHOUND")
	viper.AutomaticEnv()

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
