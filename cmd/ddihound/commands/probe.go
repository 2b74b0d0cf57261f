package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ddihound/ddihound/internal/logger"
	"github.com/ddihound/ddihound/internal/source"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Static preflight against a source",
	Long: `Probe fetches the source's checker page without a browser and
reports whether it is worth starting a long run: HTTP status, bot
challenge detection and whether the search field is present in the
static HTML.

Example:
  ddihound probe --source drugscom`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	flags := probeCmd.Flags()
	flags.StringP("source", "s", "drugscom", "interaction checker to probe")
	flags.Duration("timeout", 15*time.Second, "request timeout")
}

func runProbe(cmd *cobra.Command, args []string) error {
	if err := logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
	}); err != nil {
		return err
	}

	sourceName, _ := cmd.Flags().GetString("source")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	profile, err := source.ByName(sourceName)
	if err != nil {
		logger.Error("unknown source", "error", err)
		return err
	}

	report, err := source.Probe(profile, timeout)
	if err != nil {
		logger.Error("probe failed", "url", profile.CheckerURL, "error", err)
		return err
	}

	logger.Info("probe complete",
		"url", report.URL,
		"status", report.StatusCode,
		"title", report.Title,
		"body_bytes", report.BodySize,
		"input_found", report.InputFound,
		"challenge", report.Challenge)

	if report.Challenge != "" {
		return fmt.Errorf("source is behind a %s challenge; a run would stall", report.Challenge)
	}
	if report.StatusCode != 200 {
		return fmt.Errorf("source answered with status %d", report.StatusCode)
	}
	return nil
}
