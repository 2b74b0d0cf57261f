package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ddihound/ddihound/internal/dataset"
	"github.com/ddihound/ddihound/internal/logger"
	"github.com/ddihound/ddihound/internal/source"
)

var pairsCmd = &cobra.Command{
	Use:   "pairs",
	Short: "Generate a pair template from a drug list",
	Long: `Pairs expands a class-grouped drug list (YAML) into the work-item
CSV the pipeline consumes: every unordered cross-class pair exactly
once, result columns initialized to TBD.

Example drug list:
  classes:
    - name: ACE inhibitors
      drugs: [lisinopril, enalapril]
    - name: NSAIDs
      drugs: [ibuprofen, naproxen]

Example:
  ddihound pairs --drugs drugs.yaml -o pairs.csv`,
	RunE: runPairs,
}

func init() {
	rootCmd.AddCommand(pairsCmd)

	flags := pairsCmd.Flags()
	flags.String("drugs", "", "drug list YAML (required)")
	flags.StringP("output", "o", "pairs.csv", "template CSV to write")
	flags.StringP("source", "s", "", "pre-create result columns for this source (default: all)")

	_ = pairsCmd.MarkFlagRequired("drugs")
}

func runPairs(cmd *cobra.Command, args []string) error {
	if err := logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
	}); err != nil {
		return err
	}

	drugsPath, _ := cmd.Flags().GetString("drugs")
	outputPath, _ := cmd.Flags().GetString("output")
	sourceName, _ := cmd.Flags().GetString("source")

	var columns []string
	if sourceName != "" {
		profile, err := source.ByName(sourceName)
		if err != nil {
			logger.Error("unknown source", "error", err)
			return err
		}
		columns = []string{profile.SeverityColumn, profile.TextColumn}
	} else {
		for _, name := range source.Names() {
			profile, _ := source.ByName(name)
			columns = append(columns, profile.SeverityColumn, profile.TextColumn)
		}
	}

	list, err := dataset.LoadDrugList(drugsPath)
	if err != nil {
		logger.Error("failed to load drug list", "path", drugsPath, "error", err)
		return err
	}

	count, err := dataset.WriteTemplate(list, outputPath, columns)
	if err != nil {
		logger.Error("failed to write template", "path", outputPath, "error", err)
		return err
	}

	logger.Info("pair template written", "path", outputPath, "pairs", count)
	return nil
}
