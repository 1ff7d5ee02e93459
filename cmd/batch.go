package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"recon-engine/core/batch"
	"recon-engine/core/graph"
	"recon-engine/core/rules"

	"github.com/spf13/cobra"
)

var (
	// Flags for the batch command
	sourceFile string
	targetFile string
	rulesFile  string
	fuzzyFirst bool
)

// batchCmd runs a one-shot batch reconciliation from JSON files.
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Reconcile two record sets from files and print the report",
	Long: `Reconcile a source record set against a target record set using a
rule set, all read from JSON files. The full report (matches plus
exceptions) is printed to stdout as JSON.

Examples:
  # Exact rules win ties first (default)
  recon-engine batch --source bank.json --target ledger.json --rules rules.json

  # Let fuzzy rules claim candidates before exact ones
  recon-engine batch --source bank.json --target ledger.json --rules rules.json --fuzzy-first`,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&sourceFile, "source", "", "Path to the source records JSON file")
	batchCmd.Flags().StringVar(&targetFile, "target", "", "Path to the target records JSON file")
	batchCmd.Flags().StringVar(&rulesFile, "rules", "", "Path to the matching rules JSON file")
	batchCmd.Flags().BoolVar(&fuzzyFirst, "fuzzy-first", false, "Run fuzzy rules before exact rules")
	_ = batchCmd.MarkFlagRequired("source")
	_ = batchCmd.MarkFlagRequired("target")
	_ = batchCmd.MarkFlagRequired("rules")

	RootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	var sources, targets []graph.FinancialRecord
	if err := readJSONFile(sourceFile, &sources); err != nil {
		return fmt.Errorf("failed to read source records: %w", err)
	}
	if err := readJSONFile(targetFile, &targets); err != nil {
		return fmt.Errorf("failed to read target records: %w", err)
	}

	var ruleSet []rules.MatchingRule
	if err := readJSONFile(rulesFile, &ruleSet); err != nil {
		return fmt.Errorf("failed to read rules: %w", err)
	}

	for i := range sources {
		sources[i].Role = graph.RoleSource
	}
	for i := range targets {
		targets[i].Role = graph.RoleTarget
	}

	order := batch.ExactFirst
	if fuzzyFirst {
		order = batch.FuzzyFirst
	}

	result, err := batch.Run(sources, targets, ruleSet, order)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func readJSONFile(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
