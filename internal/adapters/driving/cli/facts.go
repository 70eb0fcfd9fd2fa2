package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/acqgen/internal/core/domain"
)

var (
	factsProgram string
	factsKind    string
	factsTypes   []string
	factsJSON    bool
)

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Show committed facts",
	Long: `Shows the facts of one kind committed for a program, merged across
documents. When two documents carry the same fact the most recent wins.`,
	RunE: runFacts,
}

func init() {
	factsCmd.Flags().StringVarP(&factsProgram, "program", "p", "", "acquisition program name")
	factsCmd.Flags().StringVarP(&factsKind, "kind", "k", "", "fact kind: requirement, cost, date, entity or metric")
	factsCmd.Flags().StringSliceVarP(&factsTypes, "type", "t", nil, "only facts from these document types")
	factsCmd.Flags().BoolVar(&factsJSON, "json", false, "output facts as JSON")
	_ = factsCmd.MarkFlagRequired("program")
	_ = factsCmd.MarkFlagRequired("kind")
	rootCmd.AddCommand(factsCmd)
}

func runFacts(cmd *cobra.Command, _ []string) error {
	if packageService == nil {
		return errors.New("package service not configured")
	}

	set, err := packageService.Facts(cmd.Context(), factsProgram, domain.FactKind(factsKind), factsTypes...)
	if err != nil {
		return fmt.Errorf("failed to look up facts: %w", err)
	}

	if factsJSON {
		return outputJSON(cmd, set.Facts)
	}

	if set.Len() == 0 {
		cmd.Printf("No %s facts committed for %s.\n", factsKind, factsProgram)
		return nil
	}

	for i, f := range set.Facts {
		cmd.Printf("  [%d] %s\n", i+1, f.Text)
		detail := fmt.Sprintf("%s, confidence %.2f", f.Stage, f.Confidence)
		if f.NumericValue != nil {
			detail = fmt.Sprintf("%g %s, %s", *f.NumericValue, f.Unit, detail)
		}
		if f.SourceID != "" {
			detail += ", from " + f.SourceID
		}
		cmd.Printf("      %s\n", detail)
	}
	cmd.Printf("\nTotal: %d facts\n", set.Len())
	return nil
}
