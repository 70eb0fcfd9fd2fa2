package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/acqgen/internal/core/domain"
)

var (
	evaluateType    string
	evaluateProgram string
	evaluateJSON    bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [file]",
	Short: "Score a document draft",
	Long: `Scores a Markdown draft on hallucination, vague language, citations,
compliance and completeness.

With --type the draft is checked against that document type's required
sections, clauses and length. With --program the facts committed for the
program count as supporting evidence.`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVarP(&evaluateType, "type", "t", "", "catalogue document type")
	evaluateCmd.Flags().StringVarP(&evaluateProgram, "program", "p", "", "program whose committed facts support the draft")
	evaluateCmd.Flags().BoolVar(&evaluateJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	if qualityService == nil {
		return errors.New("quality service not configured")
	}

	content, err := os.ReadFile(filepath.Clean(args[0]))
	if err != nil {
		return fmt.Errorf("failed to read draft: %w", err)
	}

	input := domain.EvaluationInput{DocumentType: evaluateType, ProgramName: evaluateProgram}
	if evaluateType != "" {
		spec, ok := catalog.Get(evaluateType)
		if !ok {
			return fmt.Errorf("%w: document type %s", domain.ErrUnsupportedType, evaluateType)
		}
		input.RequiredSections = spec.RequiredSections()
		input.RequiredClauses = spec.RequiredClauses
		input.MinWords = spec.MinWords
	}
	if evaluateProgram != "" && packageService != nil {
		var facts []domain.ExtractedFact
		for _, kind := range domain.AllFactKinds() {
			set, err := packageService.Facts(cmd.Context(), evaluateProgram, kind)
			if err != nil {
				return fmt.Errorf("failed to load facts: %w", err)
			}
			facts = append(facts, set.Facts...)
		}
		input.Facts = domain.NewFactSet(facts)
	}

	report := qualityService.Evaluate(string(content), input)

	if evaluateJSON {
		return outputJSON(cmd, report)
	}

	cmd.Printf("Overall: %.1f (%s)\n\n", report.OverallScore, report.Grade)
	cmd.Printf("  Hallucination:  %5.1f\n", report.DimensionScores.Hallucination)
	cmd.Printf("  Vague language: %5.1f\n", report.DimensionScores.VagueLanguage)
	cmd.Printf("  Citations:      %5.1f\n", report.DimensionScores.Citations)
	cmd.Printf("  Compliance:     %5.1f\n", report.DimensionScores.Compliance)
	cmd.Printf("  Completeness:   %5.1f\n", report.DimensionScores.Completeness)

	if len(report.Issues) > 0 {
		cmd.Println("\nIssues:")
		for _, issue := range report.Issues {
			cmd.Printf("  - %s\n", issue)
		}
	}
	if len(report.Suggestions) > 0 {
		cmd.Println("\nSuggestions:")
		for _, s := range report.Suggestions {
			cmd.Printf("  - %s\n", s)
		}
	}
	return nil
}
