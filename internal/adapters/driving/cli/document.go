package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/acqgen/internal/core/domain"
)

var (
	documentProgram     string
	documentDescription string
	documentOverwrite   bool
	documentJSON        bool
)

var documentCmd = &cobra.Command{
	Use:   "document [type]",
	Short: "Generate a single document",
	Long: `Generates one document of a program. The documents it depends on must
already be committed; run 'acqgen order' to see the dependency order.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocument,
}

func init() {
	documentCmd.Flags().StringVarP(&documentProgram, "program", "p", "", "acquisition program name")
	documentCmd.Flags().StringVarP(&documentDescription, "description", "d", "", "program description appended to the retrieval query")
	documentCmd.Flags().BoolVar(&documentOverwrite, "overwrite", false, "regenerate if a record already exists")
	documentCmd.Flags().BoolVar(&documentJSON, "json", false, "output the result as JSON")
	_ = documentCmd.MarkFlagRequired("program")
	rootCmd.AddCommand(documentCmd)
}

func runDocument(cmd *cobra.Command, args []string) error {
	if packageService == nil {
		return errors.New("package service not configured")
	}

	documentType := args[0]
	req := domain.PackageRequest{
		ProgramName: documentProgram,
		Description: documentDescription,
		Overwrite:   documentOverwrite,
	}

	result, err := packageService.GenerateDocument(cmd.Context(), req, documentType)

	var unresolved *domain.DependencyUnresolvedError
	if errors.As(err, &unresolved) {
		cmd.Printf("Cannot generate %s yet.\n", documentType)
		for _, d := range unresolved.MissingDocuments {
			cmd.Printf("  missing document: %s\n", d)
		}
		for _, k := range unresolved.MissingKinds {
			cmd.Printf("  missing facts:    %s\n", k)
		}
		return fmt.Errorf("failed to generate document: %w", err)
	}
	if err != nil {
		return fmt.Errorf("failed to generate document: %w", err)
	}

	if documentJSON {
		return outputJSON(cmd, result)
	}

	cmd.Printf("Document: %s (%s)\n\n", result.DocumentType, result.Status)
	if result.Record != nil {
		outputRecord(cmd, result.Record)
	}
	if result.Error != "" {
		cmd.Printf("  Error:      %s\n", result.Error)
	}
	return nil
}

func outputRecord(cmd *cobra.Command, r *domain.DocumentRecord) {
	cmd.Printf("  ID:         %s\n", r.ID)
	cmd.Printf("  Program:    %s\n", r.ProgramName)
	cmd.Printf("  Sequence:   %d\n", r.Sequence)
	cmd.Printf("  Generated:  %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	if r.FileReference != "" {
		cmd.Printf("  File:       %s\n", r.FileReference)
	}
	if r.Supersedes != "" {
		cmd.Printf("  Supersedes: %s\n", r.Supersedes)
	}
	if r.Quality != nil {
		cmd.Printf("  Quality:    %.1f (%s)\n", r.Quality.OverallScore, r.Quality.Grade)
	}
	if r.Outcome != "" {
		cmd.Printf("  Refinement: %s after %d passes\n", r.Outcome, len(r.Refinement))
	}

	counts := r.ExposedFacts.Counts()
	if len(counts) > 0 {
		cmd.Println("\n  Facts:")
		for _, k := range domain.AllFactKinds() {
			if counts[k] > 0 {
				cmd.Printf("    %s: %d\n", k, counts[k])
			}
		}
	}
}
