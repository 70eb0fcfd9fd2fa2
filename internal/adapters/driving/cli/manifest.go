package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var manifestProgram string

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Export document records as JSON",
	Long: `Exports the committed records of a program, including superseded ones,
with their exposed facts, quality reports and refinement history. Without
--program every record is exported.`,
	RunE: runManifest,
}

func init() {
	manifestCmd.Flags().StringVarP(&manifestProgram, "program", "p", "", "acquisition program name")
	rootCmd.AddCommand(manifestCmd)
}

func runManifest(cmd *cobra.Command, _ []string) error {
	if packageService == nil {
		return errors.New("package service not configured")
	}

	manifest, err := packageService.Manifest(cmd.Context(), manifestProgram)
	if err != nil {
		return fmt.Errorf("failed to export manifest: %w", err)
	}
	return outputJSON(cmd, manifest)
}
