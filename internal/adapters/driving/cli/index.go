package cli

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the source corpus for vector retrieval",
	Long: `Normalises and chunks every file under retrieval.corpus_dir and stores
the embedded chunks in the pgvector table. Requires retrieval.backend
pgvector and an embedding provider.`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("index service not configured: set retrieval.backend to pgvector and retrieval.corpus_dir")
	}

	summary, err := indexService.Index(cmd.Context())
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	cmd.Printf("Indexed %d chunks from %d sources.\n", summary.Chunks, summary.Sources)
	for _, source := range summary.Failed {
		cmd.Println(color.RedString("  failed: %s", source))
	}
	if len(summary.Failed) > 0 {
		return fmt.Errorf("%d sources failed to index", len(summary.Failed))
	}
	return nil
}
