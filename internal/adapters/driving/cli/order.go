package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var orderWaves bool

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Show the document generation order",
	Long: `Shows the catalogued documents in the order they are generated.
With --waves, documents that can run concurrently are grouped together.`,
	RunE: runOrder,
}

func init() {
	orderCmd.Flags().BoolVarP(&orderWaves, "waves", "w", false, "group independent documents into waves")
	rootCmd.AddCommand(orderCmd)
}

func runOrder(cmd *cobra.Command, _ []string) error {
	if packageService == nil {
		return errors.New("package service not configured")
	}

	waves, err := packageService.Order()
	if err != nil {
		return fmt.Errorf("failed to order documents: %w", err)
	}

	n := 0
	for i, wave := range waves {
		if orderWaves {
			cmd.Printf("Wave %d:\n", i+1)
		}
		for _, documentType := range wave {
			n++
			title := documentType
			if spec, ok := catalog.Get(documentType); ok && spec.Title != "" {
				title = fmt.Sprintf("%s (%s)", spec.Title, documentType)
			}
			if orderWaves {
				cmd.Printf("  %s\n", title)
			} else {
				cmd.Printf("%3d. %s\n", n, title)
			}
		}
	}
	return nil
}
