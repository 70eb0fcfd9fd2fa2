package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/acqgen/internal/adapters/driving/tui"
	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
)

var (
	generateProgram     string
	generateDescription string
	generateOnly        []string
	generateOverwrite   bool
	generateTUI         bool
	generateJSON        bool
)

// stderrIsTerminal reports whether progress can be drawn in place.
var stderrIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an acquisition package",
	Long: `Generates every catalogued document for a program in dependency order.

Documents whose records already exist are skipped unless --overwrite is set.
A document that fails marks the documents depending on it unresolved; the
rest of the package still generates.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateProgram, "program", "p", "", "acquisition program name")
	generateCmd.Flags().StringVarP(&generateDescription, "description", "d", "", "program description appended to retrieval queries")
	generateCmd.Flags().StringSliceVar(&generateOnly, "only", nil, "generate only these document types")
	generateCmd.Flags().BoolVar(&generateOverwrite, "overwrite", false, "regenerate documents that already have records")
	generateCmd.Flags().BoolVar(&generateTUI, "tui", false, "show progress in the terminal UI")
	generateCmd.Flags().BoolVar(&generateJSON, "json", false, "output the manifest as JSON")
	_ = generateCmd.MarkFlagRequired("program")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	if packageService == nil {
		return errors.New("package service not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	req := domain.PackageRequest{
		ProgramName: generateProgram,
		Description: generateDescription,
		Only:        generateOnly,
		Overwrite:   generateOverwrite,
	}

	for _, w := range startupWarnings {
		fmt.Fprintln(cmd.ErrOrStderr(), color.YellowString("Warning: %s", w))
	}

	var (
		manifest *domain.PackageManifest
		err      error
	)
	if generateTUI {
		manifest, err = generateWithTUI(ctx, req)
	} else {
		manifest, err = generateWithProgress(ctx, cmd, req)
	}
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	if generateJSON {
		if err := outputJSON(cmd, manifest); err != nil {
			return err
		}
	} else {
		outputManifestTable(cmd, manifest)
	}

	if failed := manifest.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d documents did not generate", len(failed), len(manifest.Documents))
	}
	return nil
}

func generateWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	req domain.PackageRequest,
) (*domain.PackageManifest, error) {
	var sink driven.ProgressSink = &lineSink{out: cmd.ErrOrStderr()}
	if stderrIsTerminal() && !generateJSON {
		sink = newBarSink(cmd.ErrOrStderr(), plannedDocuments(req))
	}
	detach := attachProgress(sink)
	defer detach()

	return packageService.GeneratePackage(ctx, req)
}

func generateWithTUI(ctx context.Context, req domain.PackageRequest) (manifest *domain.PackageManifest, err error) {
	// Add panic recovery to get stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			err = fmt.Errorf("TUI panic: %v", r)
		}
	}()

	app, err := tui.NewApp(tui.NewPorts(packageService), req)
	if err != nil {
		return nil, fmt.Errorf("failed to create TUI: %w", err)
	}
	app.WithContext(ctx)

	detach := attachProgress(app)
	defer detach()

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return nil, fmt.Errorf("TUI error: %w", err)
	}
	if app.Err() != nil {
		return nil, app.Err()
	}
	if app.Manifest() == nil {
		return nil, context.Canceled
	}
	return app.Manifest(), nil
}

// plannedDocuments returns the number of documents a request runs.
func plannedDocuments(req domain.PackageRequest) int {
	if len(req.Only) > 0 {
		return len(req.Only)
	}
	waves, err := packageService.Order()
	if err != nil {
		return 0
	}
	n := 0
	for _, w := range waves {
		n += len(w)
	}
	return n
}

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputManifestTable(cmd *cobra.Command, manifest *domain.PackageManifest) {
	cmd.Printf("Package: %s\n\n", manifest.ProgramName)

	counts := make(map[domain.DocumentStatus]int)
	for _, d := range manifest.Documents {
		counts[d.Status]++
		switch {
		case d.Record != nil && d.Record.Quality != nil:
			cmd.Printf("  %-10s %-32s %5.1f %-10s %s\n",
				d.Status, d.DocumentType, d.Record.Quality.OverallScore, d.Record.Quality.Grade, d.Record.FileReference)
		case d.Error != "":
			cmd.Printf("  %-10s %-32s %s\n", d.Status, d.DocumentType, d.Error)
		default:
			cmd.Printf("  %-10s %s\n", d.Status, d.DocumentType)
		}
		if degraded := d.Facts.Degraded; len(degraded) > 0 {
			cmd.Printf("             degraded: %v\n", degraded)
		}
	}

	cmd.Println()
	cmd.Printf("Generated: %d  Skipped: %d  Failed: %d  Unresolved: %d\n",
		counts[domain.StatusGenerated], counts[domain.StatusSkipped],
		counts[domain.StatusFailed], counts[domain.StatusUnresolved])
}
