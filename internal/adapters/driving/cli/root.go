// Package cli provides the acqgen command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driving"
	"github.com/custodia-labs/acqgen/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

var verbose bool

// Services holds the driving ports the commands use. Any of them may be nil;
// commands that need a missing service return an error.
type Services struct {
	Package  driving.PackageService
	Quality  driving.QualityService
	Settings driving.SettingsService
	Index    driving.IndexService
	Catalog  domain.Catalog

	// Progress receives package events and forwards them to whichever view
	// the running command attaches.
	Progress *ProgressRelay

	// Warnings are reported once before a generation run.
	Warnings []string
}

var (
	packageService  driving.PackageService
	qualityService  driving.QualityService
	settingsService driving.SettingsService
	indexService    driving.IndexService
	catalog         domain.Catalog
	progressRelay   *ProgressRelay
	startupWarnings []string
)

var rootCmd = &cobra.Command{
	Use:   "acqgen",
	Short: "Generate government acquisition packages",
	Long: `acqgen generates multi-document acquisition packages.

Each document is built from retrieved source material: facts are extracted,
merged with the facts earlier documents committed, rendered, scored for
quality and refined until it meets the acceptance threshold.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print pipeline details to stderr")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetServices injects the services used by the commands.
func SetServices(s Services) {
	packageService = s.Package
	qualityService = s.Quality
	settingsService = s.Settings
	indexService = s.Index
	catalog = s.Catalog
	progressRelay = s.Progress
	startupWarnings = s.Warnings
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
