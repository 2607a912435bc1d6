// Package cli provides the cobra command surface. Commands resolve their
// services lazily through a factory set by main, so cheap commands like
// version never touch credentials or the network.
package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/starorg-cli/internal/core/ports/driving"
	"github.com/custodia-labs/starorg-cli/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Deps holds the wired services the commands run against.
type Deps struct {
	Organizer driving.Organizer
	Auditor   driving.Auditor

	// DefaultOutputPath and DefaultStatePath back the --output-file and
	// --state-file flags when unset.
	DefaultOutputPath string
	DefaultStatePath  string
}

// depsFactory builds the service graph on first use.
var depsFactory func() (*Deps, error)

// SetDepsFactory installs the service factory. Called from main before
// Execute.
func SetDepsFactory(factory func() (*Deps, error)) {
	depsFactory = factory
}

func resolveDeps() (*Deps, error) {
	if depsFactory == nil {
		return nil, errors.New("cli: services not configured")
	}
	return depsFactory()
}

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "starorg",
	Short: "Organize your GitHub stars into categorized lists",
	Long: `starorg fetches your starred repositories, files them into topical
categories with a classification model, and mirrors the result to GitHub
Lists. Runs are resumable: progress is checkpointed locally and already
completed work is never redone.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
