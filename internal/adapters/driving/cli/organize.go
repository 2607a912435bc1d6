package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/starorg-cli/internal/core/ports/driving"
)

var organizeFlags struct {
	testLimit  int
	outputFile string
}

var organizeCmd = &cobra.Command{
	Use:   "organize",
	Short: "Categorize starred repositories without touching GitHub Lists",
	Long: `Fetches starred repositories and categorizes the new ones, persisting
the mapping locally. No remote lists are created, deleted, or modified.
Equivalent to 'starorg run --organize-only'.`,
	RunE: runOrganize,
}

func init() {
	organizeCmd.Flags().IntVar(&organizeFlags.testLimit, "test-limit", 0, "cap the number of starred repos fetched (trial runs)")
	organizeCmd.Flags().StringVar(&organizeFlags.outputFile, "output-file", "", "organized mapping file (default ~/.starorg/organized_stars.json)")
	rootCmd.AddCommand(organizeCmd)
}

func runOrganize(cmd *cobra.Command, _ []string) error {
	deps, err := resolveDeps()
	if err != nil {
		return err
	}

	summary, err := deps.Organizer.Run(cmd.Context(), driving.RunOptions{
		OrganizeOnly: true,
		TestLimit:    organizeFlags.testLimit,
		OutputPath:   orDefault(organizeFlags.outputFile, deps.DefaultOutputPath),
		StatePath:    deps.DefaultStatePath,
	})
	if err != nil {
		return err
	}

	printSummary(cmd, summary)
	return nil
}
