package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/starorg-cli/internal/core/ports/driving"
)

var syncFlags struct {
	outputFile string
	stateFile  string
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the persisted mapping to GitHub Lists",
	Long: `Mirrors the locally persisted category mapping to GitHub Lists without
re-fetching or re-categorizing anything. Only the delta is pushed: repos the
sync state already records as attached are skipped, and a fully synced
mapping issues no remote calls at all. Equivalent to 'starorg run
--sync-only'.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncFlags.outputFile, "output-file", "", "organized mapping file (default ~/.starorg/organized_stars.json)")
	syncCmd.Flags().StringVar(&syncFlags.stateFile, "state-file", "", "sync state file (default ~/.starorg/sync_state.json)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	deps, err := resolveDeps()
	if err != nil {
		return err
	}

	summary, err := deps.Organizer.Run(cmd.Context(), driving.RunOptions{
		SyncOnly:   true,
		OutputPath: orDefault(syncFlags.outputFile, deps.DefaultOutputPath),
		StatePath:  orDefault(syncFlags.stateFile, deps.DefaultStatePath),
	})
	if err != nil {
		return err
	}

	printSummary(cmd, summary)
	return nil
}
