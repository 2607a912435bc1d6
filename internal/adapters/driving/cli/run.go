package cli

import (
	"bufio"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/starorg-cli/internal/core/ports/driving"
)

var runFlags struct {
	reset        bool
	backup       bool
	organizeOnly bool
	syncOnly     bool
	testLimit    int
	outputFile   string
	stateFile    string
	yes          bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, categorize, and sync starred repositories",
	Long: `Runs the full pipeline: fetch starred repositories, categorize new
ones, and sync the mapping to GitHub Lists. Already categorized and already
synced repositories are skipped, so reruns only process the delta.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runFlags.reset, "reset", false, "discard local state, re-categorize everything, delete stale remote lists")
	runCmd.Flags().BoolVar(&runFlags.backup, "backup", false, "back up the organized file before a reset")
	runCmd.Flags().BoolVar(&runFlags.organizeOnly, "organize-only", false, "stop after categorization, no remote mutations")
	runCmd.Flags().BoolVar(&runFlags.syncOnly, "sync-only", false, "sync the persisted mapping without re-fetching or categorizing")
	runCmd.Flags().IntVar(&runFlags.testLimit, "test-limit", 0, "cap the number of starred repos fetched (trial runs)")
	runCmd.Flags().StringVar(&runFlags.outputFile, "output-file", "", "organized mapping file (default ~/.starorg/organized_stars.json)")
	runCmd.Flags().StringVar(&runFlags.stateFile, "state-file", "", "sync state file (default ~/.starorg/sync_state.json)")
	runCmd.Flags().BoolVar(&runFlags.yes, "yes", false, "skip the reset confirmation prompt")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	deps, err := resolveDeps()
	if err != nil {
		return err
	}

	if runFlags.reset && !runFlags.yes && !confirmReset(cmd) {
		cmd.Println("Aborted.")
		return nil
	}

	opts := driving.RunOptions{
		Reset:        runFlags.reset,
		Backup:       runFlags.backup,
		OrganizeOnly: runFlags.organizeOnly,
		SyncOnly:     runFlags.syncOnly,
		TestLimit:    runFlags.testLimit,
		OutputPath:   orDefault(runFlags.outputFile, deps.DefaultOutputPath),
		StatePath:    orDefault(runFlags.stateFile, deps.DefaultStatePath),
	}

	summary, err := deps.Organizer.Run(cmd.Context(), opts)
	if err != nil {
		return err
	}

	printSummary(cmd, summary)
	return nil
}

// confirmReset prompts before a destructive reset when running
// interactively. Non-interactive invocations (scripts, CI) proceed.
func confirmReset(cmd *cobra.Command) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return true
	}
	cmd.Print("Reset deletes stale remote lists and re-categorizes everything. Continue? [y/N] ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

// printSummary renders the end-of-run report.
func printSummary(cmd *cobra.Command, summary *driving.RunSummary) {
	cmd.Printf("\nRun %s\n", summary.RunID)
	if summary.Starred > 0 {
		cmd.Printf("  Starred:     %d\n", summary.Starred)
	}
	cmd.Printf("  Categories:  %d\n", summary.Categories)
	cmd.Printf("  Categorized: %d new, %d skipped, %d failed\n",
		summary.Categorized.Succeeded, summary.Categorized.Skipped, summary.Categorized.Failed)
	cmd.Printf("  Synced:      %d new, %d skipped, %d failed\n",
		summary.Synced.Succeeded, summary.Synced.Skipped, summary.Synced.Failed)

	if summary.BackupPath != "" {
		cmd.Printf("  Backup:      %s\n", summary.BackupPath)
	}

	if len(summary.SyncedByCategory) > 0 {
		cmd.Println("  Per category:")
		categories := make([]string, 0, len(summary.SyncedByCategory))
		for category := range summary.SyncedByCategory {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		for _, category := range categories {
			cmd.Printf("    %-30s %d\n", category, summary.SyncedByCategory[category])
		}
	}

	if len(summary.ErrorTypes) > 0 {
		cmd.Println("  Errors:")
		kinds := make([]string, 0, len(summary.ErrorTypes))
		for kind := range summary.ErrorTypes {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			cmd.Printf("    %-15s %d\n", kind, summary.ErrorTypes[kind])
		}
	}
}
