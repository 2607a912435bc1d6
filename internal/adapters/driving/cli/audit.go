package cli

import (
	"github.com/spf13/cobra"
)

var auditFlags struct {
	testLimit  int
	outputFile string
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Report starred repositories that no longer exist",
	Long: `Probes every starred repository and reports the ones that have been
deleted or made private, annotated with the category referencing them.
Read-only: nothing is unstarred and no lists are modified.`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().IntVar(&auditFlags.testLimit, "test-limit", 0, "cap the number of starred repos probed (trial runs)")
	auditCmd.Flags().StringVar(&auditFlags.outputFile, "output-file", "", "organized mapping file (default ~/.starorg/organized_stars.json)")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, _ []string) error {
	deps, err := resolveDeps()
	if err != nil {
		return err
	}

	report, err := deps.Auditor.Audit(cmd.Context(),
		orDefault(auditFlags.outputFile, deps.DefaultOutputPath), auditFlags.testLimit)
	if err != nil {
		return err
	}

	cmd.Printf("Checked %d starred repositories: %d alive, %d dead, %d uncertain\n",
		report.Checked, report.Alive, len(report.Dead), len(report.Uncertain))

	if len(report.Dead) > 0 {
		cmd.Println("\nDead:")
		for _, repo := range report.Dead {
			if repo.Category != "" {
				cmd.Printf("  %s  (%s)\n", repo.FullName, repo.Category)
			} else {
				cmd.Printf("  %s\n", repo.FullName)
			}
		}
	}
	if len(report.Uncertain) > 0 {
		cmd.Println("\nUncertain (probe inconclusive):")
		for _, name := range report.Uncertain {
			cmd.Printf("  %s\n", name)
		}
	}
	return nil
}
