package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusFlags struct {
	json bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show files changed since the latest snapshot",
	Long: `Compares the source tree against the latest snapshot and lists
added, modified and deleted files. Nothing is written.

The --json flag outputs the result as JSON for scripting.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusFlags.json, "json", false,
		"Output as JSON")

	rootCmd.AddCommand(statusCmd)
}

// StatusOutput is the JSON output format for overcode status.
type StatusOutput struct {
	Snapshot     bool     `json:"snapshot"`
	Changed      bool     `json:"changed"`
	Added        []string `json:"added"`
	Modified     []string `json:"modified"`
	Deleted      []string `json:"deleted"`
	AffectedDirs []string `json:"affected_dirs"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	mgr, err := p.manager()
	if err != nil {
		return err
	}

	hasSnapshot := mgr.HasSnapshot()
	cs, err := mgr.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to compute status: %w", err)
	}

	out := cmd.OutOrStdout()
	if statusFlags.json {
		return outputJSON(out, StatusOutput{
			Snapshot:     hasSnapshot,
			Changed:      !cs.IsEmpty(),
			Added:        cs.Added,
			Modified:     cs.Modified,
			Deleted:      cs.Deleted,
			AffectedDirs: cs.AffectedDirs(),
		})
	}

	if !hasSnapshot {
		printf(out, "No snapshot found. Run 'overcode index' to create one.\n")
	}
	if cs.IsEmpty() {
		if hasSnapshot {
			printf(out, "Index is up to date\n")
		}
		return nil
	}

	sections := []struct {
		title string
		mark  string
		files []string
	}{
		{"New files", "+", cs.Added},
		{"Modified files", "~", cs.Modified},
		{"Deleted files", "-", cs.Deleted},
	}
	for _, s := range sections {
		if len(s.files) == 0 {
			continue
		}
		printf(out, "%s (%d):\n", s.title, len(s.files))
		for _, f := range s.files {
			printf(out, "  %s %s\n", s.mark, f)
		}
	}
	printf(out, "\nRun 'overcode index' to record %d change(s)\n", cs.TotalChanges())
	return nil
}
