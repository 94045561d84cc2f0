package cli

import (
	"fmt"

	"github.com/albertocavalcante/overcode/pkg/config"
	"github.com/spf13/cobra"
)

var indexFlags struct {
	json bool
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the source tree and write a new snapshot",
	Long: `Runs one indexing pass over the root directory.

Creates overcode.toml from the template if no configuration exists, then
scans the tree, stores new contents as blobs, extracts dependencies for
changed Rust and Python files and writes .overcode/history/<timestamp>.toml.

The --json flag outputs the run summary as JSON for scripting.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexFlags.json, "json", false,
		"Output as JSON")

	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot()
	if err != nil {
		return err
	}
	if _, _, err := config.Init(root); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	p, err := loadProject()
	if err != nil {
		return err
	}
	mgr, err := p.manager()
	if err != nil {
		return err
	}

	res, err := mgr.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if indexFlags.json {
		return outputJSON(out, res)
	}

	printf(out, "Snapshot %d written to %s\n", res.Timestamp, res.SnapshotPath)
	printf(out, "  files:   %d scanned, %d hashed\n", res.Scanned, res.Hashed)
	printf(out, "  groups:  %d processed, %d skipped\n", res.GroupsProcessed, res.GroupsSkipped)
	printf(out, "  blobs:   %d written\n", res.BlobsWritten)
	printf(out, "  pruned:  %d\n", res.Pruned)
	if !res.Changed {
		printf(out, "No content changes since the previous snapshot\n")
	}
	return nil
}
