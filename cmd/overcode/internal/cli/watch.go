package cli

import (
	"time"

	"github.com/albertocavalcante/overcode/cmd/overcode/internal/watch"
	"github.com/spf13/cobra"
)

var watchFlags struct {
	debounce int
	verbose  bool
	json     bool
	noColor  bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-index whenever files change",
	Long: `Indexes the tree once, then watches it and runs another indexing pass
after each burst of file changes. Ignored paths and the .overcode directory
are not watched.

Example output:

  $ overcode watch

  overcode: watching 1247 files in /path/to/project
  overcode: ready

  [14:32:15] indexing after change to src/lib.rs...
  [14:32:15] ✓ snapshot 1760885535 (1247 files, 1 hashed, 1 new blobs, 0 pruned)

Press Ctrl+C to stop watching.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVar(&watchFlags.debounce, "debounce", 0,
		"Debounce window in milliseconds (default from config, 500)")
	watchCmd.Flags().BoolVar(&watchFlags.verbose, "verbose", false,
		"Show file-level changes")
	watchCmd.Flags().BoolVar(&watchFlags.json, "json", false,
		"Stream JSON events (for tooling integration)")
	watchCmd.Flags().BoolVar(&watchFlags.noColor, "no-color", false,
		"Disable colored output")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	mgr, err := p.manager()
	if err != nil {
		return err
	}

	debounce := p.cfg.DebounceWindow()
	if watchFlags.debounce > 0 {
		debounce = time.Duration(watchFlags.debounce) * time.Millisecond
	}

	w, err := watch.New(watch.Config{
		Root:       p.root,
		Indexer:    mgr,
		Rules:      p.cfg.IgnoreRules(),
		Debounce:   debounce,
		MaxPending: p.cfg.Watch.MaxPending,
		Output:     cmd.OutOrStdout(),
		Verbose:    watchFlags.verbose,
		NoColor:    watchFlags.noColor,
		JSON:       watchFlags.json,
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	// Run watch loop until the signal context from Execute is cancelled
	return w.Run(cmd.Context())
}
