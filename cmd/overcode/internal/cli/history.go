package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var historyFlags struct {
	json bool
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List snapshots, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [timestamp]",
	Short: "Print the records of a snapshot (latest by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	historyCmd.PersistentFlags().BoolVar(&historyFlags.json, "json", false,
		"Output as JSON")

	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

// HistoryEntry is one line of overcode history --json.
type HistoryEntry struct {
	Timestamp uint64 `json:"timestamp"`
	Time      string `json:"time"`
}

// SnapshotOutput is the JSON output format for overcode history show.
type SnapshotOutput struct {
	Timestamp   uint64         `json:"timestamp"`
	Fingerprint string         `json:"fingerprint"`
	Files       []RecordOutput `json:"files"`
}

// RecordOutput is one file of a snapshot.
type RecordOutput struct {
	Path  string      `json:"path"`
	MTime uint64      `json:"mtime"`
	Size  uint64      `json:"size"`
	Hash  string      `json:"hash"`
	Deps  []DepOutput `json:"deps,omitempty"`
}

// DepOutput is one dependency edge of a record.
type DepOutput struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	snapshots, _ := p.stores()

	list, err := snapshots.List()
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}

	entries := make([]HistoryEntry, 0, len(list))
	for _, ts := range list {
		entries = append(entries, HistoryEntry{
			Timestamp: ts,
			Time:      time.Unix(int64(ts), 0).UTC().Format(time.RFC3339),
		})
	}

	out := cmd.OutOrStdout()
	if historyFlags.json {
		return outputJSON(out, entries)
	}
	if len(entries) == 0 {
		printf(out, "No snapshots. Run 'overcode index' to create one.\n")
		return nil
	}
	for _, e := range entries {
		printf(out, "%d  %s\n", e.Timestamp, e.Time)
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	snapshots, _ := p.stores()

	var ts uint64
	if len(args) == 1 {
		ts, err = strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q", args[0])
		}
	} else {
		latest, _, ok, err := snapshots.LatestPath()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no snapshots in %s", snapshots.Dir())
		}
		ts = latest
	}

	snap, err := snapshots.Load(ts)
	if err != nil {
		return fmt.Errorf("failed to load snapshot %d: %w", ts, err)
	}

	output := SnapshotOutput{
		Timestamp:   ts,
		Fingerprint: snap.Fingerprint(),
		Files:       make([]RecordOutput, 0, snap.Len()),
	}
	for _, path := range snap.Paths() {
		rec, _ := snap.Get(path)
		r := RecordOutput{Path: path, MTime: rec.MTime, Size: rec.Size, Hash: rec.Hash}
		for _, d := range rec.Deps {
			r.Deps = append(r.Deps, DepOutput{Path: d.Path, Hash: d.Hash})
		}
		output.Files = append(output.Files, r)
	}

	out := cmd.OutOrStdout()
	if historyFlags.json {
		return outputJSON(out, output)
	}

	printf(out, "Snapshot %d (%d files, fingerprint %s)\n", ts, len(output.Files), output.Fingerprint)
	for _, f := range output.Files {
		printf(out, "  %s  %s  %d bytes\n", f.Hash, f.Path, f.Size)
		for _, d := range f.Deps {
			hash := d.Hash
			if hash == "" {
				hash = "(unresolved)"
			}
			printf(out, "      -> %s  %s\n", d.Path, hash)
		}
	}
	return nil
}
