package incremental

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/albertocavalcante/overcode/internal/log"
	"github.com/albertocavalcante/overcode/pkg/ignore"
	"github.com/albertocavalcante/overcode/pkg/util"
)

// DependencyExtractor finds the project-local files a source file refers to.
// filePath is absolute; the result holds slash-separated paths relative to
// root. Unknown references are dropped, never reported as errors.
type DependencyExtractor interface {
	Extract(filePath string, content []byte, root string) []string
}

// Options configures a Manager.
type Options struct {
	Root      string
	Rules     ignore.Rules
	Extractor DependencyExtractor // nil disables dependency extraction
	Hash      HashFunc            // nil uses HashFile
}

// RunResult summarizes one indexing run.
type RunResult struct {
	Timestamp       uint64 `json:"timestamp"`
	SnapshotPath    string `json:"snapshot_path"`
	Scanned         int    `json:"scanned"`
	Hashed          int    `json:"hashed"`
	GroupsProcessed int    `json:"groups_processed"`
	GroupsSkipped   int    `json:"groups_skipped"`
	BlobsWritten    int    `json:"blobs_written"`
	Pruned          int    `json:"pruned"`
	Fingerprint     string `json:"fingerprint"`
	Changed         bool   `json:"changed"`
}

// Manager runs indexing passes over one source tree.
type Manager struct {
	root      string
	rules     ignore.Rules
	extractor DependencyExtractor
	hash      HashFunc
	layout    Layout
	snapshots *SnapshotStore
	blobs     *BlobStore
}

// NewManager creates a manager for opts.Root. Nothing is written until Run.
func NewManager(opts Options) *Manager {
	hash := opts.Hash
	if hash == nil {
		hash = HashFile
	}
	layout := NewLayout(opts.Root)
	return &Manager{
		root:      opts.Root,
		rules:     opts.Rules,
		extractor: opts.Extractor,
		hash:      hash,
		layout:    layout,
		snapshots: NewSnapshotStore(layout.History),
		blobs:     NewBlobStore(layout.Blobs),
	}
}

// Layout returns the metadata locations of the tree.
func (m *Manager) Layout() Layout { return m.layout }

// Snapshots returns the snapshot history store.
func (m *Manager) Snapshots() *SnapshotStore { return m.snapshots }

// Blobs returns the blob store.
func (m *Manager) Blobs() *BlobStore { return m.blobs }

// Run performs one indexing pass and persists exactly one new snapshot.
// On error nothing is persisted, though blobs saved before the failure stay.
func (m *Manager) Run(ctx context.Context) (*RunResult, error) {
	logger := log.Component("index")

	if err := m.layout.EnsureLayout(); err != nil {
		return nil, err
	}
	lock, err := AcquireLock(m.layout.Lock)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release lock", "path", m.layout.Lock, "error", err)
		}
	}()

	prev, err := m.snapshots.LoadLatest()
	if err != nil {
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}

	scanner, err := NewScanner(ScanConfig{Root: m.root, Rules: m.rules})
	if err != nil {
		return nil, err
	}
	entries, err := scanner.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan workspace: %w", err)
	}

	det, err := NewDetector(m.hash).Detect(ctx, prev, entries)
	if err != nil {
		return nil, fmt.Errorf("failed to detect changes: %w", err)
	}

	res := &RunResult{Scanned: len(entries), Hashed: det.Hashed()}
	working := prev.Clone()
	working.Timestamp = 0
	known := prev.ByHash()

	for _, g := range det.SortedGroups() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !needsProcessing(g, known[g.Hash]) {
			res.GroupsSkipped++
			continue
		}
		written, hashed, err := m.processGroup(g, det, working)
		if err != nil {
			return nil, fmt.Errorf("failed to process %s: %w", g.Paths[0], err)
		}
		res.GroupsProcessed++
		res.Hashed += hashed
		if written {
			res.BlobsWritten++
		}
	}

	for path, meta := range det.Meta {
		rec, ok := working.Get(path)
		if !ok {
			rec = Record{Hash: det.NewHashes[path]}
		}
		rec.MTime, rec.Size = meta.MTime, meta.Size
		working.Put(path, rec)
	}

	for _, path := range working.Paths() {
		if _, ok := det.Meta[path]; !ok {
			working.Delete(path)
			res.Pruned++
			logger.Debug("pruned", "path", path)
		}
	}

	ts, path, err := m.snapshots.Save(working)
	if err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	res.Timestamp = ts
	res.SnapshotPath = path
	res.Fingerprint = working.Fingerprint()
	res.Changed = res.Fingerprint != prev.Fingerprint()

	logger.Info("index updated",
		"snapshot", ts,
		"files", res.Scanned,
		"hashed", res.Hashed,
		"groups", res.GroupsProcessed,
		"blobs", res.BlobsWritten,
		"pruned", res.Pruned,
		"changed", res.Changed)
	return res, nil
}

// needsProcessing reports whether the group holds content never indexed
// before, or content that appeared at a path not previously holding it.
func needsProcessing(g *HashGroup, known util.Set[string]) bool {
	if len(known) == 0 {
		return true
	}
	for _, p := range g.Paths {
		if !known.Has(p) {
			return true
		}
	}
	return false
}

// processGroup reads the representative once, stores its blob, extracts
// dependencies and writes a record for every path in the group.
func (m *Manager) processGroup(g *HashGroup, det *Detection, working *Snapshot) (written bool, hashed int, err error) {
	logger := log.Component("index")

	content, err := os.ReadFile(g.Representative)
	if err != nil {
		return false, 0, ioErr("read", g.Representative, err)
	}
	written, err = m.blobs.Save(g.Hash, content)
	if err != nil {
		return false, 0, err
	}

	var deps []DepEdge
	if m.extractor != nil {
		for _, dep := range m.extractor.Extract(g.Representative, content, m.root) {
			h, fresh := m.dependencyHash(dep, det, working)
			if fresh {
				hashed++
			}
			deps = append(deps, DepEdge{Path: dep, Hash: h})
		}
	}

	for _, p := range g.Paths {
		rec, _ := working.Get(p)
		working.Put(p, Record{MTime: rec.MTime, Size: rec.Size, Hash: g.Hash, Deps: deps})
	}
	logger.Debug("processed group", "hash", g.Hash, "paths", len(g.Paths), "deps", len(deps), "blob_written", written)
	return written, hashed, nil
}

// dependencyHash resolves the hash of dep: first from this run's fresh
// hashes, then from the working index, then by hashing the file. An empty
// result means unresolved. fresh is true if the file had to be read.
func (m *Manager) dependencyHash(dep string, det *Detection, working *Snapshot) (hash string, fresh bool) {
	if h, ok := det.NewHashes[dep]; ok {
		return h, false
	}
	if rec, ok := working.Get(dep); ok && rec.Hash != "" {
		return rec.Hash, false
	}
	h, err := m.hash(filepath.Join(m.root, filepath.FromSlash(dep)))
	if err != nil {
		log.Component("index").Debug("unresolved dependency", "path", dep, "error", err)
		return "", false
	}
	return h, true
}

// Status compares the tree against the latest snapshot without writing
// anything. Files whose mtime and size are unchanged are not read.
func (m *Manager) Status(ctx context.Context) (*ChangeSet, error) {
	prev, err := m.snapshots.LoadLatest()
	if err != nil {
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}

	scanner, err := NewScanner(ScanConfig{Root: m.root, Rules: m.rules})
	if err != nil {
		return nil, err
	}
	entries, err := scanner.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan workspace: %w", err)
	}

	cs := NewChangeSet()
	seen := make(util.Set[string], len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seen.Add(e.RelPath)

		rec, exists := prev.Get(e.RelPath)
		if !exists {
			cs.Added = append(cs.Added, e.RelPath)
			continue
		}

		// Fast path: if mtime and size unchanged, skip hash comparison
		meta, err := StatFile(e.AbsPath)
		if err == nil && rec.Matches(meta) {
			continue
		}

		hash, err := m.hash(e.AbsPath)
		if err != nil {
			// If we can't hash, assume modified
			cs.Modified = append(cs.Modified, e.RelPath)
			continue
		}
		if rec.Hash != hash {
			cs.Modified = append(cs.Modified, e.RelPath)
		}
	}

	for _, path := range prev.Paths() {
		if !seen.Has(path) {
			cs.Deleted = append(cs.Deleted, path)
		}
	}

	cs.sort()
	return cs, nil
}

// HasSnapshot reports whether at least one snapshot exists.
func (m *Manager) HasSnapshot() bool {
	_, _, ok, err := m.snapshots.LatestPath()
	return err == nil && ok
}

// TrackedFileCount returns the number of files in the latest snapshot.
// Returns 0 if no snapshot exists or on error.
func (m *Manager) TrackedFileCount() int {
	snap, err := m.snapshots.LoadLatest()
	if err != nil {
		return 0
	}
	return snap.Len()
}
