package incremental

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// staticExtractor returns canned dependencies keyed by relative path.
type staticExtractor map[string][]string

func (s staticExtractor) Extract(filePath string, _ []byte, root string) []string {
	rel, err := filepath.Rel(root, filePath)
	if err != nil {
		return nil
	}
	return s[filepath.ToSlash(rel)]
}

func runIndex(t *testing.T, m *Manager) *RunResult {
	t.Helper()
	res, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return res
}

func latest(t *testing.T, m *Manager) *Snapshot {
	t.Helper()
	snap, err := m.Snapshots().LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	return snap
}

func TestManagerColdStart(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":     "alpha",
		"b.txt":     "beta",
		"dir/c.txt": "gamma",
	})

	m := NewManager(Options{Root: root})
	res := runIndex(t, m)

	if res.Scanned != 3 || res.Hashed != 3 || res.GroupsProcessed != 3 || res.BlobsWritten != 3 {
		t.Errorf("RunResult = %+v, want 3 scanned/hashed/processed/written", res)
	}
	if !res.Changed {
		t.Error("cold start should report a change")
	}

	snap := latest(t, m)
	if !slices.Equal(snap.Paths(), []string{"a.txt", "b.txt", "dir/c.txt"}) {
		t.Errorf("Paths() = %v", snap.Paths())
	}
	for _, content := range []string{"alpha", "beta", "gamma"} {
		if !m.Blobs().Exists(HashBytes([]byte(content))) {
			t.Errorf("missing blob for %q", content)
		}
	}

	list, err := m.Snapshots().List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0] != res.Timestamp {
		t.Errorf("List() = %v, want [%d]", list, res.Timestamp)
	}
	if _, err := os.Stat(m.Layout().Lock); !os.IsNotExist(err) {
		t.Error("lock file should be released after Run")
	}
}

func TestManagerIdempotent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/lib.rs":  "mod util;",
		"src/util.rs": "pub fn f() {}",
	})

	m := NewManager(Options{
		Root:      root,
		Extractor: staticExtractor{"src/lib.rs": {"src/util.rs"}},
	})
	first := runIndex(t, m)
	firstSnap := latest(t, m)

	second := runIndex(t, m)
	secondSnap := latest(t, m)

	if second.Hashed != 0 || second.GroupsProcessed != 0 || second.BlobsWritten != 0 {
		t.Errorf("second run did work: %+v", second)
	}
	if second.Changed {
		t.Error("second run should report no change")
	}
	if first.Fingerprint != second.Fingerprint {
		t.Error("fingerprints differ across unchanged runs")
	}
	if !firstSnap.Equal(secondSnap) {
		t.Errorf("snapshots differ:\n%v\n%v", firstSnap.Records, secondSnap.Records)
	}
	if second.Timestamp <= first.Timestamp {
		t.Errorf("timestamps not increasing: %d then %d", first.Timestamp, second.Timestamp)
	}
}

func TestManagerDeduplicatesContent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt": "hello",
		"b.txt": "hello",
	})

	m := NewManager(Options{Root: root})
	res := runIndex(t, m)

	if res.BlobsWritten != 1 || res.GroupsProcessed != 1 {
		t.Errorf("RunResult = %+v, want 1 blob, 1 group", res)
	}

	want := HashBytes([]byte("hello"))
	snap := latest(t, m)
	for _, p := range []string{"a.txt", "b.txt"} {
		rec, ok := snap.Get(p)
		if !ok || rec.Hash != want {
			t.Errorf("%s hash = %q, want %q", p, rec.Hash, want)
		}
	}

	entries, err := os.ReadDir(m.Layout().Blobs)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("blob dir has %d entries, want 1", len(entries))
	}
}

func TestManagerRehashesChangedFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"main.py": "print(1)"})

	m := NewManager(Options{Root: root})
	runIndex(t, m)

	writeTree(t, root, map[string]string{"main.py": "print('changed')"})
	res := runIndex(t, m)

	if res.Hashed != 1 || res.BlobsWritten != 1 || !res.Changed {
		t.Errorf("RunResult = %+v, want one rehash and one new blob", res)
	}
	rec, _ := latest(t, m).Get("main.py")
	if rec.Hash != HashBytes([]byte("print('changed')")) {
		t.Errorf("hash = %q, want hash of new content", rec.Hash)
	}
	if rec.Size != uint64(len("print('changed')")) {
		t.Errorf("size = %d, want %d", rec.Size, len("print('changed')"))
	}
}

func TestManagerNewPathForKnownContent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "same"})

	m := NewManager(Options{Root: root})
	runIndex(t, m)

	writeTree(t, root, map[string]string{"copy.txt": "same"})
	res := runIndex(t, m)

	if res.GroupsProcessed != 1 {
		t.Errorf("GroupsProcessed = %d, want 1", res.GroupsProcessed)
	}
	if res.BlobsWritten != 0 {
		t.Errorf("BlobsWritten = %d, want 0 (blob already stored)", res.BlobsWritten)
	}
	rec, ok := latest(t, m).Get("copy.txt")
	if !ok || rec.Hash != HashBytes([]byte("same")) {
		t.Errorf("copy.txt record = %+v", rec)
	}
}

func TestManagerPrunesDeletedFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"keep.txt": "keep",
		"gone.txt": "gone",
	})

	m := NewManager(Options{Root: root})
	runIndex(t, m)

	if err := os.Remove(filepath.Join(root, "gone.txt")); err != nil {
		t.Fatal(err)
	}
	res := runIndex(t, m)

	if res.Pruned != 1 {
		t.Errorf("Pruned = %d, want 1", res.Pruned)
	}
	snap := latest(t, m)
	if _, ok := snap.Get("gone.txt"); ok {
		t.Error("gone.txt should be pruned from the snapshot")
	}
	if !m.Blobs().Exists(HashBytes([]byte("gone"))) {
		t.Error("blob of pruned file should be kept")
	}
}

func TestManagerDependencyHashes(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/lib.rs":  "use crate::util;",
		"src/util.rs": "pub fn helper() {}",
	})

	m := NewManager(Options{
		Root: root,
		Extractor: staticExtractor{
			"src/lib.rs": {"src/missing.rs", "src/util.rs"},
		},
	})
	runIndex(t, m)

	rec, _ := latest(t, m).Get("src/lib.rs")
	want := []DepEdge{
		{Path: "src/missing.rs", Hash: ""},
		{Path: "src/util.rs", Hash: HashBytes([]byte("pub fn helper() {}"))},
	}
	if !slices.Equal(rec.Deps, want) {
		t.Errorf("Deps = %v, want %v", rec.Deps, want)
	}

	// Changing only the dependency leaves the dependent's edge as captured.
	writeTree(t, root, map[string]string{"src/util.rs": "pub fn helper() { todo!() }"})
	runIndex(t, m)
	rec, _ = latest(t, m).Get("src/lib.rs")
	if !slices.Equal(rec.Deps, want) {
		t.Errorf("Deps after dependency change = %v, want %v", rec.Deps, want)
	}
}

func TestManagerDependencyOutsideScan(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"app.py":           "import gen",
		"generated/gen.py": "X = 1",
	})

	m := NewManager(Options{
		Root:      root,
		Rules:     ignoreRules("generated"),
		Extractor: staticExtractor{"app.py": {"generated/gen.py"}},
	})
	res := runIndex(t, m)

	if res.Hashed != 2 {
		t.Errorf("Hashed = %d, want 2 (app.py plus direct dependency hash)", res.Hashed)
	}
	rec, _ := latest(t, m).Get("app.py")
	if len(rec.Deps) != 1 || rec.Deps[0].Hash != HashBytes([]byte("X = 1")) {
		t.Errorf("Deps = %v, want hash of ignored dependency", rec.Deps)
	}
}

func TestManagerLocked(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "a"})

	m := NewManager(Options{Root: root})
	if err := m.Layout().EnsureLayout(); err != nil {
		t.Fatal(err)
	}
	lock, err := AcquireLock(m.Layout().Lock)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lock.Release() }()

	if _, err := m.Run(context.Background()); !errors.Is(err, ErrLocked) {
		t.Fatalf("Run() error = %v, want ErrLocked", err)
	}
	if m.HasSnapshot() {
		t.Error("no snapshot should be written while locked")
	}
}

func TestManagerCorruptSnapshot(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "a"})

	m := NewManager(Options{Root: root})
	runIndex(t, m)

	_, path, _, err := m.Snapshots().LatestPath()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not = [valid"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Run(context.Background()); !errors.Is(err, ErrParse) {
		t.Fatalf("Run() error = %v, want ErrParse", err)
	}
	list, _ := m.Snapshots().List()
	if len(list) != 1 {
		t.Errorf("failed run wrote a snapshot: %v", list)
	}
}

func TestManagerSkipsNonUTF8Paths(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"ok.txt": "ok"})
	if err := os.WriteFile(filepath.Join(root, "bad\xff.txt"), []byte("bad"), 0o644); err != nil {
		t.Skipf("filesystem rejects non-UTF-8 names: %v", err)
	}

	m := NewManager(Options{Root: root})
	first := runIndex(t, m)
	if first.Scanned != 1 {
		t.Errorf("Scanned = %d, want 1", first.Scanned)
	}

	// The history must stay loadable for the next run.
	second := runIndex(t, m)
	if second.Changed {
		t.Error("second run should not report a change")
	}
	if !slices.Equal(latest(t, m).Paths(), []string{"ok.txt"}) {
		t.Errorf("Paths() = %v, want [ok.txt]", latest(t, m).Paths())
	}
}

func TestManagerCancelledRun(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewManager(Options{Root: root})
	if _, err := m.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if m.HasSnapshot() {
		t.Error("cancelled run should not persist a snapshot")
	}
}

func TestManagerStatus(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"unchanged.rs": "fn unchanged() {}",
		"modified.rs":  "fn modified() {}",
		"deleted.rs":   "fn deleted() {}",
	})

	m := NewManager(Options{Root: root})
	runIndex(t, m)

	cs, err := m.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !cs.IsEmpty() {
		t.Errorf("Status() right after Run = %+v, want empty", cs)
	}

	writeTree(t, root, map[string]string{
		"new.rs":      "fn new() {}",
		"modified.rs": "fn modified() { changed() }",
	})
	if err := os.Remove(filepath.Join(root, "deleted.rs")); err != nil {
		t.Fatal(err)
	}

	before, _ := m.Snapshots().List()
	cs, err = m.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !slices.Equal(cs.Added, []string{"new.rs"}) {
		t.Errorf("Added = %v, want [new.rs]", cs.Added)
	}
	if !slices.Equal(cs.Modified, []string{"modified.rs"}) {
		t.Errorf("Modified = %v, want [modified.rs]", cs.Modified)
	}
	if !slices.Equal(cs.Deleted, []string{"deleted.rs"}) {
		t.Errorf("Deleted = %v, want [deleted.rs]", cs.Deleted)
	}

	after, _ := m.Snapshots().List()
	if !slices.Equal(before, after) {
		t.Error("Status() must not write snapshots")
	}
	if m.TrackedFileCount() != 3 {
		t.Errorf("TrackedFileCount() = %d, want 3", m.TrackedFileCount())
	}
}
