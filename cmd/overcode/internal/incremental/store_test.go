package incremental

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T, now int64) *SnapshotStore {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "history")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	s := NewSnapshotStore(dir)
	s.now = func() time.Time { return time.Unix(now, 0) }
	return s
}

func writeSnapshotFile(t *testing.T, s *SnapshotStore, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(s.Dir(), name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSnapshotStoreColdStart(t *testing.T) {
	s := NewSnapshotStore(filepath.Join(t.TempDir(), "does-not-exist"))

	snap, err := s.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	if snap.Len() != 0 {
		t.Errorf("LoadLatest() Len = %d, want 0", snap.Len())
	}
	if _, _, ok, err := s.LatestPath(); ok || err != nil {
		t.Errorf("LatestPath() ok = %v, err = %v; want false, nil", ok, err)
	}
}

func TestSnapshotStoreSaveLoad(t *testing.T) {
	s := newTestStore(t, 1700000000)

	snap := NewSnapshot()
	snap.Put("src/lib.rs", Record{MTime: 1700000000, Size: 42, Hash: "aa11", Deps: []DepEdge{
		{Path: "src/util.rs", Hash: "bb22"},
		{Path: "src/gone.rs"},
	}})
	snap.Put("src/util.rs", Record{MTime: 1699999999, Size: 7, Hash: "bb22"})

	ts, path, err := s.Save(snap)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if ts != 1700000000 {
		t.Errorf("Save() ts = %d, want 1700000000", ts)
	}
	if filepath.Base(path) != "1700000000.toml" {
		t.Errorf("Save() path = %s, want 1700000000.toml", path)
	}
	if snap.Timestamp != ts {
		t.Errorf("snapshot Timestamp = %d, want %d", snap.Timestamp, ts)
	}

	loaded, err := s.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	if !loaded.Equal(snap) {
		t.Errorf("LoadLatest() = %+v, want %+v", loaded.Records, snap.Records)
	}
	if loaded.Timestamp != ts {
		t.Errorf("loaded Timestamp = %d, want %d", loaded.Timestamp, ts)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, "format_version = 1") {
		t.Errorf("snapshot missing format_version:\n%s", text)
	}
	if strings.Index(text, `"src/lib.rs"`) > strings.Index(text, `"src/util.rs"`) {
		t.Errorf("records not written in path order:\n%s", text)
	}
}

func TestSnapshotStoreOmitsEmptyDeps(t *testing.T) {
	s := newTestStore(t, 100)
	snap := NewSnapshot()
	snap.Put("a.txt", Record{MTime: 1, Size: 5, Hash: "abcd"})

	_, path, err := s.Save(snap)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "deps") {
		t.Errorf("empty deps should be omitted:\n%s", data)
	}
}

func TestSnapshotStoreSameSecondSaves(t *testing.T) {
	s := newTestStore(t, 500)

	ts1, _, err := s.Save(NewSnapshot())
	if err != nil {
		t.Fatal(err)
	}
	ts2, _, err := s.Save(NewSnapshot())
	if err != nil {
		t.Fatal(err)
	}
	if ts1 != 500 || ts2 != 501 {
		t.Errorf("timestamps = %d, %d; want 500, 501", ts1, ts2)
	}

	list, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(list, []uint64{500, 501}) {
		t.Errorf("List() = %v, want [500 501]", list)
	}
}

func TestSnapshotStoreLatestSelection(t *testing.T) {
	s := newTestStore(t, 1)
	writeSnapshotFile(t, s, "100.toml", "")
	writeSnapshotFile(t, s, "99.toml", "")
	writeSnapshotFile(t, s, "1000.toml", "")
	writeSnapshotFile(t, s, "notes.txt", "")
	writeSnapshotFile(t, s, "latest.toml", "")
	writeSnapshotFile(t, s, "5000.json", "")

	ts, path, ok, err := s.LatestPath()
	if err != nil || !ok {
		t.Fatalf("LatestPath() ok = %v, err = %v", ok, err)
	}
	if ts != 1000 || filepath.Base(path) != "1000.toml" {
		t.Errorf("LatestPath() = %d, %s; want 1000, 1000.toml", ts, path)
	}

	// Saving with a clock behind the latest snapshot still moves forward.
	next, _, err := s.Save(NewSnapshot())
	if err != nil {
		t.Fatal(err)
	}
	if next != 1001 {
		t.Errorf("Save() ts = %d, want 1001", next)
	}
}

func TestSnapshotStoreLegacyFormat(t *testing.T) {
	s := newTestStore(t, 1)
	writeSnapshotFile(t, s, "10.toml", `
[files."src/lib.rs"]
mtime = 1700000000
size = 42
hash = "aaa"
deps = ["src/util.rs", { path = "src/other.rs", hash = "bbb" }, { hash = "ccc" }]

[files."src/util.rs"]
mtime = 1700000000
size = 7
hash = "ddd"

[files."dropped.rs"]
mtime = 1
size = 0
hash = ""
`)

	snap, err := s.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	if snap.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (empty hash dropped)", snap.Len())
	}

	lib, _ := snap.Get("src/lib.rs")
	want := []DepEdge{{Path: "src/util.rs"}, {Path: "src/other.rs", Hash: "bbb"}}
	if !slices.Equal(lib.Deps, want) {
		t.Errorf("Deps = %v, want %v", lib.Deps, want)
	}
	util, _ := snap.Get("src/util.rs")
	if len(util.Deps) != 0 {
		t.Errorf("missing deps should load as empty, got %v", util.Deps)
	}
}

func TestSnapshotStoreParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid toml", "[files.\nbroken"},
		{"wrong structure", "files = 3"},
		{"wrong field type", "[files.\"a\"]\nmtime = \"yesterday\"\nhash = \"x\""},
		{"bad dep entry", "[files.\"a\"]\nhash = \"x\"\ndeps = [1]"},
		{"future version", "format_version = 99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, 1)
			writeSnapshotFile(t, s, "7.toml", tt.content)

			_, err := s.LoadLatest()
			if !errors.Is(err, ErrParse) {
				t.Fatalf("LoadLatest() error = %v, want ErrParse", err)
			}
			var pe *ParseError
			if !errors.As(err, &pe) || filepath.Base(pe.Path) != "7.toml" {
				t.Errorf("ParseError path = %v, want 7.toml", pe)
			}
		})
	}
}

func TestSnapshotStoreLoadSpecific(t *testing.T) {
	s := newTestStore(t, 10)
	first := NewSnapshot()
	first.Put("a.txt", Record{Hash: "01"})
	if _, _, err := s.Save(first); err != nil {
		t.Fatal(err)
	}
	second := NewSnapshot()
	second.Put("b.txt", Record{Hash: "02"})
	if _, _, err := s.Save(second); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(10)
	if err != nil {
		t.Fatalf("Load(10) error = %v", err)
	}
	if _, ok := got.Get("a.txt"); !ok || got.Len() != 1 {
		t.Errorf("Load(10) = %v, want only a.txt", got.Paths())
	}

	if _, err := s.Load(12345); err == nil {
		t.Error("Load() of missing snapshot should fail")
	}
}

func TestSnapshotStorePathsForHash(t *testing.T) {
	s := newTestStore(t, 10)
	snap := NewSnapshot()
	snap.Put("b.txt", Record{Hash: "aa"})
	snap.Put("a.txt", Record{Hash: "aa"})
	snap.Put("c.txt", Record{Hash: "bb"})
	if _, _, err := s.Save(snap); err != nil {
		t.Fatal(err)
	}

	paths, err := s.PathsForHash("aa")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(paths, []string{"a.txt", "b.txt"}) {
		t.Errorf("PathsForHash(aa) = %v, want [a.txt b.txt]", paths)
	}
	if paths, _ := s.PathsForHash("zz"); len(paths) != 0 {
		t.Errorf("PathsForHash(zz) = %v, want empty", paths)
	}
}

func TestSnapshotStoreRejectsNonUTF8Paths(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		path string
	}{
		{name: "key", path: "bad\xff.txt", rec: Record{Hash: "aa11"}},
		{name: "dependency", path: "ok.rs", rec: Record{Hash: "aa11", Deps: []DepEdge{{Path: "bad\xff.rs"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, 1700000000)
			snap := NewSnapshot()
			snap.Put(tt.path, tt.rec)

			if _, _, err := s.Save(snap); !errors.Is(err, ErrParse) {
				t.Fatalf("Save() error = %v, want ErrParse", err)
			}
			list, err := s.List()
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != 0 {
				t.Errorf("List() = %v, want nothing written", list)
			}
		})
	}
}
