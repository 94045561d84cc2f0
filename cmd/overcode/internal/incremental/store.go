package incremental

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
)

const (
	// SnapshotFormatVersion is written into every new snapshot file.
	// Version 0 (no format_version key) predates versioning.
	SnapshotFormatVersion = 1

	snapshotExt = ".toml"
)

// SnapshotStore keeps the append-only history of snapshots, one TOML file
// per save named by its Unix timestamp. Files are never rewritten.
type SnapshotStore struct {
	dir string
	now func() time.Time
}

// NewSnapshotStore returns a store over dir. The directory is not created;
// see Layout.EnsureLayout.
func NewSnapshotStore(dir string) *SnapshotStore {
	return &SnapshotStore{dir: dir, now: time.Now}
}

// Dir returns the history directory.
func (s *SnapshotStore) Dir() string {
	return s.dir
}

// snapshotFile is the on-disk schema.
type snapshotFile struct {
	FormatVersion int                   `toml:"format_version"`
	Files         map[string]fileRecord `toml:"files"`
}

type fileRecord struct {
	MTime int64       `toml:"mtime"`
	Size  int64       `toml:"size"`
	Hash  string      `toml:"hash"`
	Deps  []depRecord `toml:"deps,omitempty"`
}

type depRecord struct {
	Path string `toml:"path"`
	Hash string `toml:"hash"`
}

// UnmarshalTOML accepts both {path, hash} tables and legacy bare path strings.
func (d *depRecord) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case string:
		d.Path, d.Hash = v, ""
	case map[string]any:
		d.Path, d.Hash = "", ""
		if p, ok := v["path"]; ok {
			s, ok := p.(string)
			if !ok {
				return fmt.Errorf("dependency path must be a string, got %T", p)
			}
			d.Path = s
		}
		if h, ok := v["hash"]; ok {
			s, ok := h.(string)
			if !ok {
				return fmt.Errorf("dependency hash must be a string, got %T", h)
			}
			d.Hash = s
		}
	default:
		return fmt.Errorf("unsupported dependency entry of type %T", v)
	}
	return nil
}

// Save writes snap as a new snapshot file and sets snap.Timestamp. The
// timestamp is the current Unix second, bumped past the latest existing
// snapshot so the new file always becomes the latest.
func (s *SnapshotStore) Save(snap *Snapshot) (uint64, string, error) {
	if snap == nil {
		return 0, "", errors.New("cannot save nil snapshot")
	}

	ts := uint64(max(s.now().Unix(), 0))
	latest, _, ok, err := s.LatestPath()
	if err != nil {
		return 0, "", err
	}
	if ok && ts <= latest {
		ts = latest + 1
	}
	final := s.pathFor(ts)
	for {
		if _, err := os.Stat(final); errors.Is(err, fs.ErrNotExist) {
			break
		}
		ts++
		final = s.pathFor(ts)
	}

	data, err := encodeSnapshot(snap)
	if err != nil {
		return 0, "", &ParseError{Path: final, Err: err}
	}

	tmp, err := os.CreateTemp(s.dir, ".snapshot-*.tmp")
	if err != nil {
		return 0, "", ioErr("create snapshot", final, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return 0, "", ioErr("write snapshot", final, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, "", ioErr("write snapshot", final, err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		_ = os.Remove(tmpPath)
		return 0, "", ioErr("rename snapshot", final, err)
	}

	snap.Timestamp = ts
	return ts, final, nil
}

func encodeSnapshot(snap *Snapshot) ([]byte, error) {
	file := snapshotFile{
		FormatVersion: SnapshotFormatVersion,
		Files:         make(map[string]fileRecord, snap.Len()),
	}
	for path, r := range snap.Records {
		if !utf8.ValidString(path) {
			return nil, fmt.Errorf("path %q is not valid UTF-8", path)
		}
		fr := fileRecord{
			MTime: int64(r.MTime),
			Size:  int64(r.Size),
			Hash:  r.Hash,
		}
		for _, d := range r.Deps {
			if !utf8.ValidString(d.Path) {
				return nil, fmt.Errorf("dependency %q of %q is not valid UTF-8", d.Path, path)
			}
			fr.Deps = append(fr.Deps, depRecord{Path: d.Path, Hash: d.Hash})
		}
		file.Files[path] = fr
	}

	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.Indent = ""
	if err := enc.Encode(file); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LatestPath returns the timestamp and path of the newest snapshot. ok is
// false when no snapshot exists yet.
func (s *SnapshotStore) LatestPath() (ts uint64, path string, ok bool, err error) {
	all, err := s.List()
	if err != nil || len(all) == 0 {
		return 0, "", false, err
	}
	ts = all[len(all)-1]
	return ts, s.pathFor(ts), true, nil
}

// List returns the timestamps of all snapshots in ascending order. Files
// that are not named <integer>.toml are ignored.
func (s *SnapshotStore) List() ([]uint64, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, ioErr("read history", s.dir, err)
	}

	var out []uint64
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		stem, found := strings.CutSuffix(name, snapshotExt)
		if !found {
			continue
		}
		ts, err := strconv.ParseUint(stem, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, ts)
	}
	slices.Sort(out)
	return out, nil
}

// LoadLatest returns the newest snapshot, or an empty one on cold start.
func (s *SnapshotStore) LoadLatest() (*Snapshot, error) {
	ts, path, ok, err := s.LatestPath()
	if err != nil {
		return nil, err
	}
	if !ok {
		return NewSnapshot(), nil
	}
	snap, err := loadSnapshotFile(path)
	if err != nil {
		return nil, err
	}
	snap.Timestamp = ts
	return snap, nil
}

// Load returns the snapshot saved at ts.
func (s *SnapshotStore) Load(ts uint64) (*Snapshot, error) {
	snap, err := loadSnapshotFile(s.pathFor(ts))
	if err != nil {
		return nil, err
	}
	snap.Timestamp = ts
	return snap, nil
}

func (s *SnapshotStore) pathFor(ts uint64) string {
	return filepath.Join(s.dir, strconv.FormatUint(ts, 10)+snapshotExt)
}

func loadSnapshotFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ioErr("read snapshot", path, err)
	}

	var file snapshotFile
	if _, err := toml.Decode(string(data), &file); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if err := migrate(&file); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	snap := NewSnapshot()
	for path, fr := range file.Files {
		if fr.Hash == "" {
			continue
		}
		r := Record{
			MTime: uint64(max(fr.MTime, 0)),
			Size:  uint64(max(fr.Size, 0)),
			Hash:  fr.Hash,
		}
		for _, d := range fr.Deps {
			r.Deps = append(r.Deps, DepEdge{Path: d.Path, Hash: d.Hash})
		}
		snap.Put(path, r)
	}
	return snap, nil
}

// migrate brings a decoded file up to SnapshotFormatVersion.
func migrate(file *snapshotFile) error {
	if file.FormatVersion > SnapshotFormatVersion {
		return fmt.Errorf("format version %d is newer than supported version %d",
			file.FormatVersion, SnapshotFormatVersion)
	}
	if file.FormatVersion == 0 {
		// Unversioned files may lack deps or carry bare-string entries;
		// depRecord already normalizes those. Entries without a path carry
		// nothing usable.
		for key, fr := range file.Files {
			fr.Deps = slices.DeleteFunc(fr.Deps, func(d depRecord) bool { return d.Path == "" })
			file.Files[key] = fr
		}
	}
	file.FormatVersion = SnapshotFormatVersion
	return nil
}

// PathsForHash returns, sorted, the paths whose record in the latest
// snapshot carries hash.
func (s *SnapshotStore) PathsForHash(hash string) ([]string, error) {
	snap, err := s.LoadLatest()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range snap.Paths() {
		if snap.Records[p].Hash == hash {
			out = append(out, p)
		}
	}
	return out, nil
}
