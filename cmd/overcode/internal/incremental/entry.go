// Package incremental maintains the overcode file index: it scans a source
// tree, detects changed files by stat metadata, stores content-addressed
// blobs and persists immutable, timestamped snapshots of path metadata.
package incremental

// FileEntry is one regular file found by a scan.
type FileEntry struct {
	AbsPath string
	RelPath string // relative to the scan root, forward slashes
}

// FileMeta is the stat-derived part of a record.
type FileMeta struct {
	MTime uint64 // seconds since the Unix epoch
	Size  uint64
}

// DepEdge is a project-local dependency captured when the dependent file was
// last processed. Hash is the dependency's content hash at that moment, or
// empty if it could not be resolved.
type DepEdge struct {
	Path string
	Hash string
}

// Record is the indexed state of a single path.
type Record struct {
	MTime uint64
	Size  uint64
	Hash  string // hex SHA-256 of the full content
	Deps  []DepEdge
}

// Meta returns the stat-derived fields of the record.
func (r Record) Meta() FileMeta {
	return FileMeta{MTime: r.MTime, Size: r.Size}
}

// Matches reports whether the record's mtime and size equal m.
func (r Record) Matches(m FileMeta) bool {
	return r.MTime == m.MTime && r.Size == m.Size
}

// Equal reports whether two records are identical, dependency order included.
func (r Record) Equal(o Record) bool {
	if r.MTime != o.MTime || r.Size != o.Size || r.Hash != o.Hash || len(r.Deps) != len(o.Deps) {
		return false
	}
	for i := range r.Deps {
		if r.Deps[i] != o.Deps[i] {
			return false
		}
	}
	return true
}
