package incremental

import (
	"maps"

	"github.com/albertocavalcante/overcode/pkg/util"
)

// Snapshot is a complete path -> Record mapping. Timestamp is zero until the
// snapshot has been saved or loaded.
type Snapshot struct {
	Timestamp uint64
	Records   map[string]Record
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{Records: make(map[string]Record)}
}

// Len returns the number of records.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// Get returns the record for path.
func (s *Snapshot) Get(path string) (Record, bool) {
	if s == nil || s.Records == nil {
		return Record{}, false
	}
	r, ok := s.Records[path]
	return r, ok
}

// Put adds or replaces the record for path.
func (s *Snapshot) Put(path string, r Record) {
	if s.Records == nil {
		s.Records = make(map[string]Record)
	}
	s.Records[path] = r
}

// Delete removes path.
func (s *Snapshot) Delete(path string) {
	delete(s.Records, path)
}

// Paths returns all paths in sorted order.
func (s *Snapshot) Paths() []string {
	if s == nil {
		return nil
	}
	return util.SortedKeys(s.Records)
}

// Clone returns a copy that can be modified without affecting s.
// Dependency slices are shared; they are never mutated in place.
func (s *Snapshot) Clone() *Snapshot {
	c := NewSnapshot()
	if s == nil {
		return c
	}
	c.Timestamp = s.Timestamp
	maps.Copy(c.Records, s.Records)
	return c
}

// ByHash inverts the snapshot into hash -> set of paths.
func (s *Snapshot) ByHash() map[string]util.Set[string] {
	out := make(map[string]util.Set[string])
	if s == nil {
		return out
	}
	for path, r := range s.Records {
		set, ok := out[r.Hash]
		if !ok {
			set = util.NewSet[string]()
			out[r.Hash] = set
		}
		set.Add(path)
	}
	return out
}

// Fingerprint returns an xxHash64 over every record in path order. The
// timestamp is not included, so two snapshots of an unchanged tree share a
// fingerprint.
func (s *Snapshot) Fingerprint() string {
	f := newFingerprinter()
	for _, path := range s.Paths() {
		r := s.Records[path]
		f.str(path)
		f.u64(r.MTime)
		f.u64(r.Size)
		f.str(r.Hash)
		f.u64(uint64(len(r.Deps)))
		for _, d := range r.Deps {
			f.str(d.Path)
			f.str(d.Hash)
		}
	}
	return f.sum()
}

// Equal reports whether both snapshots hold identical records.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s.Len() != o.Len() {
		return false
	}
	for path, r := range recordsOf(s) {
		or, ok := o.Get(path)
		if !ok || !r.Equal(or) {
			return false
		}
	}
	return true
}

// Diff compares this snapshot against a newer one by content hash.
// The receiver is the "old" state.
func (s *Snapshot) Diff(other *Snapshot) *ChangeSet {
	cs := NewChangeSet()

	for path, newRec := range recordsOf(other) {
		oldRec, exists := s.Get(path)
		if !exists {
			cs.Added = append(cs.Added, path)
			continue
		}
		if oldRec.Hash != newRec.Hash {
			cs.Modified = append(cs.Modified, path)
		}
	}

	for path := range recordsOf(s) {
		if _, exists := other.Get(path); !exists {
			cs.Deleted = append(cs.Deleted, path)
		}
	}

	cs.sort()
	return cs
}

func recordsOf(s *Snapshot) map[string]Record {
	if s == nil {
		return nil
	}
	return s.Records
}
