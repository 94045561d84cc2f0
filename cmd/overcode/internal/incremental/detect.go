package incremental

import (
	"context"
	"os"
	"slices"

	"github.com/albertocavalcante/overcode/internal/log"
	"github.com/albertocavalcante/overcode/pkg/util"
)

// HashGroup is every scanned path currently holding the same content.
type HashGroup struct {
	Hash           string
	Paths          []string // relative, sorted, unique
	Representative string   // absolute path of one member, read once per run
}

// Detection is the outcome of comparing a scan against a previous snapshot.
type Detection struct {
	Groups    map[string]*HashGroup
	NewHashes map[string]string   // path -> hash, only for files hashed this run
	Meta      map[string]FileMeta // every scanned path
}

// SortedGroups returns the groups in ascending hash order.
func (d *Detection) SortedGroups() []*HashGroup {
	out := make([]*HashGroup, 0, len(d.Groups))
	for _, h := range util.SortedKeys(d.Groups) {
		out = append(out, d.Groups[h])
	}
	return out
}

// Hashed returns the number of files whose content was read this run.
func (d *Detection) Hashed() int {
	return len(d.NewHashes)
}

// Detector decides which files need hashing using the mtime and size
// recorded in the previous snapshot.
type Detector struct {
	hash HashFunc
}

// NewDetector returns a detector. A nil hash uses HashFile.
func NewDetector(hash HashFunc) *Detector {
	if hash == nil {
		hash = HashFile
	}
	return &Detector{hash: hash}
}

// Detect stats every entry. A file whose mtime and size equal its previous
// record keeps the cached hash without being read; any other file is hashed.
func (d *Detector) Detect(ctx context.Context, prev *Snapshot, entries []FileEntry) (*Detection, error) {
	logger := log.Component("detector")
	det := &Detection{
		Groups:    make(map[string]*HashGroup),
		NewHashes: make(map[string]string),
		Meta:      make(map[string]FileMeta, len(entries)),
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		meta, err := StatFile(e.AbsPath)
		if err != nil {
			return nil, err
		}
		det.Meta[e.RelPath] = meta

		var hash string
		if rec, ok := prev.Get(e.RelPath); ok && rec.Matches(meta) && rec.Hash != "" {
			hash = rec.Hash
		} else {
			hash, err = d.hash(e.AbsPath)
			if err != nil {
				return nil, err
			}
			det.NewHashes[e.RelPath] = hash
			logger.Debug("hashed", "path", e.RelPath, "hash", hash)
		}

		g, ok := det.Groups[hash]
		if !ok {
			g = &HashGroup{Hash: hash, Representative: e.AbsPath}
			det.Groups[hash] = g
		}
		g.Paths = append(g.Paths, e.RelPath)
	}

	for _, g := range det.Groups {
		slices.Sort(g.Paths)
		g.Paths = slices.Compact(g.Paths)
	}
	return det, nil
}

// StatFile returns the mtime (whole seconds) and size of path.
func StatFile(path string) (FileMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileMeta{}, ioErr("stat", path, err)
	}
	return FileMeta{
		MTime: uint64(max(info.ModTime().Unix(), 0)),
		Size:  uint64(max(info.Size(), 0)),
	}, nil
}
