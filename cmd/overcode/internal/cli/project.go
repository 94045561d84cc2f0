package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/albertocavalcante/overcode/cmd/overcode/internal/extract"
	"github.com/albertocavalcante/overcode/cmd/overcode/internal/incremental"
	"github.com/albertocavalcante/overcode/pkg/config"
)

// project is the resolved root and configuration shared by commands.
type project struct {
	root string
	cfg  *config.Config
}

// resolveRoot returns --root as an absolute, existing directory.
func resolveRoot() (string, error) {
	root, err := filepath.Abs(globalFlags.root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("invalid root %s: %w", root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("root must be a directory: %s", root)
	}
	return root, nil
}

// loadProject resolves the root and loads its configuration.
func loadProject() (*project, error) {
	root, err := resolveRoot()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	return &project{root: root, cfg: cfg}, nil
}

// manager builds an index manager wired to the configured extractors.
func (p *project) manager() (*incremental.Manager, error) {
	backend, err := extract.ParseBackend(p.cfg.Index.ParserBackend)
	if err != nil {
		return nil, err
	}
	registry, err := extract.New(extract.Options{
		Backend:   backend,
		Languages: p.cfg.Index.Languages,
	})
	if err != nil {
		return nil, err
	}
	return incremental.NewManager(incremental.Options{
		Root:      p.root,
		Rules:     p.cfg.IgnoreRules(),
		Extractor: registry,
	}), nil
}

// stores returns the snapshot and blob stores without building extractors.
func (p *project) stores() (*incremental.SnapshotStore, *incremental.BlobStore) {
	layout := incremental.NewLayout(p.root)
	return incremental.NewSnapshotStore(layout.History), incremental.NewBlobStore(layout.Blobs)
}
