//go:build cgo

package treesitter

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
)

// cgoBackend implements Backend using smacker/go-tree-sitter.
type cgoBackend struct {
	mu     sync.RWMutex
	closed bool
}

// NewBackend creates the cgo tree-sitter backend.
func NewBackend() (Backend, error) {
	return &cgoBackend{}, nil
}

func (b *cgoBackend) Name() string {
	return "cgo"
}

func (b *cgoBackend) SupportsLanguage(lang Language) bool {
	_, err := b.sitterLanguage(lang)
	return err == nil
}

func (b *cgoBackend) NewParser(lang Language) (Parser, error) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		return nil, ErrBackendClosed{Backend: b.Name()}
	}

	sitterLang, err := b.sitterLanguage(lang)
	if err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	parser.SetLanguage(sitterLang)
	return &cgoParser{parser: parser, lang: lang}, nil
}

func (b *cgoBackend) sitterLanguage(lang Language) (*sitter.Language, error) {
	switch lang {
	case Rust:
		return rust.GetLanguage(), nil
	case Python:
		return python.GetLanguage(), nil
	default:
		return nil, ErrLanguageNotSupported{Language: lang, Backend: b.Name()}
	}
}

func (b *cgoBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

type cgoParser struct {
	mu     sync.Mutex
	parser *sitter.Parser
	lang   Language
	closed bool
}

func (p *cgoParser) Language() Language {
	return p.lang
}

func (p *cgoParser) Parse(ctx context.Context, source []byte) (Tree, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrParserClosed{}
	}

	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return &cgoTree{tree: tree, source: source}, nil
}

func (p *cgoParser) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.parser.Close()
	return nil
}

type cgoTree struct {
	tree   *sitter.Tree
	source []byte
}

func (t *cgoTree) RootNode() Node {
	return wrap(t.tree.RootNode())
}

func (t *cgoTree) Source() []byte {
	return t.source
}

func (t *cgoTree) HasError() bool {
	root := t.tree.RootNode()
	return root != nil && root.HasError()
}

func (t *cgoTree) Close() error {
	t.tree.Close()
	return nil
}

type cgoNode struct {
	node *sitter.Node
}

// wrap returns nil for a nil node so callers can compare against nil.
func wrap(n *sitter.Node) Node {
	if n == nil {
		return nil
	}
	return &cgoNode{node: n}
}

func (n *cgoNode) Type() string {
	return n.node.Type()
}

func (n *cgoNode) Content(source []byte) string {
	return n.node.Content(source)
}

func (n *cgoNode) StartPoint() Point {
	p := n.node.StartPoint()
	return Point{Row: p.Row, Column: p.Column}
}

func (n *cgoNode) ChildCount() uint32 {
	return n.node.ChildCount()
}

func (n *cgoNode) Child(index uint32) Node {
	return wrap(n.node.Child(int(index)))
}

func (n *cgoNode) NamedChildCount() uint32 {
	return n.node.NamedChildCount()
}

func (n *cgoNode) NamedChild(index uint32) Node {
	return wrap(n.node.NamedChild(int(index)))
}

func (n *cgoNode) ChildByFieldName(name string) Node {
	return wrap(n.node.ChildByFieldName(name))
}

func (n *cgoNode) IsNamed() bool {
	return n.node.IsNamed()
}

func (n *cgoNode) IsError() bool {
	return n.node.IsError()
}

func (n *cgoNode) IsNull() bool {
	return n.node == nil || n.node.IsNull()
}
