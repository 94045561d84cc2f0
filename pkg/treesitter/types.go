// Package treesitter wraps smacker/go-tree-sitter behind small interfaces so
// that dependency extractors can walk a concrete syntax tree without caring
// whether the cgo bindings were compiled in.
//
// Only the grammars overcode extracts dependencies from are linked: Rust and
// Python. When the binary is built with CGO_ENABLED=0, NewBackend returns
// ErrCGODisabled and callers fall back to their heuristic parsers.
//
//	backend, err := treesitter.NewBackend()
//	if err != nil {
//	    return heuristic(content)
//	}
//	defer backend.Close()
//
//	parser, err := backend.NewParser(treesitter.Python)
//	...
//	tree, err := parser.Parse(ctx, content)
//	for _, n := range treesitter.FindByType(tree.RootNode(), "import_statement") {
//	    ...
//	}
//
// Backends are safe for concurrent use. Parsers are not; create one per
// goroutine.
package treesitter

import "context"

// Language names a grammar.
type Language string

const (
	// Rust represents the Rust programming language.
	Rust Language = "rust"

	// Python represents the Python programming language.
	Python Language = "python"
)

// AllLanguages returns every grammar this package knows about.
func AllLanguages() []Language {
	return []Language{Rust, Python}
}

// Backend creates parsers.
type Backend interface {
	// Name returns the backend identifier.
	Name() string

	// SupportsLanguage checks if the backend can parse the given language.
	SupportsLanguage(lang Language) bool

	// NewParser creates a parser configured for the given language.
	NewParser(lang Language) (Parser, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Parser parses source code into a concrete syntax tree.
type Parser interface {
	Language() Language
	Parse(ctx context.Context, source []byte) (Tree, error)
	Close() error
}

// Tree is a parsed syntax tree.
type Tree interface {
	RootNode() Node
	Source() []byte
	HasError() bool
	Close() error
}

// Node is a node in the syntax tree.
type Node interface {
	// Type returns the grammar type of this node (e.g. "use_declaration",
	// "import_from_statement", "identifier").
	Type() string

	// Content returns source[StartByte():EndByte()].
	Content(source []byte) string

	StartPoint() Point
	ChildCount() uint32
	Child(index uint32) Node
	NamedChildCount() uint32
	NamedChild(index uint32) Node

	// ChildByFieldName returns nil if no child has this field name.
	ChildByFieldName(name string) Node

	IsNamed() bool
	IsError() bool
	IsNull() bool
}

// Point is a 0-indexed (row, column) position.
type Point struct {
	Row    uint32
	Column uint32
}

// ErrLanguageNotSupported is returned for a grammar the backend lacks.
type ErrLanguageNotSupported struct {
	Language Language
	Backend  string
}

func (e ErrLanguageNotSupported) Error() string {
	return "language " + string(e.Language) + " is not supported by backend " + e.Backend
}

// ErrBackendClosed is returned when attempting to use a backend after Close.
type ErrBackendClosed struct {
	Backend string
}

func (e ErrBackendClosed) Error() string {
	return "backend " + e.Backend + " has been closed"
}

// ErrParserClosed is returned when attempting to use a parser after Close.
type ErrParserClosed struct{}

func (e ErrParserClosed) Error() string {
	return "parser has been closed"
}

// NamedChildren returns all named children of n.
func NamedChildren(n Node) []Node {
	if n == nil || n.IsNull() {
		return nil
	}
	count := n.NamedChildCount()
	children := make([]Node, 0, count)
	for i := uint32(0); i < count; i++ {
		if child := n.NamedChild(i); child != nil {
			children = append(children, child)
		}
	}
	return children
}

// Walk traverses the tree depth-first. The visitor returns false to skip a
// node's children.
func Walk(n Node, visitor func(Node) bool) {
	if n == nil || n.IsNull() {
		return
	}
	if !visitor(n) {
		return
	}
	count := n.ChildCount()
	for i := uint32(0); i < count; i++ {
		if child := n.Child(i); child != nil {
			Walk(child, visitor)
		}
	}
}

// FindByType returns every node of the given type, in source order.
func FindByType(n Node, nodeType string) []Node {
	var results []Node
	Walk(n, func(node Node) bool {
		if node.Type() == nodeType {
			results = append(results, node)
		}
		return true
	})
	return results
}
