//go:build !cgo

package treesitter

import "errors"

// ErrCGODisabled is returned by NewBackend when the binary was built without cgo.
var ErrCGODisabled = errors.New("tree-sitter backend is not available: build with CGO_ENABLED=1")

// NewBackend returns ErrCGODisabled when CGO is not available.
func NewBackend() (Backend, error) {
	return nil, ErrCGODisabled
}
