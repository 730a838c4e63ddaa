// Package backend implements the virtual storage namespace: capability
// interfaces, path containment, and the concrete filesystem, in-memory, and
// composite backends.
package backend

import (
	"context"

	"github.com/jingkaihe/padlock/pkg/api"
)

// StorageBackend is the capability surface every mounted backend implements.
// All paths are virtual: absolute, slash-separated, rooted at the backend's
// mount point.
type StorageBackend interface {
	Read(path string) (*api.FileRecord, error)
	Write(path string, content []byte) error
	List(path string) ([]api.Entry, error)
	Delete(path string) error
	Move(src, dst string) error
}

// ExecutorBackend is implemented by backends that can also run shell
// commands. Execute blocks until the command finishes or ctx (bounded by the
// backend's own timeout) expires.
type ExecutorBackend interface {
	Execute(ctx context.Context, command string) (*api.ExecuteResponse, error)
}

// Backend combines storage and execution capabilities.
type Backend interface {
	StorageBackend
	ExecutorBackend
}
