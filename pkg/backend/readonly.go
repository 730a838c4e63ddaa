package backend

import (
	"github.com/jingkaihe/padlock/internal/errx"
	"github.com/jingkaihe/padlock/pkg/api"
)

// ReadonlyBackend wraps a StorageBackend and denies every mutation. Used for
// mounts holding reference material, such as a skills root.
type ReadonlyBackend struct {
	inner StorageBackend
}

func NewReadonlyBackend(inner StorageBackend) *ReadonlyBackend {
	return &ReadonlyBackend{inner: inner}
}

func (b *ReadonlyBackend) Read(path string) (*api.FileRecord, error) { return b.inner.Read(path) }
func (b *ReadonlyBackend) List(path string) ([]api.Entry, error)     { return b.inner.List(path) }

func (b *ReadonlyBackend) Write(path string, content []byte) error {
	return errx.With(api.ErrReadOnly, ": write %s", path)
}

func (b *ReadonlyBackend) Delete(path string) error {
	return errx.With(api.ErrReadOnly, ": delete %s", path)
}

func (b *ReadonlyBackend) Move(src, dst string) error {
	return errx.With(api.ErrReadOnly, ": move %s", src)
}

var _ StorageBackend = (*ReadonlyBackend)(nil)
