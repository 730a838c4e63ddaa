package backend

import (
	"errors"
	"fmt"
	"os"
	gopath "path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jingkaihe/padlock/internal/errx"
	"github.com/jingkaihe/padlock/pkg/api"
)

// TrashDir is where soft-deleted files land, relative to a backend's root.
const TrashDir = ".trash"

// FilesystemBackend serves one virtual mount from a real directory. Every
// operation resolves the virtual path against the root with containment
// checking; symlinks are canonicalized so they cannot escape the root.
type FilesystemBackend struct {
	mount string
	root  string // canonical real root
}

func NewFilesystemBackend(mount, root string) (*FilesystemBackend, error) {
	mount = gopath.Clean(mount)
	if !strings.HasPrefix(mount, "/") {
		return nil, errx.With(api.ErrInvalidArgument, ": mount %q must be absolute", mount)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errx.With(api.ErrInvalidArgument, ": root %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	return &FilesystemBackend{mount: mount, root: canon}, nil
}

// Mount returns the virtual mount point.
func (b *FilesystemBackend) Mount() string { return b.mount }

// Root returns the canonical real directory backing the mount.
func (b *FilesystemBackend) Root() string { return b.root }

// Resolve translates a virtual path into a contained real path. This is the
// single security-relevant check of the layer and runs on every operation.
func (b *FilesystemBackend) Resolve(vpath string) (string, error) {
	rel, err := splitMount(b.mount, vpath)
	if err != nil {
		return "", err
	}
	real := filepath.Join(b.root, filepath.FromSlash(rel))
	if !contained(b.root, real) {
		return "", errx.With(api.ErrPathOutsideRoot, ": %s", vpath)
	}
	canon, err := canonicalize(real)
	if err != nil {
		return "", err
	}
	if !contained(b.root, canon) {
		return "", errx.With(api.ErrPathOutsideRoot, ": %s resolves outside %s", vpath, b.mount)
	}
	return canon, nil
}

// pathError maps an os failure for vpath onto the layer's error kinds.
// ENOTDIR means a path component is a regular file.
func pathError(vpath string, err error) error {
	if os.IsNotExist(err) {
		return errx.With(api.ErrNotFound, ": %s", vpath)
	}
	if errors.Is(err, syscall.ENOTDIR) {
		return errx.With(api.ErrNotADirectory, ": %s", vpath)
	}
	return err
}

func (b *FilesystemBackend) Read(vpath string) (*api.FileRecord, error) {
	real, err := b.Resolve(vpath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(real)
	if err != nil {
		return nil, pathError(vpath, err)
	}
	if info.IsDir() {
		return nil, errx.With(api.ErrIsADirectory, ": %s", vpath)
	}
	data, err := os.ReadFile(real)
	if err != nil {
		return nil, err
	}
	return &api.FileRecord{
		Path:       vpath,
		Content:    data,
		Size:       int64(len(data)),
		CreatedAt:  info.ModTime(),
		ModifiedAt: info.ModTime(),
	}, nil
}

func (b *FilesystemBackend) Write(vpath string, content []byte) error {
	real, err := b.Resolve(vpath)
	if err != nil {
		return err
	}
	if info, err := os.Stat(real); err == nil && info.IsDir() {
		return errx.With(api.ErrIsADirectory, ": %s", vpath)
	}
	if err := os.MkdirAll(filepath.Dir(real), 0o755); err != nil {
		return pathError(vpath, err)
	}
	if err := os.WriteFile(real, content, 0o644); err != nil {
		return pathError(vpath, err)
	}
	return nil
}

func (b *FilesystemBackend) List(vpath string) ([]api.Entry, error) {
	real, err := b.Resolve(vpath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(real)
	if err != nil {
		return nil, pathError(vpath, err)
	}
	if !info.IsDir() {
		return nil, errx.With(api.ErrNotADirectory, ": %s", vpath)
	}

	dirents, err := os.ReadDir(real)
	if err != nil {
		return nil, err
	}
	entries := make([]api.Entry, 0, len(dirents))
	for _, e := range dirents {
		ei, err := e.Info()
		if err != nil {
			continue
		}
		entries = append(entries, api.Entry{
			Name:    e.Name(),
			Size:    ei.Size(),
			Mode:    uint32(ei.Mode()),
			ModTime: ei.ModTime(),
			IsDir:   e.IsDir(),
		})
	}
	return entries, nil
}

// Delete is non-destructive: the target is moved into TrashDir under the
// backend root with a timestamped name so it can be recovered. Deleting
// something already inside the trash removes it permanently.
func (b *FilesystemBackend) Delete(vpath string) error {
	real, err := b.Resolve(vpath)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(real); err != nil {
		return pathError(vpath, err)
	}

	trash := filepath.Join(b.root, TrashDir)
	if contained(trash, real) {
		return os.RemoveAll(real)
	}
	if err := os.MkdirAll(trash, 0o755); err != nil {
		return err
	}

	base := filepath.Base(real)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	name := fmt.Sprintf("%s_%d%s", stem, time.Now().UnixNano(), ext)
	return os.Rename(real, filepath.Join(trash, name))
}

// Move renames src to dst, creating destination parents. It never
// overwrites: an existing destination fails with ErrAlreadyExists and the
// source is left untouched.
func (b *FilesystemBackend) Move(src, dst string) error {
	srcReal, err := b.Resolve(src)
	if err != nil {
		return err
	}
	dstReal, err := b.Resolve(dst)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(srcReal); err != nil {
		return pathError(src, err)
	}
	if _, err := os.Lstat(dstReal); err == nil {
		return errx.With(api.ErrAlreadyExists, ": %s", dst)
	}
	if err := os.MkdirAll(filepath.Dir(dstReal), 0o755); err != nil {
		return pathError(dst, err)
	}
	return os.Rename(srcReal, dstReal)
}

var _ StorageBackend = (*FilesystemBackend)(nil)
