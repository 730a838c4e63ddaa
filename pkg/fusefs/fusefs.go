// Package fusefs exports a storage backend as a read-only FUSE filesystem,
// so tools that only speak POSIX paths can browse a run's virtual namespace.
// Mutations go through the backend API, not the mount; every write operation
// here answers EROFS.
package fusefs

import (
	"context"
	"errors"
	gopath "path"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/jingkaihe/padlock/pkg/api"
	"github.com/jingkaihe/padlock/pkg/backend"
)

const (
	regMode = 0o444
	dirMode = 0o555
)

// Node is a file or directory inside the exported namespace. The root node
// maps to the backend's mount path; children are created on lookup.
type Node struct {
	fs.Inode

	store backend.StorageBackend
	path  string
}

var _ = (fs.NodeGetattrer)((*Node)(nil))
var _ = (fs.NodeLookuper)((*Node)(nil))
var _ = (fs.NodeReaddirer)((*Node)(nil))
var _ = (fs.NodeOpener)((*Node)(nil))
var _ = (fs.NodeCreater)((*Node)(nil))
var _ = (fs.NodeMkdirer)((*Node)(nil))
var _ = (fs.NodeUnlinker)((*Node)(nil))
var _ = (fs.NodeRmdirer)((*Node)(nil))
var _ = (fs.NodeRenamer)((*Node)(nil))
var _ = (fs.NodeSetattrer)((*Node)(nil))

// NewRoot returns the root node for store, anchored at the virtual path
// base (usually the store's mount point).
func NewRoot(store backend.StorageBackend, base string) *Node {
	return &Node{store: store, path: base}
}

// Errno translates a backend error into the closest FUSE errno.
func Errno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, api.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, api.ErrIsADirectory):
		return syscall.EISDIR
	case errors.Is(err, api.ErrNotADirectory):
		return syscall.ENOTDIR
	case errors.Is(err, api.ErrAlreadyExists):
		return syscall.EEXIST
	case errors.Is(err, api.ErrReadOnly):
		return syscall.EROFS
	case errors.Is(err, api.ErrPathOutsideRoot):
		return syscall.EACCES
	case errors.Is(err, api.ErrInvalidPath), errors.Is(err, api.ErrInvalidArgument):
		return syscall.EINVAL
	default:
		return syscall.EIO
	}
}

func (n *Node) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	rec, err := n.store.Read(n.path)
	if err == nil {
		fillFileAttr(&out.Attr, rec)
		return 0
	}
	if errors.Is(err, api.ErrIsADirectory) {
		fillDirAttr(&out.Attr)
		return 0
	}
	return Errno(err)
}

func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	path := gopath.Join(n.path, name)

	rec, err := n.store.Read(path)
	if err == nil {
		fillFileAttr(&out.Attr, rec)
		child := n.NewInode(ctx, &Node{store: n.store, path: path},
			fs.StableAttr{Mode: out.Attr.Mode})
		return child, 0
	}
	if errors.Is(err, api.ErrIsADirectory) {
		fillDirAttr(&out.Attr)
		child := n.NewInode(ctx, &Node{store: n.store, path: path},
			fs.StableAttr{Mode: out.Attr.Mode})
		return child, 0
	}
	return nil, Errno(err)
}

func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	listed, err := n.store.List(n.path)
	if err != nil {
		return nil, Errno(err)
	}

	entries := make([]fuse.DirEntry, len(listed))
	for i, e := range listed {
		mode := uint32(syscall.S_IFREG)
		if e.IsDir {
			mode = syscall.S_IFDIR
		}
		entries[i] = fuse.DirEntry{Name: e.Name, Mode: mode}
	}
	return fs.NewListDirStream(entries), 0
}

// Open reads the whole record and serves it from memory. Records in this
// namespace are small agent artifacts, not bulk data, so snapshot semantics
// beat chasing concurrent writers.
func (n *Node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}

	rec, err := n.store.Read(n.path)
	if err != nil {
		return nil, 0, Errno(err)
	}
	return &fileHandle{data: rec.Content}, fuse.FOPEN_KEEP_CACHE, 0
}

func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	return nil, nil, 0, syscall.EROFS
}

func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	return nil, syscall.EROFS
}

func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	return syscall.EROFS
}

func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return syscall.EROFS
}

func (n *Node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	return syscall.EROFS
}

func (n *Node) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	return syscall.EROFS
}

type fileHandle struct {
	data []byte
}

var _ = (fs.FileReader)((*fileHandle)(nil))

func (h *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if off >= int64(len(h.data)) {
		return fuse.ReadResultData(nil), 0
	}
	end := off + int64(len(dest))
	if end > int64(len(h.data)) {
		end = int64(len(h.data))
	}
	return fuse.ReadResultData(h.data[off:end]), 0
}

func fillFileAttr(attr *fuse.Attr, rec *api.FileRecord) {
	attr.Mode = syscall.S_IFREG | regMode
	attr.Size = uint64(rec.Size)
	attr.Mtime = uint64(rec.ModifiedAt.Unix())
	attr.Ctime = uint64(rec.CreatedAt.Unix())
	attr.Atime = attr.Mtime
	attr.Blksize = 4096
	attr.Blocks = (uint64(rec.Size) + 511) / 512
	attr.Nlink = 1
}

func fillDirAttr(attr *fuse.Attr) {
	attr.Mode = syscall.S_IFDIR | dirMode
	attr.Blksize = 4096
	attr.Nlink = 2
}

// Mount exports store at mountpoint and returns the fuse server. The caller
// owns the server lifecycle: Unmount to stop, Wait to block until unmounted.
func Mount(mountpoint string, store backend.StorageBackend, base string) (*fuse.Server, error) {
	second := time.Second
	opts := &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName: "padlock",
			Name:   "fuse.padlock",
		},
		AttrTimeout:  &second,
		EntryTimeout: &second,
	}
	return fs.Mount(mountpoint, NewRoot(store, base), opts)
}
