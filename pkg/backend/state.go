package backend

import (
	"bytes"
	"fmt"
	"os"
	gopath "path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/jingkaihe/padlock/internal/errx"
	"github.com/jingkaihe/padlock/pkg/api"
)

const (
	fileMode = os.FileMode(0o644)
	dirMode  = os.ModeDir | 0o755
)

// StateBackend keeps the same CRUD contract as FilesystemBackend over an
// in-memory path→record map. Its storage is scoped to the owning run:
// content lives only as long as the backend itself. Directories are implied
// by file paths, as in a key/value store. Writers are serialized by a
// single RWMutex; readers of different paths proceed concurrently.
type StateBackend struct {
	mount string
	mu    sync.RWMutex
	files map[string]*stateFile
}

type stateFile struct {
	data       []byte
	createdAt  time.Time
	modifiedAt time.Time
}

func NewStateBackend(mount string) *StateBackend {
	return &StateBackend{
		mount: gopath.Clean(mount),
		files: make(map[string]*stateFile),
	}
}

// Mount returns the virtual mount point.
func (b *StateBackend) Mount() string { return b.mount }

// resolveKey turns a virtual path into a rooted store key ("/a/b"). "/" is
// the mount itself.
func (b *StateBackend) resolveKey(vpath string) (string, error) {
	rel, err := splitMount(b.mount, vpath)
	if err != nil {
		return "", err
	}
	return normalizeRel(rel)
}

// impliedDir reports whether key is a directory implied by stored files.
// Caller holds at least a read lock.
func (b *StateBackend) impliedDir(key string) bool {
	if key == "/" {
		return true
	}
	for k := range b.files {
		if strings.HasPrefix(k, key+"/") {
			return true
		}
	}
	return false
}

func (b *StateBackend) Read(vpath string) (*api.FileRecord, error) {
	key, err := b.resolveKey(vpath)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	f, ok := b.files[key]
	if !ok {
		if b.impliedDir(key) {
			return nil, errx.With(api.ErrIsADirectory, ": %s", vpath)
		}
		return nil, errx.With(api.ErrNotFound, ": %s", vpath)
	}
	return &api.FileRecord{
		Path:       vpath,
		Content:    bytes.Clone(f.data),
		Size:       int64(len(f.data)),
		CreatedAt:  f.createdAt,
		ModifiedAt: f.modifiedAt,
	}, nil
}

func (b *StateBackend) Write(vpath string, content []byte) error {
	key, err := b.resolveKey(vpath)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.files[key]; !ok && b.impliedDir(key) {
		return errx.With(api.ErrIsADirectory, ": %s", vpath)
	}

	now := time.Now()
	if existing, ok := b.files[key]; ok {
		existing.data = bytes.Clone(content)
		existing.modifiedAt = now
		return nil
	}
	b.files[key] = &stateFile{
		data:       bytes.Clone(content),
		createdAt:  now,
		modifiedAt: now,
	}
	return nil
}

func (b *StateBackend) List(vpath string) ([]api.Entry, error) {
	key, err := b.resolveKey(vpath)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, ok := b.files[key]; ok {
		return nil, errx.With(api.ErrNotADirectory, ": %s", vpath)
	}
	if key != "/" && !b.impliedDir(key) {
		return nil, errx.With(api.ErrNotFound, ": %s", vpath)
	}

	prefix := key
	if prefix != "/" {
		prefix += "/"
	}

	type child struct {
		size  int64
		mod   time.Time
		isDir bool
	}
	children := make(map[string]child)
	for k, f := range b.files {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rel := strings.TrimPrefix(k, prefix)
		name, _, nested := strings.Cut(rel, "/")
		if nested {
			// a directory's mtime is its newest child, independent of
			// map iteration order
			if c, ok := children[name]; !ok || f.modifiedAt.After(c.mod) {
				children[name] = child{mod: f.modifiedAt, isDir: true}
			}
		} else {
			children[name] = child{size: int64(len(f.data)), mod: f.modifiedAt}
		}
	}

	entries := make([]api.Entry, 0, len(children))
	for name, c := range children {
		mode := uint32(fileMode)
		if c.isDir {
			mode = uint32(dirMode)
		}
		entries = append(entries, api.Entry{
			Name:    name,
			Size:    c.size,
			Mode:    mode,
			ModTime: c.mod,
			IsDir:   c.isDir,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Delete soft-deletes: the record (or implied directory subtree) moves under
// "/.trash" with a timestamped name. Entries already in the trash are
// removed for good.
func (b *StateBackend) Delete(vpath string) error {
	key, err := b.resolveKey(vpath)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	trashPrefix := "/" + TrashDir
	inTrash := key == trashPrefix || strings.HasPrefix(key, trashPrefix+"/")

	if f, ok := b.files[key]; ok {
		if inTrash {
			delete(b.files, key)
			return nil
		}
		delete(b.files, key)
		b.files[trashKey(key)] = f
		return nil
	}

	if key != "/" && b.impliedDir(key) {
		dst := trashKey(key)
		for k, f := range b.files {
			if !strings.HasPrefix(k, key+"/") {
				continue
			}
			delete(b.files, k)
			if !inTrash {
				b.files[dst+strings.TrimPrefix(k, key)] = f
			}
		}
		return nil
	}

	return errx.With(api.ErrNotFound, ": %s", vpath)
}

// trashKey builds "/.trash/<stem>_<nanots><ext>" for a store key.
func trashKey(key string) string {
	base := gopath.Base(key)
	ext := gopath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("/%s/%s_%d%s", TrashDir, stem, time.Now().UnixNano(), ext)
}

func (b *StateBackend) Move(src, dst string) error {
	srcKey, err := b.resolveKey(src)
	if err != nil {
		return err
	}
	dstKey, err := b.resolveKey(dst)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if dstKey == "/" {
		return errx.With(api.ErrIsADirectory, ": %s", dst)
	}
	if _, ok := b.files[dstKey]; ok || b.impliedDir(dstKey) {
		return errx.With(api.ErrAlreadyExists, ": %s", dst)
	}

	if f, ok := b.files[srcKey]; ok {
		delete(b.files, srcKey)
		b.files[dstKey] = f
		return nil
	}

	if srcKey != "/" && b.impliedDir(srcKey) {
		if dstKey == srcKey || strings.HasPrefix(dstKey, srcKey+"/") {
			return errx.With(api.ErrInvalidArgument, ": cannot move %s into its own subtree", src)
		}
		// collect before mutating; inserting while ranging can revisit
		// the new keys
		var keys []string
		for k := range b.files {
			if strings.HasPrefix(k, srcKey+"/") {
				keys = append(keys, k)
			}
		}
		for _, k := range keys {
			f := b.files[k]
			delete(b.files, k)
			b.files[dstKey+strings.TrimPrefix(k, srcKey)] = f
		}
		return nil
	}

	return errx.With(api.ErrNotFound, ": %s", src)
}

type stateSnapshot struct {
	Files map[string]snapshotFile `cbor:"files"`
}

// snapshotEnc keeps nanosecond timestamp precision; the default cbor time
// mode truncates to whole seconds.
var snapshotEnc = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

type snapshotFile struct {
	Data       []byte    `cbor:"data"`
	CreatedAt  time.Time `cbor:"created_at"`
	ModifiedAt time.Time `cbor:"modified_at"`
}

// Snapshot serializes the whole store so a run's scratch artifacts can be
// exported and re-imported later.
func (b *StateBackend) Snapshot() ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := stateSnapshot{Files: make(map[string]snapshotFile, len(b.files))}
	for k, f := range b.files {
		snap.Files[k] = snapshotFile{
			Data:       bytes.Clone(f.data),
			CreatedAt:  f.createdAt,
			ModifiedAt: f.modifiedAt,
		}
	}
	return snapshotEnc.Marshal(snap)
}

// Restore replaces the store contents with a previously taken Snapshot.
func (b *StateBackend) Restore(data []byte) error {
	var snap stateSnapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return errx.With(api.ErrInvalidArgument, ": decode snapshot: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.files = make(map[string]*stateFile, len(snap.Files))
	for k, f := range snap.Files {
		b.files[k] = &stateFile{
			data:       bytes.Clone(f.Data),
			createdAt:  f.CreatedAt,
			modifiedAt: f.ModifiedAt,
		}
	}
	return nil
}

var _ StorageBackend = (*StateBackend)(nil)
