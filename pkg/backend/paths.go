package backend

import (
	"errors"
	"os"
	gopath "path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jingkaihe/padlock/internal/errx"
	"github.com/jingkaihe/padlock/pkg/api"
)

// splitMount checks that vpath addresses something under mount and returns
// the remainder relative to the mount point ("" for the mount itself). The
// remainder is NOT normalized; traversal segments are caught later, against
// the backend's own root, so that an escape surfaces as ErrPathOutsideRoot
// rather than ErrInvalidPath.
func splitMount(mount, vpath string) (string, error) {
	if !strings.HasPrefix(vpath, "/") {
		return "", errx.With(api.ErrInvalidPath, ": %q is not absolute", vpath)
	}
	if mount == "/" {
		return strings.TrimPrefix(vpath, "/"), nil
	}
	if vpath == mount {
		return "", nil
	}
	if strings.HasPrefix(vpath, mount+"/") {
		return strings.TrimPrefix(vpath, mount+"/"), nil
	}
	return "", errx.With(api.ErrInvalidPath, ": %s is not under %s", vpath, mount)
}

// normalizeRel cleans a mount-relative remainder into a rooted virtual key
// ("/a/b", or "/" for the mount itself). Traversal that would climb above
// the mount fails with ErrPathOutsideRoot.
func normalizeRel(rel string) (string, error) {
	if rel == "" {
		return "/", nil
	}
	clean := gopath.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errx.With(api.ErrPathOutsideRoot, ": %s", rel)
	}
	if clean == "." {
		return "/", nil
	}
	return "/" + clean, nil
}

// contained reports whether p equals root or is a descendant of it.
func contained(root, p string) bool {
	return p == root || strings.HasPrefix(p, root+string(filepath.Separator))
}

// canonicalize resolves symlinks in p. When p does not exist yet, the
// deepest existing ancestor is resolved and the remainder re-joined, so a
// symlinked parent cannot smuggle a path outside the root. ENOTDIR is
// treated like nonexistence; the backend's own stat reports the kind
// mismatch.
func canonicalize(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) && !errors.Is(err, syscall.ENOTDIR) {
		return "", err
	}
	clean := filepath.Clean(p)
	parent := filepath.Dir(clean)
	if parent == clean {
		return "", err
	}
	resolvedParent, err := canonicalize(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(clean)), nil
}
