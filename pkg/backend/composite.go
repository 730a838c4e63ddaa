package backend

import (
	"context"
	gopath "path"
	"sort"
	"strings"

	"github.com/jingkaihe/padlock/internal/errx"
	"github.com/jingkaihe/padlock/pkg/api"
)

// CompositeBackend routes every operation to the backend owning the longest
// matching path prefix, falling back to the default backend. It performs no
// path rewriting of its own; the target backend interprets the full virtual
// path. Error semantics are pass-through.
type CompositeBackend struct {
	def    StorageBackend
	routes []route
}

type route struct {
	prefix  string // normalized, always ends in "/"
	backend StorageBackend
}

// NewComposite builds a router from a default backend and a prefix→backend
// table. Prefixes are normalized to end in "/" so that a sibling path
// sharing a string prefix (e.g. /workspace2 vs /workspace/) never matches.
// Resolution is longest-prefix-first with a lexicographic tie-break, so it
// does not depend on map iteration or insertion order.
func NewComposite(def StorageBackend, routes map[string]StorageBackend) *CompositeBackend {
	c := &CompositeBackend{def: def}
	for prefix, b := range routes {
		c.routes = append(c.routes, route{prefix: normalizePrefix(prefix), backend: b})
	}
	c.sortRoutes()
	return c
}

func normalizePrefix(p string) string {
	p = gopath.Clean(p)
	if p != "/" {
		p += "/"
	}
	return p
}

func (c *CompositeBackend) sortRoutes() {
	sort.Slice(c.routes, func(i, j int) bool {
		if len(c.routes[i].prefix) != len(c.routes[j].prefix) {
			return len(c.routes[i].prefix) > len(c.routes[j].prefix)
		}
		return c.routes[i].prefix < c.routes[j].prefix
	})
}

// AddRoute registers an additional route after construction.
func (c *CompositeBackend) AddRoute(prefix string, b StorageBackend) {
	c.routes = append(c.routes, route{prefix: normalizePrefix(prefix), backend: b})
	c.sortRoutes()
}

// Resolve returns the backend owning vpath.
func (c *CompositeBackend) Resolve(vpath string) StorageBackend {
	for _, rt := range c.routes {
		if vpath == strings.TrimSuffix(rt.prefix, "/") || strings.HasPrefix(vpath, rt.prefix) {
			return rt.backend
		}
	}
	return c.def
}

func (c *CompositeBackend) Read(path string) (*api.FileRecord, error) {
	return c.Resolve(path).Read(path)
}

func (c *CompositeBackend) Write(path string, content []byte) error {
	return c.Resolve(path).Write(path, content)
}

func (c *CompositeBackend) List(path string) ([]api.Entry, error) {
	return c.Resolve(path).List(path)
}

func (c *CompositeBackend) Delete(path string) error {
	return c.Resolve(path).Delete(path)
}

// Move requires both endpoints to resolve to the same backend; the layer
// offers no cross-backend transactions.
func (c *CompositeBackend) Move(src, dst string) error {
	srcBackend := c.Resolve(src)
	if c.Resolve(dst) != srcBackend {
		return errx.With(api.ErrInvalidArgument, ": move across backends: %s -> %s", src, dst)
	}
	return srcBackend.Move(src, dst)
}

// Execute runs a command on the default backend.
func (c *CompositeBackend) Execute(ctx context.Context, command string) (*api.ExecuteResponse, error) {
	return executeOn(ctx, c.def, command)
}

// ExecuteIn runs a command on the backend owning vpath, so a caller can
// target a specific sandbox mount.
func (c *CompositeBackend) ExecuteIn(ctx context.Context, vpath, command string) (*api.ExecuteResponse, error) {
	return executeOn(ctx, c.Resolve(vpath), command)
}

func executeOn(ctx context.Context, b StorageBackend, command string) (*api.ExecuteResponse, error) {
	exec, ok := b.(ExecutorBackend)
	if !ok {
		return nil, api.ErrExecuteUnsupported
	}
	return exec.Execute(ctx, command)
}

var _ Backend = (*CompositeBackend)(nil)
