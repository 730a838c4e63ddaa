// Package run ties backends to the lifetime of one agent run and wires them
// into a composite router.
package run

import (
	"time"

	"github.com/google/uuid"

	"github.com/jingkaihe/padlock/pkg/backend"
)

// Run is the unit of backend scoping. Its State store holds run-scoped
// planning and report artifacts under the bare root "/"; the content lives
// only as long as the Run, and no two runs share state.
type Run struct {
	ID        string
	CreatedAt time.Time
	State     *backend.StateBackend
}

func New() *Run {
	return &Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		State:     backend.NewStateBackend("/"),
	}
}
