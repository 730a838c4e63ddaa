package api

import "time"

// FileRecord is the logical unit of stored content returned by read
// operations. For filesystem-backed mounts it is derived on demand from the
// real file; for state-backed mounts it is the persisted unit itself.
type FileRecord struct {
	Path       string    `json:"path"`
	Content    []byte    `json:"content,omitempty"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Entry describes one immediate child of a listed directory.
type Entry struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	Mode    uint32    `json:"mode"`
	ModTime time.Time `json:"mod_time"`
	IsDir   bool      `json:"is_dir"`
}

// ExitCodeTimeout is reported when a command exceeds its wall-clock limit.
// All other nonzero codes pass through from the underlying process.
const ExitCodeTimeout = 124

// ExecuteResponse is the result of running a command. Process failures are
// data, not errors: callers branch on ExitCode, and truncation is a flag.
type ExecuteResponse struct {
	Output     string `json:"output"`
	ExitCode   int    `json:"exit_code"`
	Truncated  bool   `json:"truncated"`
	DurationMS int64  `json:"duration_ms"`
}
