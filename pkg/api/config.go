package api

import "time"

// DefaultWorkspace is the default mount point for sandboxed runs
const DefaultWorkspace = "/workspace"

// Mount backend types
const (
	MountTypeFS      = "fs"
	MountTypeMemory  = "memory"
	MountTypeSandbox = "sandbox"
)

const (
	DefaultExecTimeout    = 120 * time.Second
	DefaultMaxOutputBytes = 200_000
)

type Config struct {
	Mounts  map[string]MountConfig `json:"mounts,omitempty"`
	Sandbox *SandboxConfig         `json:"sandbox,omitempty"`
}

// MountConfig binds one virtual-path prefix to a backend. HostPath is
// required for fs and sandbox mounts and ignored for memory mounts.
type MountConfig struct {
	Type     string `json:"type"`
	HostPath string `json:"host_path,omitempty"`
	Readonly bool   `json:"readonly,omitempty"`
}

type SandboxConfig struct {
	TimeoutSeconds    int               `json:"timeout_seconds,omitempty"`
	Timeout           time.Duration     `json:"-"`
	MaxOutputBytes    int               `json:"max_output_bytes,omitempty"`
	Env               map[string]string `json:"env,omitempty"`
	PathAliases       map[string]string `json:"path_aliases,omitempty"`
	TokenAwareAliases bool              `json:"token_aware_aliases,omitempty"`
}

// GetTimeout returns the configured wall-clock limit or the default
func (s *SandboxConfig) GetTimeout() time.Duration {
	if s != nil {
		if s.Timeout > 0 {
			return s.Timeout
		}
		if s.TimeoutSeconds > 0 {
			return time.Duration(s.TimeoutSeconds) * time.Second
		}
	}
	return DefaultExecTimeout
}

// GetMaxOutputBytes returns the configured output ceiling or the default
func (s *SandboxConfig) GetMaxOutputBytes() int {
	if s != nil && s.MaxOutputBytes > 0 {
		return s.MaxOutputBytes
	}
	return DefaultMaxOutputBytes
}

func (s *SandboxConfig) GetEnv() map[string]string {
	if s == nil {
		return nil
	}
	return s.Env
}

func (s *SandboxConfig) GetPathAliases() map[string]string {
	if s == nil {
		return nil
	}
	return s.PathAliases
}

func (s *SandboxConfig) GetTokenAware() bool {
	return s != nil && s.TokenAwareAliases
}

func DefaultConfig() *Config {
	return &Config{
		Mounts: map[string]MountConfig{
			DefaultWorkspace: {Type: MountTypeSandbox, HostPath: "./workspace"},
		},
		Sandbox: &SandboxConfig{
			TimeoutSeconds: int(DefaultExecTimeout / time.Second),
			MaxOutputBytes: DefaultMaxOutputBytes,
		},
	}
}

func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c
	if len(other.Mounts) > 0 {
		merged := make(map[string]MountConfig, len(c.Mounts)+len(other.Mounts))
		for k, v := range c.Mounts {
			merged[k] = v
		}
		for k, v := range other.Mounts {
			merged[k] = v
		}
		result.Mounts = merged
	}
	if other.Sandbox != nil {
		sb := *other.Sandbox
		if c.Sandbox != nil {
			if sb.TimeoutSeconds == 0 && sb.Timeout == 0 {
				sb.TimeoutSeconds = c.Sandbox.TimeoutSeconds
				sb.Timeout = c.Sandbox.Timeout
			}
			if sb.MaxOutputBytes == 0 {
				sb.MaxOutputBytes = c.Sandbox.MaxOutputBytes
			}
			if sb.Env == nil {
				sb.Env = c.Sandbox.Env
			}
			if sb.PathAliases == nil {
				sb.PathAliases = c.Sandbox.PathAliases
			}
		}
		result.Sandbox = &sb
	}
	return &result
}
