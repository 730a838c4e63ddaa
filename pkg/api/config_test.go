package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Contains(t, cfg.Mounts, DefaultWorkspace)
	assert.Equal(t, MountTypeSandbox, cfg.Mounts[DefaultWorkspace].Type)
	assert.Equal(t, 120*time.Second, cfg.Sandbox.GetTimeout())
	assert.Equal(t, 200_000, cfg.Sandbox.GetMaxOutputBytes())
}

func TestSandboxConfigDefaults(t *testing.T) {
	var s *SandboxConfig
	assert.Equal(t, DefaultExecTimeout, s.GetTimeout())
	assert.Equal(t, DefaultMaxOutputBytes, s.GetMaxOutputBytes())

	s = &SandboxConfig{TimeoutSeconds: 5}
	assert.Equal(t, 5*time.Second, s.GetTimeout())

	s = &SandboxConfig{Timeout: 250 * time.Millisecond, TimeoutSeconds: 5}
	assert.Equal(t, 250*time.Millisecond, s.GetTimeout())
}

func TestConfigMergeNil(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, cfg, cfg.Merge(nil))
}

func TestConfigMergeMounts(t *testing.T) {
	base := DefaultConfig()
	merged := base.Merge(&Config{
		Mounts: map[string]MountConfig{
			"/skills": {Type: MountTypeFS, HostPath: "./skills", Readonly: true},
		},
	})

	assert.Contains(t, merged.Mounts, DefaultWorkspace)
	assert.Contains(t, merged.Mounts, "/skills")
	assert.True(t, merged.Mounts["/skills"].Readonly)
	// base is untouched
	assert.NotContains(t, base.Mounts, "/skills")
}

func TestConfigMergeSandbox(t *testing.T) {
	base := DefaultConfig()
	base.Sandbox.PathAliases = map[string]string{"/workspace": "/tmp/ws"}

	merged := base.Merge(&Config{Sandbox: &SandboxConfig{TimeoutSeconds: 30}})
	assert.Equal(t, 30*time.Second, merged.Sandbox.GetTimeout())
	assert.Equal(t, DefaultMaxOutputBytes, merged.Sandbox.GetMaxOutputBytes())
	assert.Equal(t, map[string]string{"/workspace": "/tmp/ws"}, merged.Sandbox.PathAliases)
}
