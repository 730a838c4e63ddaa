package run

import (
	"log/slog"
	"path/filepath"

	"github.com/jingkaihe/padlock/internal/errx"
	"github.com/jingkaihe/padlock/pkg/api"
	"github.com/jingkaihe/padlock/pkg/backend"
	"github.com/jingkaihe/padlock/pkg/sandbox"
)

// Build wires a CompositeBackend for one run. Every configured mount becomes
// a route; the run's state store serves everything not claimed by a mount.
// Sandbox mounts receive path aliases for all disk-backed mounts plus any
// configured explicitly, so commands can reference other mounts by their
// virtual prefix.
func Build(r *Run, cfg *api.Config, logger *slog.Logger) (*backend.CompositeBackend, error) {
	if cfg == nil {
		cfg = api.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	aliases := make(map[string]string)
	for prefix, real := range cfg.Sandbox.GetPathAliases() {
		aliases[prefix] = real
	}
	for mountPath, mc := range cfg.Mounts {
		if mc.Type == api.MountTypeMemory || mc.HostPath == "" {
			continue
		}
		abs, err := filepath.Abs(mc.HostPath)
		if err != nil {
			return nil, errx.With(api.ErrInvalidArgument, ": mount %s: %w", mountPath, err)
		}
		if _, ok := aliases[mountPath]; !ok {
			aliases[mountPath] = abs
		}
	}

	routes := make(map[string]backend.StorageBackend, len(cfg.Mounts))
	for mountPath, mc := range cfg.Mounts {
		if (mc.Type == api.MountTypeFS || mc.Type == api.MountTypeSandbox) && mc.HostPath == "" {
			return nil, errx.With(api.ErrInvalidArgument, ": mount %s has no host path", mountPath)
		}
		var (
			sb  backend.StorageBackend
			err error
		)
		switch mc.Type {
		case api.MountTypeMemory:
			sb = backend.NewStateBackend(mountPath)
		case api.MountTypeFS:
			sb, err = backend.NewFilesystemBackend(mountPath, mc.HostPath)
		case api.MountTypeSandbox:
			sb, err = sandbox.New(mountPath, mc.HostPath, &sandbox.Options{
				Timeout:        cfg.Sandbox.GetTimeout(),
				MaxOutputBytes: cfg.Sandbox.GetMaxOutputBytes(),
				Env:            cfg.Sandbox.GetEnv(),
				PathAliases:    aliases,
				TokenAware:     cfg.Sandbox.GetTokenAware(),
				Logger:         logger,
			})
		default:
			return nil, errx.With(api.ErrInvalidArgument, ": mount %s has unknown type %q", mountPath, mc.Type)
		}
		if err != nil {
			return nil, err
		}
		if mc.Readonly {
			sb = backend.NewReadonlyBackend(sb)
		}
		routes[mountPath+"/"] = sb
	}

	logger.Debug("backend composite wired",
		"run", r.ID, "mounts", len(routes))
	return backend.NewComposite(r.State, routes), nil
}
