// Package sandbox provides a storage backend that can also run shell
// commands inside its mounted directory. It constrains the working
// directory, rewrites virtual-path tokens, bounds run time and output size.
// It is not an OS-level sandbox: anything the invoked shell can otherwise
// do, it can do.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jingkaihe/padlock/pkg/api"
	"github.com/jingkaihe/padlock/pkg/backend"
)

// NoOutputPlaceholder is returned instead of an empty string so callers can
// tell "ran with no output" from a missing response.
const NoOutputPlaceholder = "<no output>"

// Backend is a FilesystemBackend that additionally satisfies
// backend.ExecutorBackend by running commands through `sh -c` with the mount
// root as working directory.
type Backend struct {
	*backend.FilesystemBackend

	timeout        time.Duration
	maxOutputBytes int
	env            []string
	rewriter       *AliasRewriter
	logger         *slog.Logger
}

type Options struct {
	// Timeout is the hard wall-clock limit per command. Zero means
	// api.DefaultExecTimeout.
	Timeout time.Duration
	// MaxOutputBytes caps combined stdout+stderr. Zero means
	// api.DefaultMaxOutputBytes.
	MaxOutputBytes int
	// Env replaces the inherited environment when non-nil.
	Env map[string]string
	// PathAliases maps virtual prefixes to real paths for command rewriting.
	PathAliases map[string]string
	// TokenAware enables shell-token-based alias rewriting.
	TokenAware bool
	Logger     *slog.Logger
}

func New(mount, root string, opts *Options) (*Backend, error) {
	fsb, err := backend.NewFilesystemBackend(mount, root)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &Options{}
	}

	b := &Backend{
		FilesystemBackend: fsb,
		timeout:           opts.Timeout,
		maxOutputBytes:    opts.MaxOutputBytes,
		rewriter:          NewAliasRewriter(opts.PathAliases, opts.TokenAware),
		logger:            opts.Logger,
	}
	if b.timeout <= 0 {
		b.timeout = api.DefaultExecTimeout
	}
	if b.maxOutputBytes <= 0 {
		b.maxOutputBytes = api.DefaultMaxOutputBytes
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if opts.Env != nil {
		b.env = make([]string, 0, len(opts.Env))
		for k, v := range opts.Env {
			b.env = append(b.env, k+"="+v)
		}
	} else {
		b.env = os.Environ()
	}
	return b, nil
}

// ID identifies the sandbox by its real working directory.
func (b *Backend) ID() string {
	return "local:" + b.Root()
}

// Execute runs command through a shell in the mount root. Process failures
// are reported as data: nonzero exit codes and timeouts come back in the
// response, not as errors.
func (b *Backend) Execute(ctx context.Context, command string) (*api.ExecuteResponse, error) {
	if strings.TrimSpace(command) == "" {
		return &api.ExecuteResponse{
			Output:   "Error: execute expects a non-empty command string.",
			ExitCode: 1,
		}, nil
	}

	command = b.rewriter.Apply(command)

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = b.Root()
	cmd.Env = b.env
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		b.logger.Warn("command timed out",
			"sandbox", b.ID(), "timeout", b.timeout)
		// no partial output in the timeout path
		return &api.ExecuteResponse{
			Output:     fmt.Sprintf("Error: command timed out after %.1f seconds.", b.timeout.Seconds()),
			ExitCode:   api.ExitCodeTimeout,
			DurationMS: duration.Milliseconds(),
		}, nil
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return &api.ExecuteResponse{
				Output:     fmt.Sprintf("Error: %v", runErr),
				ExitCode:   1,
				DurationMS: duration.Milliseconds(),
			}, nil
		}
	}

	var parts []string
	if stdout.Len() > 0 {
		parts = append(parts, stdout.String())
	}
	if stderr.Len() > 0 {
		parts = append(parts, stderr.String())
	}
	output := strings.Join(parts, "\n")
	if output == "" {
		output = NoOutputPlaceholder
	}

	truncated := false
	if len(output) > b.maxOutputBytes {
		output = output[:b.maxOutputBytes]
		truncated = true
	}

	b.logger.Debug("command finished",
		"sandbox", b.ID(),
		"exit_code", exitCode,
		"duration_ms", duration.Milliseconds(),
		"truncated", truncated)

	return &api.ExecuteResponse{
		Output:     output,
		ExitCode:   exitCode,
		Truncated:  truncated,
		DurationMS: duration.Milliseconds(),
	}, nil
}

var _ backend.Backend = (*Backend)(nil)
