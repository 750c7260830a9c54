package hal

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultProbeTimeout bounds a single probe command.
const DefaultProbeTimeout = 10 * time.Second

// CommandRunner runs an external probe tool and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec, each bounded by timeout. A missing
// binary maps to ErrHardwareNotAvailable and a failing one to
// ErrCommandFailed.
func ExecRunner(timeout time.Duration) CommandRunner {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, name, args...)
		output, err := cmd.Output()
		if err == nil {
			return output, nil
		}

		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrHardwareNotAvailable.WithCause(fmt.Errorf("%s not found in PATH", name))
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, ErrCommandFailed.WithCause(
				fmt.Errorf("%s exited with code %d: %s", name, exitErr.ExitCode(), strings.TrimSpace(string(exitErr.Stderr))))
		}
		return nil, ErrCommandFailed.WithCause(err)
	}
}
