package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// StageRunner executes external pipeline stages as local OS processes.
type StageRunner struct {
	// DryRun echoes commands instead of executing them.
	DryRun bool

	// Timeout is the wall-clock limit per stage; zero means no limit.
	// A timeout is a fatal stage failure with no retry.
	Timeout time.Duration
}

// Run executes a command and returns its combined output.
func (r *StageRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	if r.DryRun {
		fmt.Printf("[dry-run] would execute: %s %s\n", name, strings.Join(args, " "))
		return "", nil
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return string(output), fmt.Errorf("%s timed out after %s", name, r.Timeout)
		}
		trimmed := strings.TrimSpace(string(output))
		if trimmed != "" {
			return string(output), fmt.Errorf("%s failed: %w (output: %s)", name, err, trimmed)
		}
		return string(output), fmt.Errorf("%s failed: %w", name, err)
	}
	return string(output), nil
}

// Available reports whether an executable can be resolved on PATH (or as
// a direct path).
func (r *StageRunner) Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
