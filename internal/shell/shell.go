// Package shell runs configured command lines, such as the mixer and the
// audio player, with a timeout.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/sweeney/phonehack/internal/logging"
)

// DefaultTimeout bounds a command when the runner has no timeout set.
const DefaultTimeout = 5 * time.Second

var (
	// ErrTimeout is returned when a command outlives its timeout.
	ErrTimeout = errors.New("shell: command timed out")
	// ErrEmpty is returned for a blank command line.
	ErrEmpty = errors.New("shell: empty command")
)

// Runner runs a command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, args []string) (string, error)
}

// Split parses a command line with shell quoting rules.
func Split(cmdline string) ([]string, error) {
	args, err := shlex.Split(cmdline)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", cmdline, err)
	}
	if len(args) == 0 {
		return nil, ErrEmpty
	}
	return args, nil
}

// RunLine splits cmdline and runs it with r.
func RunLine(ctx context.Context, r Runner, cmdline string) (string, error) {
	args, err := Split(cmdline)
	if err != nil {
		return "", err
	}
	return r.Run(ctx, args)
}

// ExecRunner runs commands as child processes. No shell is involved, so
// arguments are passed through verbatim.
type ExecRunner struct {
	Timeout time.Duration
}

// Run executes args[0] with the remaining arguments. A non-zero exit status
// is returned as an error carrying stderr.
func (r ExecRunner) Run(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", ErrEmpty
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	line := strings.Join(args, " ")
	logging.Debugf("executing shell command %q", line)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w: %q after %v", ErrTimeout, line, timeout)
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("command %q exited with status %d: %s",
				line, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("command %q: %w", line, err)
	}

	out := stdout.String()
	logging.Tracef("command %q successful with stdout: %s", line, out)
	return out, nil
}
