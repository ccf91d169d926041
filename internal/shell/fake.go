package shell

import (
	"context"
	"strings"
	"sync"
)

// FakeRunner records commands instead of running them.
type FakeRunner struct {
	mu       sync.Mutex
	commands [][]string

	// Output is returned by every successful Run.
	Output string
	// Errors maps a command's first argument to the error Run returns for it.
	Errors map[string]error
}

// NewFakeRunner creates a FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{Errors: make(map[string]error)}
}

// Run records args and returns the scripted result.
func (f *FakeRunner) Run(ctx context.Context, args []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(args) == 0 {
		return "", ErrEmpty
	}
	f.commands = append(f.commands, append([]string(nil), args...))
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := f.Errors[args[0]]; err != nil {
		return "", err
	}
	return f.Output, nil
}

// SetError scripts the error returned for commands starting with name.
func (f *FakeRunner) SetError(name string, err error) {
	f.mu.Lock()
	f.Errors[name] = err
	f.mu.Unlock()
}

// Commands returns the recorded command lines, space-joined.
func (f *FakeRunner) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.commands))
	for i, c := range f.commands {
		out[i] = strings.Join(c, " ")
	}
	return out
}

// Args returns the recorded argument vectors.
func (f *FakeRunner) Args() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.commands...)
}
