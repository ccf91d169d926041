package audio

import (
	"context"
	"sync"
)

// FakePlayer records plays for tests.
type FakePlayer struct {
	mu     sync.Mutex
	played []string
	err    error
	calls  chan string
}

// NewFakePlayer creates a FakePlayer. Every Play is also sent on Calls,
// which is buffered; tests that care read from it.
func NewFakePlayer() *FakePlayer {
	return &FakePlayer{calls: make(chan string, 64)}
}

// Play records sound and returns the scripted error.
func (f *FakePlayer) Play(ctx context.Context, sound string) error {
	f.mu.Lock()
	f.played = append(f.played, sound)
	err := f.err
	f.mu.Unlock()
	select {
	case f.calls <- sound:
	default:
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// SetError makes subsequent plays fail with err.
func (f *FakePlayer) SetError(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Played returns the sounds played so far.
func (f *FakePlayer) Played() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.played...)
}

// Calls delivers each played sound.
func (f *FakePlayer) Calls() <-chan string {
	return f.calls
}
