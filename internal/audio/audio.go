// Package audio plays named sound files through a command-line player.
package audio

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sweeney/phonehack/internal/logging"
	"github.com/sweeney/phonehack/internal/shell"
)

// Audio outputs understood by the player.
const (
	OutputLocal = "local"
	OutputHDMI  = "hdmi"
	OutputBoth  = "both"
)

// SoundApplause is the sound played after an answered ring.
const SoundApplause = "applause"

// DefaultPlayerCommand is the player command template. {output} and {file}
// are replaced per argument, after splitting, so paths with spaces survive.
const DefaultPlayerCommand = "omxplayer -o {output} {file}"

// DefaultSetupCommands unmute the headphone jack and turn it up.
var DefaultSetupCommands = []string{
	"amixer set Headphone unmute",
	"amixer set Headphone 100%",
}

var (
	ErrUnknownSound  = errors.New("audio: unknown sound")
	ErrInvalidOutput = errors.New("audio: invalid output")
	// ErrSuspended is returned while repeated player failures hold the
	// circuit open.
	ErrSuspended = errors.New("audio: playback suspended after repeated failures")
)

// ValidateOutput checks that o names a supported output.
func ValidateOutput(o string) error {
	switch o {
	case OutputLocal, OutputHDMI, OutputBoth:
		return nil
	}
	return fmt.Errorf("%w: %q (want %s, %s or %s)", ErrInvalidOutput, o, OutputLocal, OutputHDMI, OutputBoth)
}

// Manifest maps sound names to file paths.
type Manifest map[string]string

// DefaultManifest is the bundled sound set.
func DefaultManifest() Manifest {
	return Manifest{SoundApplause: "applause.wav"}
}

// Resolve returns a copy of m with relative paths joined to dir.
func (m Manifest) Resolve(dir string) Manifest {
	out := make(Manifest, len(m))
	for name, p := range m {
		if !filepath.IsAbs(p) && dir != "" {
			p = filepath.Join(dir, p)
		}
		out[name] = p
	}
	return out
}

// Path returns the file for name.
func (m Manifest) Path(name string) (string, error) {
	p, ok := m[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSound, name)
	}
	return p, nil
}

// Names returns the sound names in sorted order.
func (m Manifest) Names() []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Player plays a named sound, blocking until playback ends.
type Player interface {
	Play(ctx context.Context, sound string) error
}

// Config configures a ShellPlayer.
type Config struct {
	Manifest Manifest
	Output   string
	Command  string   // defaults to DefaultPlayerCommand
	Setup    []string // mixer commands run by Setup
	// SetupRunner runs the mixer commands; the player's runner if nil.
	SetupRunner shell.Runner
	// FailureThreshold consecutive failures open the circuit for Cooldown.
	FailureThreshold uint32
	Cooldown         time.Duration
}

// ShellPlayer runs an external player for each sound.
type ShellPlayer struct {
	runner   shell.Runner
	mixer    shell.Runner
	manifest Manifest
	output   string
	command  []string
	setup    []string
	breaker  *gobreaker.CircuitBreaker
}

// NewShellPlayer validates cfg.
func NewShellPlayer(runner shell.Runner, cfg Config) (*ShellPlayer, error) {
	if err := ValidateOutput(cfg.Output); err != nil {
		return nil, err
	}
	command := cfg.Command
	if command == "" {
		command = DefaultPlayerCommand
	}
	args, err := shell.Split(command)
	if err != nil {
		return nil, fmt.Errorf("audio: player command: %w", err)
	}
	for _, s := range cfg.Setup {
		if _, err := shell.Split(s); err != nil {
			return nil, fmt.Errorf("audio: setup command: %w", err)
		}
	}

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 3
	}
	mixer := cfg.SetupRunner
	if mixer == nil {
		mixer = runner
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	return &ShellPlayer{
		runner:   runner,
		mixer:    mixer,
		manifest: cfg.Manifest,
		output:   cfg.Output,
		command:  args,
		setup:    cfg.Setup,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "audio-player",
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				// A cancelled playback says nothing about the player.
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Warnf("%s circuit %s -> %s", name, from, to)
			},
		}),
	}, nil
}

// Setup runs the mixer commands in order, stopping at the first failure.
func (p *ShellPlayer) Setup(ctx context.Context) error {
	for _, line := range p.setup {
		if _, err := shell.RunLine(ctx, p.mixer, line); err != nil {
			return fmt.Errorf("audio setup: %w", err)
		}
	}
	return nil
}

// Command returns the argument vector that plays sound.
func (p *ShellPlayer) Command(sound string) ([]string, error) {
	file, err := p.manifest.Path(sound)
	if err != nil {
		return nil, err
	}
	args := make([]string, len(p.command))
	for i, a := range p.command {
		a = strings.ReplaceAll(a, "{output}", p.output)
		args[i] = strings.ReplaceAll(a, "{file}", file)
	}
	return args, nil
}

// Play runs the player for sound and waits for it to exit.
func (p *ShellPlayer) Play(ctx context.Context, sound string) error {
	args, err := p.Command(sound)
	if err != nil {
		return err
	}
	logging.Infof("playing %s", sound)
	_, err = p.breaker.Execute(func() (interface{}, error) {
		return p.runner.Run(ctx, args)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrSuspended, err)
	}
	if err != nil {
		return fmt.Errorf("play %s: %w", sound, err)
	}
	return nil
}
