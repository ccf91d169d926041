package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/sweeney/phonehack/internal/config"
	"github.com/sweeney/phonehack/internal/gpio"
	"github.com/sweeney/phonehack/internal/ring"
)

func newStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the hook and answer pin levels and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			chip, err := gpio.Open(cfg.GPIO.Driver, cfg.GPIO.Chip, cfg.GPIO.Numbering)
			if err != nil {
				return fmt.Errorf("init gpio: %w", err)
			}
			defer chip.Close()
			return printState(cmd.OutOrStdout(), chip, cfg)
		},
	}
}

// printState configures the input pins and prints their levels.
func printState(w io.Writer, chip gpio.Chip, cfg *config.Config) error {
	hook := cfg.GPIO.HookPin
	if err := chip.Configure(hook, gpio.Input, gpio.Low); err != nil {
		return fmt.Errorf("hook pin: %w", err)
	}
	level, err := chip.Read(hook)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "hook=%s (%s)\n", level, hookState(level, cfg.GPIO.OnHookLevel))

	if ap := cfg.AnswerPin(); ap != hook {
		if err := chip.Configure(ap, gpio.Input, gpio.Low); err != nil {
			return fmt.Errorf("answer pin: %w", err)
		}
		level, err = chip.Read(ap)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "answer=%s\n", level)
	}
	return nil
}

func hookState(level, onHook gpio.Level) string {
	if level == onHook {
		return "on hook"
	}
	return "off hook"
}

func newRingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ring",
		Short: "Ring once until the handset is lifted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			chip, err := gpio.Open(cfg.GPIO.Driver, cfg.GPIO.Chip, cfg.GPIO.Numbering)
			if err != nil {
				return fmt.Errorf("init gpio: %w", err)
			}
			defer chip.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return ringOnce(ctx, cmd.OutOrStdout(), chip, clockwork.NewRealClock(), cfg)
		},
	}
}

// ringOnce runs a single ring session and reports how it ended.
func ringOnce(ctx context.Context, w io.Writer, chip gpio.Chip, clock clockwork.Clock, cfg *config.Config) error {
	if err := configurePins(chip, cfg); err != nil {
		return err
	}
	c, err := ring.New(chip, clock, cfg.Ring())
	if err != nil {
		return err
	}
	sess, err := c.Ring(ctx)
	if sess.ID == 0 {
		// No session was started.
		return err
	}
	fmt.Fprintf(w, "session %d: %s after %v, %d bursts\n", sess.ID, sess.State, sess.Duration(), sess.Bursts)
	if sess.State == ring.StateCancelled {
		return nil
	}
	return err
}

func newPlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play [sound]",
		Short: "Play a sound from the manifest and exit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			sound := cfg.Audio.Sound
			if len(args) == 1 {
				sound = args[0]
			}
			player, err := newPlayer(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := player.Setup(ctx); err != nil {
				return err
			}
			return player.Play(ctx, sound)
		},
	}
}
