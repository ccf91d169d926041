package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/phonehack/internal/audio"
	"github.com/sweeney/phonehack/internal/config"
	"github.com/sweeney/phonehack/internal/gpio"
	"github.com/sweeney/phonehack/internal/logging"
	"github.com/sweeney/phonehack/internal/metrics"
	"github.com/sweeney/phonehack/internal/mqtt"
	"github.com/sweeney/phonehack/internal/phone"
	"github.com/sweeney/phonehack/internal/ring"
	"github.com/sweeney/phonehack/internal/shell"
	"github.com/sweeney/phonehack/internal/status"
	"github.com/sweeney/phonehack/internal/web"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the phone: ring when hung up, play a sound when answered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runDaemon(cfg)
		},
	}
}

func runDaemon(cfg *config.Config) error {
	chip, err := gpio.Open(cfg.GPIO.Driver, cfg.GPIO.Chip, cfg.GPIO.Numbering)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer chip.Close()

	player, err := newPlayer(cfg)
	if err != nil {
		return err
	}
	if err := player.Setup(context.Background()); err != nil {
		logging.Warnf("mixer setup failed: %v", err)
	}

	clock := clockwork.NewRealClock()
	tracker := status.NewTracker(clock, statusConfig(cfg))

	var publisher mqtt.Publisher = mqtt.Discard{}
	var connStatus mqtt.ConnectionStatus = mqtt.Discard{}
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:             cfg.MQTT.Broker,
			ClientID:           cfg.MQTT.ClientID,
			OnConnectionChange: tracker.SetMQTTConnected,
		})
		if err != nil {
			// Keep ringing without MQTT; the operator sees it on the status page.
			logging.Errorf("mqtt disabled: %v", err)
		} else {
			publisher, connStatus = p, p
		}
	}
	defer publisher.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	d := &daemon{
		cfg:        cfg,
		clock:      clock,
		chip:       chip,
		player:     player,
		publisher:  publisher,
		connStatus: connStatus,
		tracker:    tracker,
		metrics:    metrics.New(),
	}
	return d.run(context.Background(), sigCh)
}

func newPlayer(cfg *config.Config) (*audio.ShellPlayer, error) {
	pc := cfg.Player()
	pc.SetupRunner = shell.ExecRunner{Timeout: cfg.Audio.ShellTimeout}
	return audio.NewShellPlayer(shell.ExecRunner{Timeout: cfg.Audio.PlayTimeout}, pc)
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		RingerPin:   int(cfg.GPIO.RingerPin),
		HookPin:     int(cfg.GPIO.HookPin),
		AnswerPin:   int(cfg.AnswerPin()),
		OnHookLevel: cfg.GPIO.OnHookLevel.String(),
		AnswerLevel: cfg.GPIO.AnswerLevel.String(),
		PollMs:      cfg.Timing.Poll.Milliseconds(),
		DebounceMs:  cfg.Timing.Debounce.Milliseconds(),
		HeartbeatMs: cfg.MQTT.Heartbeat.Milliseconds(),
		Sound:       cfg.Audio.Sound,
		Output:      cfg.Audio.Output,
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
	}
}

// configurePins claims the ringer as an output driven LOW and the hook and
// answer switches as inputs.
func configurePins(chip gpio.Chip, cfg *config.Config) error {
	if err := chip.Configure(cfg.GPIO.RingerPin, gpio.Output, gpio.Low); err != nil {
		return fmt.Errorf("ringer pin: %w", err)
	}
	if err := chip.Configure(cfg.GPIO.HookPin, gpio.Input, gpio.Low); err != nil {
		return fmt.Errorf("hook pin: %w", err)
	}
	if ap := cfg.AnswerPin(); ap != cfg.GPIO.HookPin {
		if err := chip.Configure(ap, gpio.Input, gpio.Low); err != nil {
			return fmt.Errorf("answer pin: %w", err)
		}
	}
	return nil
}

// daemon wires the phone loop to its observers and runs it next to the
// status server and the heartbeat.
type daemon struct {
	cfg        *config.Config
	clock      clockwork.Clock
	chip       gpio.Chip
	player     audio.Player
	publisher  mqtt.Publisher
	connStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	metrics    *metrics.Metrics
}

// run blocks until a signal arrives on sig, ctx is cancelled or the phone
// fails. A signal or cancellation is a clean exit.
func (d *daemon) run(ctx context.Context, sig <-chan os.Signal) error {
	if err := configurePins(d.chip, d.cfg); err != nil {
		return err
	}

	notifier := mqtt.NewNotifier(d.publisher)
	defer notifier.Close()
	ringer, err := ring.New(d.chip, d.clock, d.cfg.Ring(),
		ring.WithObserver(d.tracker),
		ring.WithObserver(d.metrics),
		ring.WithObserver(notifier),
	)
	if err != nil {
		return err
	}
	ph, err := phone.New(d.chip, d.clock, d.cfg.Phone(), ringer, d.player,
		phone.WithObserver(d.tracker),
		phone.WithObserver(d.metrics),
		phone.WithObserver(notifier),
	)
	if err != nil {
		return err
	}
	defer ph.Shutdown()

	d.publishSystem("STARTUP", "")
	logging.Infof("started: ringer=%d hook=%d answer=%d poll=%v debounce=%v broker=%q http=%q",
		d.cfg.GPIO.RingerPin, d.cfg.GPIO.HookPin, d.cfg.AnswerPin(),
		d.cfg.Timing.Poll, d.cfg.Timing.Debounce, d.cfg.MQTT.Broker, d.cfg.HTTP.Addr)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// The first goroutine to stop the daemon names the reason.
	reason := "UNKNOWN"
	var reasonOnce sync.Once
	setReason := func(r string) { reasonOnce.Do(func() { reason = r }) }

	g.Go(func() error {
		select {
		case s := <-sig:
			setReason(signalName(s))
			logging.Infof("received %v, shutting down", s)
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		err := ph.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			setReason("ERROR")
		}
		return err
	})

	if d.cfg.MQTT.Heartbeat > 0 {
		g.Go(func() error {
			d.heartbeat(gctx, d.cfg.MQTT.Heartbeat)
			return nil
		})
	}

	if d.cfg.HTTP.Addr != "" {
		srv := web.New(d.cfg.HTTP.Addr, d.tracker, d.metrics.Handler())
		g.Go(func() error {
			logging.Infof("http status server listening on %s", d.cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				// The phone keeps working without its status page.
				logging.Errorf("http server error: %v", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// The phone loop ending for any reason stops everything else.
	g.Go(func() error {
		<-gctx.Done()
		ph.Shutdown()
		return nil
	})

	err = g.Wait()
	// The phone has stopped: flush its events so SHUTDOWN comes last.
	notifier.Close()
	d.publishSystem("SHUTDOWN", reason)
	if err != nil {
		return fmt.Errorf("phone stopped: %w", err)
	}
	return nil
}

// heartbeat publishes a status snapshot every interval until ctx is done.
func (d *daemon) heartbeat(ctx context.Context, interval time.Duration) {
	for {
		t := d.clock.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.Chan():
		}
		snap := d.publishSystem("HEARTBEAT", "")
		logging.Debugf("heartbeat: uptime=%v rings=%d answered=%d",
			snap.Uptime().Truncate(time.Second), snap.Counts.Rings, snap.Counts.Answered)
	}
}

func (d *daemon) publishSystem(event, reason string) status.Snapshot {
	d.tracker.SetMQTTConnected(d.connStatus.IsConnected())
	snap := d.tracker.Snapshot()
	err := d.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		logging.Warnf("failed to publish %s event: %v", event, err)
	}
	return snap
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
