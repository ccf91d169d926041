// Command phonehack rings a telephone when its handset is hung up and plays
// a sound when it is answered.
package main

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sweeney/phonehack/internal/config"
	"github.com/sweeney/phonehack/internal/gpio"
	"github.com/sweeney/phonehack/internal/logging"
)

var (
	cfgPath   string
	verbosity int
	flags     overrides
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "phonehack",
		Short:         "Ring a telephone when it is hung up, play a sound when it is answered",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath, "Config file (missing file means defaults)")
	cmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase logging (-v debug, -vv trace)")
	flags.register(cmd.PersistentFlags())
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logging.SetVerbosity(verbosity)
	}

	cmd.AddCommand(
		newRunCmd(),
		newStateCmd(),
		newRingCmd(),
		newPlayCmd(),
	)
	return cmd
}

// overrides holds command-line values that take precedence over the config
// file. Only flags the user actually set are applied.
type overrides struct {
	driver      string
	numbering   string
	ringerPin   int
	hookPin     int
	answerPin   int
	onHookLevel gpio.Level
	answerLevel gpio.Level
	poll        time.Duration
	debounce    time.Duration
	sound       string
	output      string
	broker      string
	heartbeat   time.Duration
	httpAddr    string
}

func (o *overrides) register(fs *pflag.FlagSet) {
	d := config.Default()
	o.onHookLevel = d.GPIO.OnHookLevel
	o.answerLevel = d.GPIO.AnswerLevel

	fs.StringVar(&o.driver, "driver", d.GPIO.Driver, "GPIO driver (periph or gpiocdev)")
	fs.StringVar(&o.numbering, "numbering", string(d.GPIO.Numbering), "Pin numbering for periph (board or bcm)")
	fs.IntVar(&o.ringerPin, "ringer-pin", int(d.GPIO.RingerPin), "Ringer output pin")
	fs.IntVar(&o.hookPin, "hook-pin", int(d.GPIO.HookPin), "Cradle switch input pin")
	fs.IntVar(&o.answerPin, "answer-pin", int(d.GPIO.HookPin), "Answer input pin (defaults to the hook pin)")
	fs.Var(&o.onHookLevel, "on-hook-level", "Hook pin level when the handset is in the cradle (HIGH or LOW)")
	fs.Var(&o.answerLevel, "answer-level", "Answer pin level when the handset is lifted (HIGH or LOW)")
	fs.DurationVar(&o.poll, "poll", d.Timing.Poll, "GPIO polling interval")
	fs.DurationVar(&o.debounce, "debounce", d.Timing.Debounce, "Debounce duration")
	fs.StringVar(&o.sound, "sound", d.Audio.Sound, "Sound to play when answered")
	fs.StringVar(&o.output, "output", d.Audio.Output, "Audio output (local, hdmi or both)")
	fs.StringVar(&o.broker, "broker", d.MQTT.Broker, "MQTT broker address (empty to disable)")
	fs.DurationVar(&o.heartbeat, "heartbeat", d.MQTT.Heartbeat, "Heartbeat interval (0 to disable)")
	fs.StringVar(&o.httpAddr, "http", d.HTTP.Addr, "HTTP status address (empty to disable)")
}

func (o *overrides) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("driver") {
		cfg.GPIO.Driver = o.driver
	}
	if fs.Changed("numbering") {
		cfg.GPIO.Numbering = gpio.Numbering(o.numbering)
	}
	if fs.Changed("ringer-pin") {
		cfg.GPIO.RingerPin = gpio.Pin(o.ringerPin)
	}
	if fs.Changed("hook-pin") {
		cfg.GPIO.HookPin = gpio.Pin(o.hookPin)
	}
	if fs.Changed("answer-pin") {
		p := gpio.Pin(o.answerPin)
		cfg.GPIO.AnswerPin = &p
	}
	if fs.Changed("on-hook-level") {
		cfg.GPIO.OnHookLevel = o.onHookLevel
	}
	if fs.Changed("answer-level") {
		cfg.GPIO.AnswerLevel = o.answerLevel
	}
	if fs.Changed("poll") {
		cfg.Timing.Poll = o.poll
	}
	if fs.Changed("debounce") {
		cfg.Timing.Debounce = o.debounce
	}
	if fs.Changed("sound") {
		cfg.Audio.Sound = o.sound
	}
	if fs.Changed("output") {
		cfg.Audio.Output = o.output
	}
	if fs.Changed("broker") {
		cfg.MQTT.Broker = o.broker
	}
	if fs.Changed("heartbeat") {
		cfg.MQTT.Heartbeat = o.heartbeat
	}
	if fs.Changed("http") {
		cfg.HTTP.Addr = o.httpAddr
	}
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	flags.apply(cmd.Flags(), cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
