// Package config loads the daemon's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/phonehack/internal/audio"
	"github.com/sweeney/phonehack/internal/gpio"
	"github.com/sweeney/phonehack/internal/logic"
	"github.com/sweeney/phonehack/internal/phone"
	"github.com/sweeney/phonehack/internal/ring"
	"github.com/sweeney/phonehack/internal/shell"
)

// DefaultPath is where the daemon looks for its config file.
const DefaultPath = "/etc/phonehack/config.yaml"

type Config struct {
	GPIO   GPIOConfig   `yaml:"gpio"`
	Timing TimingConfig `yaml:"timing"`
	Audio  AudioConfig  `yaml:"audio"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	HTTP   HTTPConfig   `yaml:"http"`
}

type GPIOConfig struct {
	Driver    string         `yaml:"driver"`
	Chip      string         `yaml:"chip"`
	Numbering gpio.Numbering `yaml:"numbering"`
	RingerPin gpio.Pin       `yaml:"ringer_pin"`
	HookPin   gpio.Pin       `yaml:"hook_pin"`
	// AnswerPin defaults to HookPin: lifting the handset opens the same
	// switch that hanging it up closed.
	AnswerPin   *gpio.Pin  `yaml:"answer_pin,omitempty"`
	OnHookLevel gpio.Level `yaml:"on_hook_level"`
	AnswerLevel gpio.Level `yaml:"answer_level"`
}

type TimingConfig struct {
	Poll     time.Duration `yaml:"poll"`
	Debounce time.Duration `yaml:"debounce"`
	Toggle   time.Duration `yaml:"toggle"`
	Burst    time.Duration `yaml:"burst"`
	Pause    time.Duration `yaml:"pause"`
}

type AudioConfig struct {
	SoundsDir    string            `yaml:"sounds_dir"`
	Sounds       map[string]string `yaml:"sounds"`
	Sound        string            `yaml:"sound"`
	Output       string            `yaml:"output"`
	Player       string            `yaml:"player"`
	Setup        []string          `yaml:"setup"`
	ShellTimeout time.Duration     `yaml:"shell_timeout"`
	PlayTimeout  time.Duration     `yaml:"play_timeout"`
}

type MQTTConfig struct {
	Broker    string        `yaml:"broker"` // empty disables MQTT
	ClientID  string        `yaml:"client_id"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables the status server
}

// Default returns the configuration used when no file is present. Pin
// numbers are physical header positions.
func Default() Config {
	p := logic.DefaultPattern()
	return Config{
		GPIO: GPIOConfig{
			Driver:      gpio.DriverPeriph,
			Chip:        "gpiochip0",
			Numbering:   gpio.NumberingBoard,
			RingerPin:   gpio.DefaultPinRinger,
			HookPin:     gpio.DefaultPinHook,
			OnHookLevel: gpio.Low,
			AnswerLevel: gpio.High,
		},
		Timing: TimingConfig{
			Poll:     200 * time.Millisecond,
			Debounce: 800 * time.Millisecond,
			Toggle:   p.Toggle,
			Burst:    p.Burst,
			Pause:    p.Pause,
		},
		Audio: AudioConfig{
			SoundsDir:    "/usr/share/phonehack/sounds",
			Sounds:       audio.DefaultManifest(),
			Sound:        audio.SoundApplause,
			Output:       audio.OutputLocal,
			Player:       audio.DefaultPlayerCommand,
			Setup:        append([]string(nil), audio.DefaultSetupCommands...),
			ShellTimeout: shell.DefaultTimeout,
			PlayTimeout:  2 * time.Minute,
		},
		MQTT: MQTTConfig{
			ClientID:  "phonehack",
			Heartbeat: 15 * time.Minute,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Keys that
// are absent keep their default values.
func Parse(raw []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.GPIO.Driver == "" {
		c.GPIO.Driver = d.GPIO.Driver
	}
	if c.GPIO.Numbering == "" {
		c.GPIO.Numbering = d.GPIO.Numbering
	}
	if c.Audio.Player == "" {
		c.Audio.Player = d.Audio.Player
	}
	if c.Audio.Output == "" {
		c.Audio.Output = d.Audio.Output
	}
	if c.Audio.ShellTimeout == 0 {
		c.Audio.ShellTimeout = d.Audio.ShellTimeout
	}
	if c.Audio.PlayTimeout == 0 {
		c.Audio.PlayTimeout = d.Audio.PlayTimeout
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = d.MQTT.ClientID
	}
}

// Validate checks the configuration as a whole. It is called again after
// command-line overrides are applied.
func (c *Config) Validate() error {
	switch c.GPIO.Driver {
	case gpio.DriverPeriph, gpio.DriverCdev:
	default:
		return fmt.Errorf("gpio.driver: unknown driver %q", c.GPIO.Driver)
	}
	switch c.GPIO.Numbering {
	case gpio.NumberingBoard, gpio.NumberingBCM:
	default:
		return fmt.Errorf("gpio.numbering: must be board or bcm, got %q", c.GPIO.Numbering)
	}
	if c.GPIO.RingerPin < 0 || c.GPIO.HookPin < 0 || c.AnswerPin() < 0 {
		return errors.New("gpio: pin numbers must not be negative")
	}
	if c.GPIO.RingerPin == c.GPIO.HookPin || c.GPIO.RingerPin == c.AnswerPin() {
		return fmt.Errorf("gpio.ringer_pin: pin %d is also an input", c.GPIO.RingerPin)
	}
	if c.AnswerPin() == c.GPIO.HookPin && c.GPIO.AnswerLevel == c.GPIO.OnHookLevel {
		return fmt.Errorf("gpio: answer_level and on_hook_level are both %s on pin %d", c.GPIO.AnswerLevel, c.GPIO.HookPin)
	}

	if err := c.Ring().Validate(); err != nil {
		return fmt.Errorf("timing: %w", err)
	}

	if err := audio.ValidateOutput(c.Audio.Output); err != nil {
		return fmt.Errorf("audio.output: %w", err)
	}
	if _, err := c.Manifest().Path(c.Audio.Sound); err != nil {
		return fmt.Errorf("audio.sound: %w", err)
	}
	if _, err := shell.Split(c.Audio.Player); err != nil {
		return fmt.Errorf("audio.player: %w", err)
	}
	if c.Audio.ShellTimeout < 0 || c.Audio.PlayTimeout < 0 {
		return errors.New("audio: timeouts must not be negative")
	}
	if c.MQTT.Heartbeat < 0 {
		return errors.New("mqtt.heartbeat: must not be negative")
	}
	return nil
}

// AnswerPin returns the pin watched for the handset being lifted.
func (c *Config) AnswerPin() gpio.Pin {
	if c.GPIO.AnswerPin != nil {
		return *c.GPIO.AnswerPin
	}
	return c.GPIO.HookPin
}

// Pattern returns the ring pattern.
func (c *Config) Pattern() logic.Pattern {
	return logic.Pattern{
		Toggle: c.Timing.Toggle,
		Burst:  c.Timing.Burst,
		Pause:  c.Timing.Pause,
	}
}

// Ring returns the ring controller configuration.
func (c *Config) Ring() ring.Config {
	return ring.Config{
		RingerPin:   c.GPIO.RingerPin,
		AnswerPin:   c.AnswerPin(),
		AnswerLevel: c.GPIO.AnswerLevel,
		Poll:        c.Timing.Poll,
		Debounce:    c.Timing.Debounce,
		Pattern:     c.Pattern(),
	}
}

// Phone returns the top-level loop configuration.
func (c *Config) Phone() phone.Config {
	return phone.Config{
		HookPin:     c.GPIO.HookPin,
		OnHookLevel: c.GPIO.OnHookLevel,
		Poll:        c.Timing.Poll,
		Debounce:    c.Timing.Debounce,
		Sound:       c.Audio.Sound,
	}
}

// Manifest returns the sound manifest with paths resolved against SoundsDir.
func (c *Config) Manifest() audio.Manifest {
	return audio.Manifest(c.Audio.Sounds).Resolve(c.Audio.SoundsDir)
}

// Player returns the audio player configuration.
func (c *Config) Player() audio.Config {
	return audio.Config{
		Manifest: c.Manifest(),
		Output:   c.Audio.Output,
		Command:  c.Audio.Player,
		Setup:    c.Audio.Setup,
	}
}
