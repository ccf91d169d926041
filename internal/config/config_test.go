package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/phonehack/internal/audio"
	"github.com/sweeney/phonehack/internal/gpio"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.GPIO.RingerPin != 11 || cfg.GPIO.HookPin != 13 || cfg.AnswerPin() != 13 {
		t.Errorf("pins: ringer %d hook %d answer %d", cfg.GPIO.RingerPin, cfg.GPIO.HookPin, cfg.AnswerPin())
	}
	if cfg.GPIO.OnHookLevel != gpio.Low || cfg.GPIO.AnswerLevel != gpio.High {
		t.Errorf("levels: on-hook %s answer %s", cfg.GPIO.OnHookLevel, cfg.GPIO.AnswerLevel)
	}
	p := cfg.Pattern()
	if p.Toggle != 50*time.Millisecond || p.Burst != 1600*time.Millisecond || p.Pause != 1600*time.Millisecond {
		t.Errorf("pattern: %+v", p)
	}
	if cfg.Audio.ShellTimeout != 5*time.Second {
		t.Errorf("shell timeout: got %v, want 5s", cfg.Audio.ShellTimeout)
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timing.Debounce != 800*time.Millisecond {
		t.Errorf("Debounce: got %v", cfg.Timing.Debounce)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
gpio:
  driver: gpiocdev
  numbering: bcm
  ringer_pin: 17
  hook_pin: 27
  answer_pin: 22
  on_hook_level: HIGH
  answer_level: low
timing:
  poll: 100ms
  debounce: 300ms
  pause: 2s
audio:
  sounds_dir: /srv/sounds
  sounds:
    fanfare: fanfare.wav
  sound: fanfare
  output: hdmi
mqtt:
  broker: tcp://192.168.1.200:1883
http:
  addr: ""
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.GPIO.Driver != gpio.DriverCdev || cfg.GPIO.Numbering != gpio.NumberingBCM {
		t.Errorf("driver/numbering: %s/%s", cfg.GPIO.Driver, cfg.GPIO.Numbering)
	}
	if cfg.GPIO.RingerPin != 17 || cfg.GPIO.HookPin != 27 || cfg.AnswerPin() != 22 {
		t.Errorf("pins: %+v", cfg.GPIO)
	}
	if cfg.GPIO.OnHookLevel != gpio.High || cfg.GPIO.AnswerLevel != gpio.Low {
		t.Errorf("levels: on-hook %s answer %s", cfg.GPIO.OnHookLevel, cfg.GPIO.AnswerLevel)
	}
	if cfg.Timing.Poll != 100*time.Millisecond || cfg.Timing.Debounce != 300*time.Millisecond {
		t.Errorf("timing: %+v", cfg.Timing)
	}
	if cfg.Timing.Pause != 2*time.Second || cfg.Timing.Toggle != 50*time.Millisecond {
		t.Errorf("absent keys should keep defaults: %+v", cfg.Timing)
	}
	m := cfg.Manifest()
	if m["fanfare"] != "/srv/sounds/fanfare.wav" {
		t.Errorf("fanfare path: %q", m["fanfare"])
	}
	if m[audio.SoundApplause] != "/srv/sounds/applause.wav" {
		t.Errorf("bundled sound should remain: %q", m[audio.SoundApplause])
	}
	if cfg.MQTT.Broker != "tcp://192.168.1.200:1883" || cfg.MQTT.ClientID != "phonehack" {
		t.Errorf("mqtt: %+v", cfg.MQTT)
	}
	if cfg.HTTP.Addr != "" {
		t.Errorf("http addr should be disabled, got %q", cfg.HTTP.Addr)
	}

	rc := cfg.Ring()
	if rc.AnswerPin != 22 || rc.AnswerLevel != gpio.Low || rc.Pattern.Pause != 2*time.Second {
		t.Errorf("ring config: %+v", rc)
	}
	pc := cfg.Phone()
	if pc.HookPin != 27 || pc.OnHookLevel != gpio.High || pc.Sound != "fanfare" {
		t.Errorf("phone config: %+v", pc)
	}
}

func TestZeroDebounceIsKept(t *testing.T) {
	cfg, err := Parse([]byte("timing:\n  debounce: 0s\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Timing.Debounce != 0 {
		t.Errorf("Debounce: got %v, want 0", cfg.Timing.Debounce)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad yaml", "gpio: [", "parse config"},
		{"bad level", "gpio:\n  answer_level: MAYBE\n", "parse config"},
		{"bad driver", "gpio:\n  driver: sysfs\n", "gpio.driver"},
		{"bad numbering", "gpio:\n  numbering: wiringpi\n", "gpio.numbering"},
		{"ringer is hook", "gpio:\n  ringer_pin: 13\n", "gpio.ringer_pin"},
		{"ringer is answer", "gpio:\n  answer_pin: 11\n", "gpio.ringer_pin"},
		{"same level on shared pin", "gpio:\n  on_hook_level: HIGH\n", "answer_level"},
		{"negative pin", "gpio:\n  hook_pin: -1\n", "negative"},
		{"zero poll", "timing:\n  poll: 0s\n", "timing"},
		{"zero toggle", "timing:\n  toggle: 0s\n", "timing"},
		{"bad output", "audio:\n  output: speaker\n", "audio.output"},
		{"unknown sound", "audio:\n  sound: fanfare\n", "audio.sound"},
		{"bad player", "audio:\n  player: 'omxplayer \"{file}'\n", "audio.player"},
		{"negative heartbeat", "mqtt:\n  heartbeat: -1s\n", "mqtt.heartbeat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadReportsPath(t *testing.T) {
	path := writeConfig(t, "gpio:\n  driver: sysfs\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), path) {
		t.Fatalf("error should name the file: %v", err)
	}
}

func TestPlayerConfig(t *testing.T) {
	cfg := Default()
	cfg.Audio.SoundsDir = "/srv/sounds"
	pc := cfg.Player()
	if pc.Output != audio.OutputLocal || pc.Command != audio.DefaultPlayerCommand {
		t.Errorf("player config: %+v", pc)
	}
	if len(pc.Setup) != 2 {
		t.Errorf("setup commands: %v", pc.Setup)
	}
	if pc.Manifest[audio.SoundApplause] != "/srv/sounds/applause.wav" {
		t.Errorf("manifest: %v", pc.Manifest)
	}
}
