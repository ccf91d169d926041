package gpio

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		err  bool
	}{
		{"HIGH", High, false},
		{"high", High, false},
		{" 1 ", High, false},
		{"on", High, false},
		{"LOW", Low, false},
		{"0", Low, false},
		{"off", Low, false},
		{"", Low, true},
		{"maybe", Low, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("ParseLevel(%q): err = %v, want err %v", tt.in, err, tt.err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestLevelSetAndString(t *testing.T) {
	var l Level
	if err := l.Set("HIGH"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if l != High || l.String() != "HIGH" {
		t.Errorf("got %s, want HIGH", l)
	}
	if l.Type() != "level" {
		t.Errorf("Type: got %q", l.Type())
	}
	b, _ := Low.MarshalText()
	if string(b) != "LOW" {
		t.Errorf("MarshalText: got %q", b)
	}
}

func TestFakeChipTimeline(t *testing.T) {
	fc := clockwork.NewFakeClockAt(t0)
	c := NewFakeChip(fc)
	if err := c.Configure(13, Input, Low); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	c.SetLevelAt(13, t0.Add(time.Second), High)
	c.SetLevelAt(13, t0.Add(500*time.Millisecond), High)
	c.SetLevelAt(13, t0.Add(700*time.Millisecond), Low)

	steps := []struct {
		advance time.Duration
		want    Level
	}{
		{0, Low},
		{500 * time.Millisecond, High},
		{200 * time.Millisecond, Low},
		{300 * time.Millisecond, High},
	}
	for i, s := range steps {
		fc.Advance(s.advance)
		got, err := c.Read(13)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got != s.want {
			t.Errorf("step %d: got %s, want %s", i, got, s.want)
		}
	}
	if c.Reads() != len(steps) {
		t.Errorf("Reads: got %d, want %d", c.Reads(), len(steps))
	}
}

func TestFakeChipScriptBeforeConfigure(t *testing.T) {
	fc := clockwork.NewFakeClockAt(t0)
	c := NewFakeChip(fc)
	c.SetLevel(13, High)
	if err := c.Configure(13, Input, Low); err != nil {
		t.Fatalf("Configure after script: %v", err)
	}
	if l, _ := c.Read(13); l != High {
		t.Errorf("got %s, want HIGH", l)
	}
	if err := c.Configure(13, Input, Low); !errors.Is(err, ErrConfiguration) {
		t.Errorf("second Configure: got %v, want ErrConfiguration", err)
	}
}

func TestFakeChipWrites(t *testing.T) {
	fc := clockwork.NewFakeClockAt(t0)
	c := NewFakeChip(fc)
	if err := c.Configure(11, Output, Low); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := c.Write(11, High); err != nil {
		t.Fatalf("Write: %v", err)
	}
	fc.Advance(50 * time.Millisecond)
	if err := c.Write(11, Low); err != nil {
		t.Fatalf("Write: %v", err)
	}

	w := c.Writes(11)
	if len(w) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(w))
	}
	if w[0].Level != High || !w[0].At.Equal(t0) {
		t.Errorf("write 0: got %+v", w[0])
	}
	if w[1].Level != Low || !w[1].At.Equal(t0.Add(50*time.Millisecond)) {
		t.Errorf("write 1: got %+v", w[1])
	}
	if c.Output(11) != Low {
		t.Errorf("Output: got %s, want LOW", c.Output(11))
	}
}

func TestFakeChipReadTimes(t *testing.T) {
	fc := clockwork.NewFakeClockAt(t0)
	c := NewFakeChip(fc)
	if err := c.Configure(13, Input, Low); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	c.Read(13)
	fc.Advance(200 * time.Millisecond)
	c.Read(13)
	c.FailReads(errors.New("bus"))
	c.Read(13)

	got := c.ReadTimes(13)
	if len(got) != 2 || !got[0].Equal(t0) || !got[1].Equal(t0.Add(200*time.Millisecond)) {
		t.Errorf("ReadTimes: got %v", got)
	}
	if c.Reads() != 3 {
		t.Errorf("Reads: got %d, want 3", c.Reads())
	}
	if len(c.ReadTimes(11)) != 0 {
		t.Error("unread pin should have no read times")
	}
}

func TestFakeChipDirectionErrors(t *testing.T) {
	c := NewFakeChip(clockwork.NewFakeClockAt(t0))
	c.Configure(11, Output, Low)
	c.Configure(13, Input, Low)

	if _, err := c.Read(11); !errors.Is(err, ErrDirection) {
		t.Errorf("Read output: got %v, want ErrDirection", err)
	}
	if err := c.Write(13, High); !errors.Is(err, ErrDirection) {
		t.Errorf("Write input: got %v, want ErrDirection", err)
	}
	if err := c.Write(7, High); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Write unknown: got %v, want ErrNotConfigured", err)
	}
	if err := c.Subscribe(11, High); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Subscribe output: got %v, want ErrConfiguration", err)
	}
	if err := c.Configure(-1, Input, Low); !errors.Is(err, ErrInvalidPin) {
		t.Errorf("Configure -1: got %v, want ErrInvalidPin", err)
	}
}

func TestFakeChipInjectedErrors(t *testing.T) {
	c := NewFakeChip(clockwork.NewFakeClockAt(t0))
	c.Configure(11, Output, Low)
	c.Configure(13, Input, Low)

	c.FailReads(errors.New("bus fault"))
	_, err := c.Read(13)
	if !errors.Is(err, ErrHardware) {
		t.Errorf("Read: got %v, want ErrHardware", err)
	}
	var ioErr *IOError
	if !errors.As(err, &ioErr) || ioErr.Op != "read" || ioErr.Pin != 13 {
		t.Errorf("Read: got %#v", err)
	}
	c.FailReads(nil)
	if _, err := c.Read(13); err != nil {
		t.Errorf("Read after clear: %v", err)
	}

	c.FailWrites(2, 1, errors.New("short"))
	for i := 0; i < 2; i++ {
		if err := c.Write(11, High); err != nil {
			t.Fatalf("write %d: unexpected error %v", i, err)
		}
	}
	if err := c.Write(11, Low); !errors.Is(err, ErrHardware) {
		t.Errorf("third write: got %v, want ErrHardware", err)
	}
	if len(c.Writes(11)) != 2 {
		t.Errorf("failed write must not be recorded, got %d writes", len(c.Writes(11)))
	}
	if err := c.Write(11, Low); err != nil {
		t.Errorf("write after transient failure: %v", err)
	}

	c.FailWrites(0, -1, errors.New("dead"))
	for i := 0; i < 3; i++ {
		if err := c.Write(11, High); !errors.Is(err, ErrHardware) {
			t.Errorf("write %d: got %v, want ErrHardware", i, err)
		}
	}
}

func TestFakeChipSubscriptions(t *testing.T) {
	c := NewFakeChip(clockwork.NewFakeClockAt(t0))
	c.Configure(13, Input, Low)

	if err := c.Subscribe(13, High); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := c.Subscribe(13, Low); err != nil {
		t.Fatalf("Subscribe other level: %v", err)
	}
	err := c.Subscribe(13, High)
	if !errors.Is(err, ErrAlreadySubscribed) || !errors.Is(err, ErrConfiguration) {
		t.Errorf("duplicate Subscribe: got %v", err)
	}
	if c.Subscriptions() != 2 {
		t.Errorf("Subscriptions: got %d, want 2", c.Subscriptions())
	}

	c.Unsubscribe(13, High)
	c.Unsubscribe(13, High)
	if c.Unsubscribes() != 1 {
		t.Errorf("Unsubscribes: got %d, want 1", c.Unsubscribes())
	}
	if err := c.Subscribe(13, High); err != nil {
		t.Errorf("re-Subscribe after release: %v", err)
	}
}

func TestFakeChipClose(t *testing.T) {
	c := NewFakeChip(clockwork.NewFakeClockAt(t0))
	c.Configure(11, Output, Low)
	c.Configure(13, Input, Low)
	c.Write(11, High)
	c.Subscribe(13, High)

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !c.Closed() {
		t.Error("should be closed")
	}
	if c.Output(11) != Low {
		t.Error("Close must drive outputs low")
	}
	if c.Subscriptions() != 0 {
		t.Errorf("Close must release subscriptions, %d left", c.Subscriptions())
	}
	if err := c.Configure(15, Input, Low); !errors.Is(err, ErrChipClosed) {
		t.Errorf("Configure after Close: got %v", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("wiringpi", "gpiochip0", NumberingBCM)
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("got %v, want ErrConfiguration", err)
	}
}
