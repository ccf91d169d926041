//go:build linux

package gpio

import (
	"errors"
	"testing"
)

// Closed drivers must refuse further use instead of touching released lines.
func TestDriversRejectUseAfterClose(t *testing.T) {
	chips := map[string]Chip{
		"gpiocdev": &CdevChip{lines: make(map[Pin]*cdevLine)},
		"periph":   &PeriphChip{numbering: NumberingBoard, pins: make(map[Pin]*periphPin)},
	}
	for name, c := range chips {
		t.Run(name, func(t *testing.T) {
			if err := c.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if err := c.Close(); err != nil {
				t.Errorf("second Close: %v", err)
			}
			err := c.Configure(11, Output, Low)
			if !errors.Is(err, ErrChipClosed) || !errors.Is(err, ErrConfiguration) {
				t.Errorf("Configure after Close: got %v", err)
			}
			if _, err := c.Read(13); !errors.Is(err, ErrChipClosed) {
				t.Errorf("Read after Close: got %v", err)
			}
			if err := c.Write(11, High); !errors.Is(err, ErrChipClosed) {
				t.Errorf("Write after Close: got %v", err)
			}
			if err := c.Subscribe(13, High); !errors.Is(err, ErrChipClosed) {
				t.Errorf("Subscribe after Close: got %v", err)
			}
		})
	}
}
