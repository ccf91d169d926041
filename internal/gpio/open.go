package gpio

import "fmt"

// Driver names accepted by Open.
const (
	DriverCdev   = "gpiocdev"
	DriverPeriph = "periph"
)

// Open returns the chip for the named driver. chipName is used by gpiocdev,
// numbering by periph.
func Open(driver, chipName string, numbering Numbering) (Chip, error) {
	switch driver {
	case DriverCdev:
		c, err := NewCdevChip(chipName)
		if err != nil {
			return nil, err
		}
		return c, nil
	case DriverPeriph:
		c, err := NewPeriphChip(numbering)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: unknown gpio driver %q", ErrConfiguration, driver)
	}
}
