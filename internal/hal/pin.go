// Package hal defines the abstract platform surface the controller is built
// against: digital pins with edge interrupts, PWM channels, a microsecond
// clock, and a key-value persistence store. Concrete bring-up of any of
// these (tinygo peripheral registers, Linux sysfs GPIO, flash-backed NVS)
// is an external collaborator — this package only carries the contracts and
// a couple of off-target backends used for development and testing.
package hal

// Pin represents a GPIO pin capable of edge-triggered interrupts. It is
// implemented by machine.Pin under TinyGo, by sysfs GPIO on Linux, and by an
// in-memory fake everywhere else (unit tests).
type Pin interface {
	PinInterrupt

	// Get returns the current pin state (high = true, low = false).
	Get() bool

	// Set sets the pin state (high = true, low = false).
	Set(value bool)
}

// PinInterrupt allows configuring an interrupt callback on a pin. The
// callback runs in interrupt context (or a context that behaves like one —
// see the build-tag-specific backends) and must not block.
type PinInterrupt interface {
	// SetInterrupt arms a callback for the given edge(s). Passing a nil
	// callback disarms the interrupt.
	SetInterrupt(change PinChange, callback func(Pin)) error
}
