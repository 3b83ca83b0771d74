package hal

// PWM represents a single PWM channel, driven by a duty cycle in [0, 1].
type PWM interface {
	// Set sets the duty cycle for this channel. duty is clamped to [0, 1]
	// by the caller before reaching this interface.
	Set(duty float32) error
}

// PWMDevice provides PWM channels for a set of pins at a shared frequency.
type PWMDevice interface {
	// Channel returns the PWM channel bound to pin, configuring it on first
	// use.
	Channel(pin Pin) (PWM, error)

	// Configure sets the PWM frequency in Hz for every channel on this
	// device (20 kHz default).
	Configure(frequency uint32) error
}
