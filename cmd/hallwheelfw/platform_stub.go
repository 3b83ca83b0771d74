//go:build !tinygo && !linux

package main

import (
	"github.com/rs/zerolog"

	"github.com/fidistudio/hallwheel/internal/hal"
)

// newPlatform wires an all-in-memory platform: fake pins, a fake PWM
// device, and an in-memory store. It exists so the control loop can be
// exercised and demoed on any development machine without real
// hardware behind it. log is unused here (FakePin has nothing to
// report) but kept in the signature so every build-tag backend shares
// one newPlatform shape.
func newPlatform(log zerolog.Logger) (*platform, error) {
	return &platform{
		leftEncoder:  hal.NewFakePin(0),
		rightEncoder: hal.NewFakePin(1),
		leftMotorA:   hal.NewFakePin(2),
		leftMotorB:   hal.NewFakePin(3),
		rightMotorA:  hal.NewFakePin(4),
		rightMotorB:  hal.NewFakePin(5),
		pwm:          hal.NewFakePWMDevice(),
		store:        hal.NewMemStore(),
		clock:        hal.NewRealClock(),
	}, nil
}
