//go:build tinygo

package main

import (
	"machine"

	"github.com/rs/zerolog"

	"github.com/fidistudio/hallwheel/internal/hal"
)

// newPlatform wires the on-target machine.Pin backend for both
// encoders and both motor driver inputs. log is unused here (MachinePin
// has nothing to report) but kept in the signature so every build-tag
// backend shares one newPlatform shape.
//
// TODO: replace FakePWMDevice with a real TCC/PWM-peripheral backend
// and NewMemStore with a flash/NVS-backed hal.Store once those land;
// neither has a concrete on-target implementation in this tree yet.
func newPlatform(log zerolog.Logger) (*platform, error) {
	leftEncoder := machine.D2
	rightEncoder := machine.D3
	leftMotorA := machine.D4
	leftMotorB := machine.D5
	rightMotorA := machine.D6
	rightMotorB := machine.D7

	for _, p := range []machine.Pin{leftEncoder, rightEncoder} {
		p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	}
	for _, p := range []machine.Pin{leftMotorA, leftMotorB, rightMotorA, rightMotorB} {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	}

	return &platform{
		leftEncoder:  hal.NewPin(leftEncoder),
		rightEncoder: hal.NewPin(rightEncoder),
		leftMotorA:   hal.NewPin(leftMotorA),
		leftMotorB:   hal.NewPin(leftMotorB),
		rightMotorA:  hal.NewPin(rightMotorA),
		rightMotorB:  hal.NewPin(rightMotorB),
		pwm:          hal.NewFakePWMDevice(),
		store:        hal.NewMemStore(),
		clock:        hal.NewRealClock(),
	}, nil
}
