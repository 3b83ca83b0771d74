//go:build !tinygo && linux

package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fidistudio/hallwheel/internal/hal"
)

// Sysfs GPIO line numbers; override via future config if these need to
// move to a different header layout.
const (
	leftEncoderGPIO  = 17
	rightEncoderGPIO = 27
	leftMotorAGPIO   = 22
	leftMotorBGPIO   = 23
	rightMotorAGPIO  = 24
	rightMotorBGPIO  = 25
)

// newPlatform wires real sysfs GPIO pins for both encoders and both
// motor driver inputs. No real PWM peripheral backend exists yet (see
// DESIGN.md) so PWM output is still a FakePWMDevice; persistence goes
// to a JSON file under /var/lib so calibration survives a restart.
func newPlatform(log zerolog.Logger) (*platform, error) {
	leftEncoder, err := hal.NewPin(leftEncoderGPIO, log)
	if err != nil {
		return nil, fmt.Errorf("platform: left encoder pin: %w", err)
	}
	rightEncoder, err := hal.NewPin(rightEncoderGPIO, log)
	if err != nil {
		return nil, fmt.Errorf("platform: right encoder pin: %w", err)
	}
	leftMotorA, err := hal.NewPin(leftMotorAGPIO, log)
	if err != nil {
		return nil, fmt.Errorf("platform: left motor A pin: %w", err)
	}
	leftMotorB, err := hal.NewPin(leftMotorBGPIO, log)
	if err != nil {
		return nil, fmt.Errorf("platform: left motor B pin: %w", err)
	}
	rightMotorA, err := hal.NewPin(rightMotorAGPIO, log)
	if err != nil {
		return nil, fmt.Errorf("platform: right motor A pin: %w", err)
	}
	rightMotorB, err := hal.NewPin(rightMotorBGPIO, log)
	if err != nil {
		return nil, fmt.Errorf("platform: right motor B pin: %w", err)
	}

	store, err := hal.OpenFileStore("/var/lib/hallwheelfw/store.json")
	if err != nil {
		return nil, fmt.Errorf("platform: open store: %w", err)
	}

	return &platform{
		leftEncoder:  leftEncoder,
		rightEncoder: rightEncoder,
		leftMotorA:   leftMotorA,
		leftMotorB:   leftMotorB,
		rightMotorA:  rightMotorA,
		rightMotorB:  rightMotorB,
		pwm:          hal.NewFakePWMDevice(),
		store:        store,
		clock:        hal.NewRealClock(),
	}, nil
}
