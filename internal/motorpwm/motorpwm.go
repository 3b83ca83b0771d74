// Package motorpwm drives a two-channel PWM actuator from a signed
// command in [-1, +1]: slew-rate limiting, deadband/minimum-output
// remapping, duty conversion, and a choice of sign-magnitude or
// locked-antiphase drive mode with a coast/brake neutral policy.
package motorpwm

import (
	"fmt"

	"github.com/chewxy/math32"
)

// DriveMode selects how a signed command maps to the two PWM channels.
type DriveMode int

const (
	// SignMagnitude drives exactly one channel at a time: the other sits
	// at 0. The neutral policy applies only when the output magnitude is 0.
	SignMagnitude DriveMode = iota
	// LockedAntiPhase drives both channels continuously, centered at
	// half duty, diverging in opposite directions with the sign of u.
	LockedAntiPhase
)

// NeutralMode selects the channel state at u=0.
type NeutralMode int

const (
	Coast NeutralMode = iota
	Brake
)

// ParseDriveMode parses a config string into a DriveMode. "" defaults to
// SignMagnitude.
func ParseDriveMode(s string) (DriveMode, error) {
	switch s {
	case "", "signMagnitude":
		return SignMagnitude, nil
	case "lockedAntiPhase":
		return LockedAntiPhase, nil
	default:
		return 0, fmt.Errorf("motorpwm: unknown drive mode %q", s)
	}
}

// ParseNeutralMode parses a config string into a NeutralMode. ""
// defaults to Coast.
func ParseNeutralMode(s string) (NeutralMode, error) {
	switch s {
	case "", "coast":
		return Coast, nil
	case "brake":
		return Brake, nil
	default:
		return 0, fmt.Errorf("motorpwm: unknown neutral mode %q", s)
	}
}

// Channel is a single PWM output accepting a duty in [0, 1].
type Channel interface {
	Set(duty float32) error
}

// Config configures a MotorPwm instance.
type Config struct {
	ResolutionBits uint8
	Deadband       float32 // in [0, 1)
	MinOutput      float32 // in [0, 1)
	SlewRatePerSec float32 // 0 disables slew limiting
	Drive          DriveMode
	Neutral        NeutralMode
	Invert         bool
}

// MotorPwm converts a signed command into two PWM channel duties.
type MotorPwm struct {
	ch1, ch2 Channel
	cfg      Config
	maxDuty  float32

	target  float32
	applied float32

	enabled bool
}

// New creates a MotorPwm driving ch1/ch2 per cfg.
func New(ch1, ch2 Channel, cfg Config) *MotorPwm {
	bits := cfg.ResolutionBits
	if bits == 0 {
		bits = 8
	}
	return &MotorPwm{
		ch1:     ch1,
		ch2:     ch2,
		cfg:     cfg,
		maxDuty: float32(uint32(1)<<bits) - 1,
		enabled: true,
	}
}

// SetTarget sets the desired signed command in [-1, +1]; it is negated
// first if Invert is configured, then clamped.
func (m *MotorPwm) SetTarget(u float32) {
	if m.cfg.Invert {
		u = -u
	}
	m.target = clamp(u, -1, 1)
}

// Target returns the most recently set target command.
func (m *MotorPwm) Target() float32 { return m.target }

// Applied returns the slew-limited command currently being driven.
func (m *MotorPwm) Applied() float32 { return m.applied }

// Tick advances the slew limiter by dt seconds and writes the resulting
// duty(s) to the PWM channels. A disabled MotorPwm holds applied at 0 and
// writes neutral duties regardless of target.
func (m *MotorPwm) Tick(dt float32) error {
	if !m.enabled {
		m.applied = 0
		return m.writeNeutral()
	}

	if m.cfg.SlewRatePerSec <= 0 {
		m.applied = m.target
	} else {
		maxStep := m.cfg.SlewRatePerSec * dt
		delta := clamp(m.target-m.applied, -maxStep, maxStep)
		m.applied += delta
	}

	return m.write(m.applied)
}

// Stop is a hard override: applied is forced to 0 immediately, bypassing
// slew, and the channels are driven to their neutral state.
func (m *MotorPwm) Stop() error {
	m.applied = 0
	m.target = 0
	return m.writeNeutral()
}

// Enable re-arms normal Tick-driven output.
func (m *MotorPwm) Enable() { m.enabled = true }

// Disable forces applied to 0 and neutral output on every subsequent
// Tick, until re-enabled.
func (m *MotorPwm) Disable() error {
	m.enabled = false
	m.applied = 0
	m.target = 0
	return m.writeNeutral()
}

func (m *MotorPwm) write(applied float32) error {
	a := math32.Abs(applied)
	var mag float32
	if a < m.cfg.Deadband {
		mag = 0
	} else {
		span := 1 - m.cfg.Deadband
		var s float32
		if span > 0 {
			s = clamp((a-m.cfg.Deadband)/span, 0, 1)
		}
		mag = m.cfg.MinOutput + (1-m.cfg.MinOutput)*s
	}

	switch m.cfg.Drive {
	case LockedAntiPhase:
		signedMag := mag
		if applied < 0 {
			signedMag = -mag
		}
		return m.setBoth(m.quantize(0.5+0.5*signedMag), m.quantize(0.5-0.5*signedMag))
	default: // SignMagnitude
		if mag == 0 {
			return m.writeNeutral()
		}
		duty := m.quantize(mag)
		if applied > 0 {
			return m.setBoth(duty, 0)
		}
		return m.setBoth(0, duty)
	}
}

// quantize snaps a [0,1] duty fraction to the nearest value the
// configured PWM resolution can represent, matching
// duty = round(m * maxDuty) on real hardware counter registers.
func (m *MotorPwm) quantize(frac float32) float32 {
	return math32.Round(frac*m.maxDuty) / m.maxDuty
}

func (m *MotorPwm) writeNeutral() error {
	switch m.cfg.Neutral {
	case Brake:
		return m.setBoth(1, 1)
	default: // Coast
		return m.setBoth(0, 0)
	}
}

func (m *MotorPwm) setBoth(duty1, duty2 float32) error {
	if err := m.ch1.Set(clamp(duty1, 0, 1)); err != nil {
		return err
	}
	return m.ch2.Set(clamp(duty2, 0, 1))
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
