// Package trajectory is a consumer-contract harness for
// DifferentialDrive: it plans a symmetric trapezoidal velocity
// profile and drives it through SetTwist/Stop, the only surface a
// trajectory runner is allowed to see. It is not a path planner —
// real trajectory generation (obstacle-aware planning, multi-segment
// paths) is out of scope here; this exists to exercise the twist
// contract end to end.
package trajectory

import "github.com/chewxy/math32"

// Drive is the subset of drive.DifferentialDrive a runner drives.
type Drive interface {
	SetTwist(v, w float32)
	Stop() error
}

// Profile is a symmetric trapezoidal velocity profile over a signed
// displacement deltaQ, ramping to peak (sign-matched to deltaQ) and
// back to zero over total duration Tf, with t1 = Tf/3 the end of the
// ramp-up and t2 = 2*Tf/3 the start of the ramp-down.
type Profile struct {
	deltaQ float32
	peak   float32
	t1, t2 float32
	tf     float32
}

// NewProfile builds a Profile for a signed displacement deltaQ at the
// given (positive, unsigned) peak velocity. Tf = 1.5*|deltaQ|/peak.
func NewProfile(deltaQ, peak float32) Profile {
	if peak <= 0 {
		peak = 1
	}
	tf := 1.5 * math32.Abs(deltaQ) / peak
	return Profile{
		deltaQ: deltaQ,
		peak:   peak,
		t1:     tf / 3,
		t2:     2 * tf / 3,
		tf:     tf,
	}
}

// Duration returns the profile's total duration.
func (p Profile) Duration() float32 { return p.tf }

// VelocityAt returns the signed commanded velocity at elapsed time t.
func (p Profile) VelocityAt(t float32) float32 {
	if p.tf <= 0 || t >= p.tf {
		return 0
	}
	signedPeak := p.peak
	if p.deltaQ < 0 {
		signedPeak = -p.peak
	}
	switch {
	case t < p.t1:
		return signedPeak * (t / p.t1)
	case t < p.t2:
		return signedPeak
	default:
		return signedPeak * ((p.tf - t) / (p.tf - p.t2))
	}
}

// IsFinished reports whether elapsed time t has reached the profile's
// duration.
func (p Profile) IsFinished(t float32) bool { return t >= p.tf }

// phase selects which profile (rotate or advance) a Runner is
// currently driving.
type phase int

const (
	phaseRotate phase = iota
	phaseAdvance
	phaseDone
)

// Runner plans and drives a two-phase "rotate, then advance" maneuver:
// first spin in place to face deltaTheta, then drive straight deltaQ.
type Runner struct {
	drive Drive

	rotateProfile  Profile
	advanceProfile Profile

	phase   phase
	elapsed float32
}

// NewRunner builds a Runner for rotating by deltaTheta [rad] at
// peakW [rad/s], then advancing by deltaQ [m] at peakV [m/s].
func NewRunner(drive Drive, deltaTheta, peakW, deltaQ, peakV float32) *Runner {
	return &Runner{
		drive:          drive,
		rotateProfile:  NewProfile(deltaTheta, peakW),
		advanceProfile: NewProfile(deltaQ, peakV),
		phase:          phaseRotate,
	}
}

// Tick advances the runner by dt seconds, issuing exactly one
// SetTwist (or, on completion, Stop) call.
func (r *Runner) Tick(dt float32) error {
	switch r.phase {
	case phaseRotate:
		if r.rotateProfile.IsFinished(r.elapsed) {
			r.phase = phaseAdvance
			r.elapsed = 0
			return r.Tick(dt)
		}
		r.drive.SetTwist(0, r.rotateProfile.VelocityAt(r.elapsed))
		r.elapsed += dt
		return nil
	case phaseAdvance:
		if r.advanceProfile.IsFinished(r.elapsed) {
			r.phase = phaseDone
			return r.drive.Stop()
		}
		r.drive.SetTwist(r.advanceProfile.VelocityAt(r.elapsed), 0)
		r.elapsed += dt
		return nil
	default:
		return nil
	}
}

// IsFinished reports whether both phases have completed.
func (r *Runner) IsFinished() bool { return r.phase == phaseDone }
