// Package drive composes two Wheels into a differential-drive base:
// twist-to-wheel-rate kinematics, acceleration ramps, a
// direction-preserving saturation rescale, and a coordinated
// spin-in-place routine for aligning/calibrating both wheels in
// sequence.
package drive

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/rs/zerolog"
)

// Wheel is the subset of wheel.Wheel the drive composes.
type Wheel interface {
	SetOmegaRef(omegaRef float32)
	StartCalibration(lapsN int) error
	StartAlignment(lapsN int) error
	IsRoutineActive() bool
	Neutral() error
}

// PatternSource reports whether a wheel has a usable pattern for
// boot-time auto-alignment, mirroring calibrator.Calibrator's
// readiness/use-flag surface.
type PatternSource interface {
	PatternReady(stepDir int) bool
	UseFlags() (useFwd, useRev bool)
}

// Phase names a coordinated-routine sub-phase.
type Phase int

const (
	Idle Phase = iota
	AlignR
	AlignL
	CalibR
	CalibL
)

func (p Phase) String() string {
	switch p {
	case AlignR:
		return "AlignR"
	case AlignL:
		return "AlignL"
	case CalibR:
		return "CalibR"
	case CalibL:
		return "CalibL"
	default:
		return "Idle"
	}
}

// Config configures the kinematics and routine behavior of a
// DifferentialDrive.
type Config struct {
	WheelRadius   float32
	TrackWidth          float32
	VMax, WMax          float32 // 0 disables the corresponding clamp
	VAccMax             float32
	WAccMax             float32
	OmegaWheelMax       float32 // 0 disables the rescale
	RescaleToWheelLimit bool

	AutoCoordinatedAlignOnBoot bool
	AlignLapsBoot              int
	AlignAssistW               float32
	CalibAssistW               float32
}

// DifferentialDrive drives a left/right Wheel pair from a commanded
// twist, and can run a coordinated alignment/calibration sequence
// across both wheels.
type DifferentialDrive struct {
	right, left Wheel
	rightPat    PatternSource
	leftPat     PatternSource
	log         zerolog.Logger
	cfg         Config

	vRef, wRef float32
	vCmd, wCmd float32

	phase      Phase
	phaseLaps  int
	calibrate  bool // true => CalibR/CalibL, false => AlignR/AlignL
}

// New creates a DifferentialDrive over the given right/left wheels.
// patternR/patternL are used only for the boot-time auto-align
// decision.
func New(cfg Config, right, left Wheel, patternR, patternL PatternSource, log zerolog.Logger) *DifferentialDrive {
	return &DifferentialDrive{
		cfg:      cfg,
		right:    right,
		left:     left,
		rightPat: patternR,
		leftPat:  patternL,
		log:      log,
	}
}

// SetTwist commands a linear/angular velocity reference. Ignored while
// a coordinated routine is running.
func (d *DifferentialDrive) SetTwist(v, w float32) {
	if d.phase != Idle {
		return
	}
	d.vRef, d.wRef = v, w
}

// Stop commands a zero twist and, if a coordinated routine is running,
// aborts it immediately.
func (d *DifferentialDrive) Stop() error {
	d.vRef, d.wRef = 0, 0
	if d.phase != Idle {
		return d.abort()
	}
	return nil
}

// abort zeros all references and returns both wheels to neutral,
// transitioning the coordinator back to Idle.
func (d *DifferentialDrive) abort() error {
	d.phase = Idle
	d.vCmd, d.wCmd = 0, 0
	if err := d.right.Neutral(); err != nil {
		return err
	}
	return d.left.Neutral()
}

// CoordinatorPhase reports the active coordinated-routine sub-phase
// (Idle if none is running).
func (d *DifferentialDrive) CoordinatorPhase() Phase { return d.phase }

// StartCoordinatedAlignment arms the two-phase AlignR -> AlignL
// sequence using lapsN laps per side.
func (d *DifferentialDrive) StartCoordinatedAlignment(lapsN int) error {
	return d.startCoordinated(lapsN, false)
}

// StartCoordinatedCalibration arms the two-phase CalibR -> CalibL
// sequence (full pass: align then calibrate is the caller's job to
// sequence; this starts just the calibration pair).
func (d *DifferentialDrive) StartCoordinatedCalibration(lapsN int) error {
	return d.startCoordinated(lapsN, true)
}

func (d *DifferentialDrive) startCoordinated(lapsN int, calibrate bool) error {
	if d.phase != Idle {
		return fmt.Errorf("drive: coordinated routine already running")
	}
	d.phaseLaps = lapsN
	d.calibrate = calibrate
	d.vRef, d.wRef = 0, 0
	if calibrate {
		return d.enterPhase(CalibR)
	}
	return d.enterPhase(AlignR)
}

// enterPhase transitions to phase, spinning the base in place and
// arming the corresponding wheel's routine. The spin sign is chosen so
// the side under test turns in the positive direction: right-side
// phases spin +w, left-side phases spin -w.
func (d *DifferentialDrive) enterPhase(phase Phase) error {
	d.phase = phase
	var w float32
	if d.calibrate {
		w = d.cfg.CalibAssistW
	} else {
		w = d.cfg.AlignAssistW
	}

	switch phase {
	case AlignR:
		d.wCmd = w
		return d.right.StartAlignment(d.phaseLaps)
	case AlignL:
		d.wCmd = -w
		return d.left.StartAlignment(d.phaseLaps)
	case CalibR:
		d.wCmd = w
		return d.right.StartCalibration(d.phaseLaps)
	case CalibL:
		d.wCmd = -w
		return d.left.StartCalibration(d.phaseLaps)
	default:
		return nil
	}
}

// BeginBoot kicks off a coordinated alignment pass if both wheels
// report a usable, ready pattern for the forward direction. The reverse
// direction's flags and pattern are not consulted.
func (d *DifferentialDrive) BeginBoot() error {
	if !d.cfg.AutoCoordinatedAlignOnBoot {
		return nil
	}
	if !patternUsable(d.rightPat, 1) || !patternUsable(d.leftPat, 1) {
		return nil
	}
	return d.StartCoordinatedAlignment(d.cfg.AlignLapsBoot)
}

func patternUsable(p PatternSource, stepDir int) bool {
	if p == nil {
		return false
	}
	useFwd, useRev := p.UseFlags()
	use := useFwd
	if stepDir < 0 {
		use = useRev
	}
	return use && p.PatternReady(stepDir)
}

// Update runs one control tick: ramps (v_cmd, w_cmd) toward the active
// reference, converts to wheel angular velocities with
// direction-preserving rescale, and propagates the result (or the
// coordinator's current sub-phase) to both wheels.
func (d *DifferentialDrive) Update(dt float32) error {
	if d.phase != Idle {
		return d.updateCoordinated()
	}

	d.rampToward(dt)

	omegaR, omegaL := d.wheelRates(d.vCmd, d.wCmd)

	if d.cfg.RescaleToWheelLimit && d.cfg.OmegaWheelMax > 0 {
		omegaR, omegaL = d.rescale(omegaR, omegaL)
	}

	d.right.SetOmegaRef(omegaR)
	d.left.SetOmegaRef(omegaL)
	return nil
}

func (d *DifferentialDrive) rampToward(dt float32) {
	d.vCmd = rampStep(d.vCmd, d.vRef, d.cfg.VAccMax, dt)
	d.wCmd = rampStep(d.wCmd, d.wRef, d.cfg.WAccMax, dt)

	if d.cfg.VMax > 0 {
		d.vCmd = clamp(d.vCmd, -d.cfg.VMax, d.cfg.VMax)
	}
	if d.cfg.WMax > 0 {
		d.wCmd = clamp(d.wCmd, -d.cfg.WMax, d.cfg.WMax)
	}
}

func rampStep(cur, target, accMax, dt float32) float32 {
	if accMax <= 0 {
		return target
	}
	maxStep := accMax * dt
	return cur + clamp(target-cur, -maxStep, maxStep)
}

// wheelRates converts a (v, w) twist into (omegaR, omegaL) per-wheel
// angular velocities: omega_R = (v + (L/2)*w)/r, omega_L = (v - (L/2)*w)/r.
func (d *DifferentialDrive) wheelRates(v, w float32) (omegaR, omegaL float32) {
	half := d.cfg.TrackWidth * 0.5
	omegaR = (v + half*w) / d.cfg.WheelRadius
	omegaL = (v - half*w) / d.cfg.WheelRadius
	return
}

// rescale scales both (v, w) by k = limit/max(|omegaR|, |omegaL|) when
// that max exceeds the limit, then re-derives (omegaR, omegaL) from
// the scaled twist so the v:w ratio is preserved exactly.
func (d *DifferentialDrive) rescale(omegaR, omegaL float32) (float32, float32) {
	limit := d.cfg.OmegaWheelMax
	peak := math32.Max(math32.Abs(omegaR), math32.Abs(omegaL))
	if peak <= limit || peak == 0 {
		return omegaR, omegaL
	}
	k := limit / peak
	d.vCmd *= k
	d.wCmd *= k
	return d.wheelRates(d.vCmd, d.wCmd)
}

func (d *DifferentialDrive) updateCoordinated() error {
	omegaR, omegaL := d.wheelRates(0, d.wCmd)
	d.right.SetOmegaRef(omegaR)
	d.left.SetOmegaRef(omegaL)

	active := d.currentPhaseWheel()
	if active == nil || active.IsRoutineActive() {
		return nil
	}
	return d.advancePhase()
}

func (d *DifferentialDrive) currentPhaseWheel() Wheel {
	switch d.phase {
	case AlignR, CalibR:
		return d.right
	case AlignL, CalibL:
		return d.left
	default:
		return nil
	}
}

func (d *DifferentialDrive) advancePhase() error {
	switch d.phase {
	case AlignR:
		return d.enterPhase(AlignL)
	case AlignL:
		return d.finishCoordinated()
	case CalibR:
		return d.enterPhase(CalibL)
	case CalibL:
		return d.finishCoordinated()
	default:
		return nil
	}
}

func (d *DifferentialDrive) finishCoordinated() error {
	d.phase = Idle
	d.wCmd = 0
	d.right.SetOmegaRef(0)
	d.left.SetOmegaRef(0)
	return nil
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
