// Package wheel composes pulse capture, sector calibration, velocity
// estimation, a magnitude PID, and PWM actuation into the single-wheel
// control loop: signed reference tracking, direction hysteresis on the
// applied command, and calibration/alignment routine orchestration with
// an open-loop "assist" hold.
package wheel

import (
	"fmt"

	"github.com/rs/zerolog"
)

// PidController is the subset of pid.Controller the wheel drives.
type PidController interface {
	Update(target, measured float32) float32
	Reset(u0 float32)
}

// Motor is the subset of motorpwm.MotorPwm the wheel drives.
type Motor interface {
	SetTarget(u float32)
	Target() float32
	Applied() float32
	Tick(dt float32) error
	Stop() error
}

// Estimator is the subset of estimator.Estimator the wheel consumes.
type Estimator interface {
	SetStepDirection(dir int)
	Omega() float32
	Tick(nowUs int64)
}

// Calibrator is the subset of calibrator.Calibrator the wheel drives for
// routine orchestration.
type Calibrator interface {
	StartCalibration(lapsN int, stepDir int) error
	StartAlignment(lapsN int, stepDir int) error
	CalibrationActive() bool
	AlignmentActive() bool
	PatternReady(stepDir int) bool
	UseFlags() (useFwd, useRev bool)
}

// Config configures direction hysteresis and assist behavior.
type Config struct {
	DirEpsU    float32 // |u_applied| threshold to update inferred direction
	DirHoldMs  int64   // minimum time to hold the previous direction
	AssistU    float32 // open-loop command magnitude during a routine
	AssistMode bool    // whether starting a routine engages the assist hold
}

// Wheel is one wheel's full control loop.
type Wheel struct {
	est   Estimator
	calib Calibrator
	pid   PidController
	motor Motor
	log   zerolog.Logger
	cfg   Config

	omegaRef float32
	refSign  int

	dir           int
	lastStrongUs  int64
	routineActive bool
	routineDir    int

	assistSavedTarget float32
	assistActive      bool

	wasCalibrating bool
	wasAligning    bool
}

// New creates a Wheel. The initial inferred direction is +1.
func New(cfg Config, est Estimator, calib Calibrator, pidCtl PidController, motor Motor, log zerolog.Logger) *Wheel {
	return &Wheel{
		est:     est,
		calib:   calib,
		pid:     pidCtl,
		motor:   motor,
		log:     log,
		cfg:     cfg,
		refSign: 1,
		dir:     1,
	}
}

// SetOmegaRef sets the signed angular velocity reference. A sign flip
// from the previous nonzero reference triggers a bumpless PID reset.
func (w *Wheel) SetOmegaRef(omegaRef float32) {
	newSign := signOf(omegaRef)
	if newSign != 0 && newSign != w.refSign {
		w.pid.Reset(0)
	}
	if newSign != 0 {
		w.refSign = newSign
	}
	w.omegaRef = omegaRef
}

func signOf(v float32) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// StartCalibration arms a calibration run, freezing the routine
// direction to the wheel's current inferred direction and engaging
// assist if configured.
func (w *Wheel) StartCalibration(lapsN int) error {
	dir := w.dir
	if err := w.calib.StartCalibration(lapsN, dir); err != nil {
		return fmt.Errorf("wheel: start calibration: %w", err)
	}
	w.beginRoutine(dir)
	return nil
}

// StartAlignment arms an alignment run the same way StartCalibration
// does.
func (w *Wheel) StartAlignment(lapsN int) error {
	dir := w.dir
	if err := w.calib.StartAlignment(lapsN, dir); err != nil {
		return fmt.Errorf("wheel: start alignment: %w", err)
	}
	w.beginRoutine(dir)
	return nil
}

func (w *Wheel) beginRoutine(dir int) {
	w.routineActive = true
	w.routineDir = dir
	w.wasCalibrating = w.calib.CalibrationActive()
	w.wasAligning = w.calib.AlignmentActive()
	if w.cfg.AssistMode {
		w.assistSavedTarget = w.motor.Target()
		u := w.cfg.AssistU
		if dir < 0 {
			u = -u
		}
		w.motor.SetTarget(u)
		w.assistActive = true
	}
}

// Neutral commands zero reference and a hard motor stop.
func (w *Wheel) Neutral() error {
	w.omegaRef = 0
	return w.motor.Stop()
}

// ResetPID performs a bumpless reset of the magnitude PID to u0.
func (w *Wheel) ResetPID(u0 float32) { w.pid.Reset(u0) }

// IsRoutineActive reports whether a calibration or alignment run is in
// progress on this wheel.
func (w *Wheel) IsRoutineActive() bool { return w.routineActive }

// BeginBoot optionally kicks off an auto-alignment run in the wheel's
// current inferred direction, if that direction's LUT is enabled and its
// pattern is ready. No-op otherwise.
func (w *Wheel) BeginBoot(autoAlign bool, alignLaps int) error {
	if !autoAlign {
		return nil
	}
	useFwd, useRev := w.calib.UseFlags()
	useThisDir := useFwd
	if w.dir < 0 {
		useThisDir = useRev
	}
	if !useThisDir || !w.calib.PatternReady(w.dir) {
		return nil
	}
	return w.StartAlignment(alignLaps)
}

// Update runs one control tick: estimator/motor update, direction
// routing, PID magnitude control, and routine-completion polling.
func (w *Wheel) Update(nowUs int64, dt float32) error {
	w.est.Tick(nowUs)

	if w.routineActive {
		w.est.SetStepDirection(w.routineDir)
	} else {
		w.updateDirectionHysteresis(nowUs)
		w.est.SetStepDirection(w.dir)
	}

	if !w.assistActive {
		uMag := w.pid.Update(absF(w.omegaRef), absF(w.est.Omega()))
		uSigned := float32(w.refSign) * uMag
		w.motor.SetTarget(uSigned)
	}

	if err := w.motor.Tick(dt); err != nil {
		return err
	}

	w.pollRoutineCompletion()
	return nil
}

func (w *Wheel) updateDirectionHysteresis(nowUs int64) {
	applied := w.motor.Applied()
	if absF(applied) > w.cfg.DirEpsU {
		w.dir = signOf(applied)
		w.lastStrongUs = nowUs
		return
	}
	if w.cfg.DirHoldMs > 0 && nowUs-w.lastStrongUs > w.cfg.DirHoldMs*1000 {
		// Hold window expired with no strong command since; direction
		// stands until the next strong command arrives.
		return
	}
}

func (w *Wheel) pollRoutineCompletion() {
	if !w.routineActive {
		return
	}
	stillActive := w.calib.CalibrationActive() || w.calib.AlignmentActive()
	if stillActive {
		return
	}
	w.routineActive = false
	if w.assistActive {
		w.motor.SetTarget(w.assistSavedTarget)
		w.assistActive = false
	}
}

func absF(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
