package wheel_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fidistudio/hallwheel/internal/wheel"
	"github.com/fidistudio/hallwheel/pkg/logger"
)

type fakeEstimator struct {
	dir   int
	omega float32
}

func (f *fakeEstimator) SetStepDirection(dir int) { f.dir = dir }
func (f *fakeEstimator) Omega() float32           { return f.omega }
func (f *fakeEstimator) Tick(nowUs int64)         {}

type fakePid struct {
	lastTarget, lastMeasured float32
	resetCount               int
	resetU0                  float32
	out                      float32
}

func (f *fakePid) Update(target, measured float32) float32 {
	f.lastTarget, f.lastMeasured = target, measured
	return f.out
}
func (f *fakePid) Reset(u0 float32) { f.resetCount++; f.resetU0 = u0 }

type fakeMotor struct {
	target, applied float32
	stopped         bool
}

func (f *fakeMotor) SetTarget(u float32) { f.target = u }
func (f *fakeMotor) Target() float32     { return f.target }
func (f *fakeMotor) Applied() float32    { return f.applied }
func (f *fakeMotor) Tick(dt float32) error {
	f.applied = f.target
	return nil
}
func (f *fakeMotor) Stop() error { f.stopped = true; f.applied = 0; f.target = 0; return nil }

type fakeCalib struct {
	calActive, alignActive bool
	startCalCalls          int
	startAlignCalls        int
	lastDir                int
	useFwd, useRev         bool
	patternReady           bool
}

func (c *fakeCalib) StartCalibration(lapsN, stepDir int) error {
	c.startCalCalls++
	c.lastDir = stepDir
	c.calActive = true
	return nil
}
func (c *fakeCalib) StartAlignment(lapsN, stepDir int) error {
	c.startAlignCalls++
	c.lastDir = stepDir
	c.alignActive = true
	return nil
}
func (c *fakeCalib) CalibrationActive() bool       { return c.calActive }
func (c *fakeCalib) AlignmentActive() bool         { return c.alignActive }
func (c *fakeCalib) PatternReady(stepDir int) bool { return c.patternReady }
func (c *fakeCalib) UseFlags() (bool, bool)        { return c.useFwd, c.useRev }

func newWheel(cfg wheel.Config) (*wheel.Wheel, *fakeEstimator, *fakeCalib, *fakePid, *fakeMotor) {
	est := &fakeEstimator{}
	calib := &fakeCalib{}
	pidCtl := &fakePid{}
	motor := &fakeMotor{}
	w := wheel.New(cfg, est, calib, pidCtl, motor, logger.Nop())
	return w, est, calib, pidCtl, motor
}

func TestSignFlipResetsPidBumplessly(t *testing.T) {
	t.Parallel()
	w, _, _, pidCtl, _ := newWheel(wheel.Config{})

	w.SetOmegaRef(1.0)
	require.Equal(t, 0, pidCtl.resetCount)

	w.SetOmegaRef(-1.0)
	require.Equal(t, 1, pidCtl.resetCount)
	require.Zero(t, pidCtl.resetU0)

	// Same sign again: no additional reset.
	w.SetOmegaRef(-0.5)
	require.Equal(t, 1, pidCtl.resetCount)
}

func TestUpdateDrivesPidAndMotorWithSignedOutput(t *testing.T) {
	t.Parallel()
	w, _, _, pidCtl, motor := newWheel(wheel.Config{})
	pidCtl.out = 0.7

	w.SetOmegaRef(-2.0)
	require.NoError(t, w.Update(0, 0.01))

	require.InDelta(t, 2.0, pidCtl.lastTarget, 1e-6)
	require.InDelta(t, -0.7, motor.target, 1e-6)
}

func TestRoutineFreezesStepDirectionAndAssists(t *testing.T) {
	t.Parallel()
	w, est, calib, _, motor := newWheel(wheel.Config{AssistMode: true, AssistU: 0.6})

	motor.target = 0.3 // pre-existing target to be restored after the routine
	require.NoError(t, w.StartCalibration(3))
	require.InDelta(t, 0.6, motor.target, 1e-6) // assist engaged immediately

	require.NoError(t, w.Update(0, 0.01))
	require.Equal(t, 1, est.dir) // routine direction frozen to wheel's current dir

	// Routine completes; assist should release and restore the saved
	// target.
	calib.calActive = false
	calib.alignActive = false
	require.NoError(t, w.Update(1000, 0.01))
	require.False(t, w.IsRoutineActive())
	require.InDelta(t, 0.3, motor.target, 1e-6)
}

func TestBeginBootSkipsWhenPatternNotReady(t *testing.T) {
	t.Parallel()
	w, _, calib, _, _ := newWheel(wheel.Config{})
	calib.useFwd = true
	calib.patternReady = false

	require.NoError(t, w.BeginBoot(true, 2))
	require.Equal(t, 0, calib.startAlignCalls)
}

func TestBeginBootStartsAlignmentWhenReady(t *testing.T) {
	t.Parallel()
	w, _, calib, _, _ := newWheel(wheel.Config{})
	calib.useFwd = true
	calib.patternReady = true

	require.NoError(t, w.BeginBoot(true, 2))
	require.Equal(t, 1, calib.startAlignCalls)
}

func TestNeutralStopsMotor(t *testing.T) {
	t.Parallel()
	w, _, _, _, motor := newWheel(wheel.Config{})
	w.SetOmegaRef(1.0)
	require.NoError(t, w.Neutral())
	require.True(t, motor.stopped)
}
