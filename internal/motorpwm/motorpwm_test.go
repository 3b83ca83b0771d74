package motorpwm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fidistudio/hallwheel/internal/motorpwm"
)

type fakeChannel struct {
	duty float32
}

func (c *fakeChannel) Set(duty float32) error {
	c.duty = duty
	return nil
}

func TestDeadbandAndMinOutputBoundaries(t *testing.T) {
	t.Parallel()
	ch1, ch2 := &fakeChannel{}, &fakeChannel{}
	m := motorpwm.New(ch1, ch2, motorpwm.Config{
		ResolutionBits: 8,
		Deadband:       0.1,
		MinOutput:      0.2,
		Drive:          motorpwm.SignMagnitude,
	})

	m.SetTarget(0.05) // below deadband
	require.NoError(t, m.Tick(1))
	require.Zero(t, ch1.duty)
	require.Zero(t, ch2.duty)

	m.SetTarget(0.1 + 1e-4) // just above deadband -> ~minOutput
	require.NoError(t, m.Tick(1))
	require.InDelta(t, 0.2, ch1.duty, 5e-3)
	require.Zero(t, ch2.duty)

	m.SetTarget(1.0) // full scale
	require.NoError(t, m.Tick(1))
	require.InDelta(t, 1.0, ch1.duty, 1e-3)
}

func TestSignMagnitudeRoutesToCorrectChannel(t *testing.T) {
	t.Parallel()
	ch1, ch2 := &fakeChannel{}, &fakeChannel{}
	m := motorpwm.New(ch1, ch2, motorpwm.Config{Drive: motorpwm.SignMagnitude})

	m.SetTarget(-0.5)
	require.NoError(t, m.Tick(1))
	require.Zero(t, ch1.duty)
	require.Greater(t, ch2.duty, float32(0))
}

func TestLockedAntiPhaseCentersAtHalf(t *testing.T) {
	t.Parallel()
	ch1, ch2 := &fakeChannel{}, &fakeChannel{}
	m := motorpwm.New(ch1, ch2, motorpwm.Config{Drive: motorpwm.LockedAntiPhase})

	m.SetTarget(0)
	require.NoError(t, m.Tick(1))
	// Half duty at 8 bits: round(0.5*255) = 128, so 128/255 per channel.
	require.InDelta(t, 128.0/255, ch1.duty, 1e-3)
	require.InDelta(t, 128.0/255, ch2.duty, 1e-3)
}

func TestSlewRateLimitsRateOfChange(t *testing.T) {
	t.Parallel()
	ch1, ch2 := &fakeChannel{}, &fakeChannel{}
	m := motorpwm.New(ch1, ch2, motorpwm.Config{SlewRatePerSec: 1, Drive: motorpwm.SignMagnitude})

	m.SetTarget(1.0)
	require.NoError(t, m.Tick(0.1)) // only 0.1 of slew budget this tick
	require.InDelta(t, 0.1, m.Applied(), 1e-6)
}

func TestStopIsImmediateOverride(t *testing.T) {
	t.Parallel()
	ch1, ch2 := &fakeChannel{}, &fakeChannel{}
	m := motorpwm.New(ch1, ch2, motorpwm.Config{SlewRatePerSec: 0.01, Drive: motorpwm.SignMagnitude})

	m.SetTarget(1.0)
	require.NoError(t, m.Tick(1))
	require.Greater(t, m.Applied(), float32(0))

	require.NoError(t, m.Stop())
	require.Zero(t, m.Applied())
	require.Zero(t, ch1.duty)
	require.Zero(t, ch2.duty)
}

func TestNeutralPolicyBrakeDrivesBothChannelsHigh(t *testing.T) {
	t.Parallel()
	ch1, ch2 := &fakeChannel{}, &fakeChannel{}
	m := motorpwm.New(ch1, ch2, motorpwm.Config{Drive: motorpwm.SignMagnitude, Neutral: motorpwm.Brake})

	m.SetTarget(0)
	require.NoError(t, m.Tick(1))
	require.InDelta(t, 1.0, ch1.duty, 1e-6)
	require.InDelta(t, 1.0, ch2.duty, 1e-6)
}

func TestDisableForcesNeutralAndFreezesApplied(t *testing.T) {
	t.Parallel()
	ch1, ch2 := &fakeChannel{}, &fakeChannel{}
	m := motorpwm.New(ch1, ch2, motorpwm.Config{Drive: motorpwm.SignMagnitude})

	m.SetTarget(1.0)
	require.NoError(t, m.Tick(1))
	require.NoError(t, m.Disable())
	require.Zero(t, m.Applied())
	require.Zero(t, ch1.duty)

	m.SetTarget(1.0)
	require.NoError(t, m.Tick(1))
	require.Zero(t, m.Applied())
}
