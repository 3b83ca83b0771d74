package calibrator_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fidistudio/hallwheel/internal/calibrator"
	"github.com/fidistudio/hallwheel/internal/hal"
	"github.com/fidistudio/hallwheel/pkg/logger"
)

func newCalibrator(t *testing.T, ppr, maxLaps int) *calibrator.Calibrator {
	t.Helper()
	c, err := calibrator.New(ppr, maxLaps, hal.NewMemStore(), "wheelL", logger.Nop())
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadArgs(t *testing.T) {
	t.Parallel()
	store := hal.NewMemStore()
	_, err := calibrator.New(0, 3, store, "w", logger.Nop())
	require.Error(t, err)
	_, err = calibrator.New(4, 0, store, "w", logger.Nop())
	require.Error(t, err)
	_, err = calibrator.New(4, 13, store, "w", logger.Nop())
	require.Error(t, err)
}

func TestCalibrationTrimmedMeanAggregation(t *testing.T) {
	t.Parallel()
	c := newCalibrator(t, 4, 3)

	require.NoError(t, c.StartCalibration(3, 1))
	require.True(t, c.CalibrationActive())

	samples := [][]float32{
		{100, 110, 105},
		{200, 220, 210},
		{100, 110, 105},
		{100, 110, 105},
	}
	for lap := 0; lap < 3; lap++ {
		for k := 0; k < 4; k++ {
			c.FeedPeriod(k, samples[k][lap])
		}
	}

	done, err := c.FinishCalibrationIfReady()
	require.NoError(t, err)
	require.True(t, done)
	require.False(t, c.CalibrationActive())

	useFwd, useRev := c.UseFlags()
	require.False(t, useFwd)
	require.False(t, useRev)
	require.NoError(t, c.SetUseFlags(true, false))

	// sector_mean = (105, 210, 105, 105); global_mean = 131.25;
	// s[k] = global_mean / sector_mean[k].
	require.InDelta(t, 1.25, c.CorrectDt(0, 1, 1), 1e-4)
	require.InDelta(t, 0.625, c.CorrectDt(1, 1, 1), 1e-4)
	require.InDelta(t, 1.25, c.CorrectDt(2, 1, 1), 1e-4)
	require.InDelta(t, 1.25, c.CorrectDt(3, 1, 1), 1e-4)

	// reverse direction untouched by a forward-direction run.
	require.InDelta(t, 1.0, c.CorrectDt(1, -1, 1), 1e-4)
}

func TestCalibrationZeroSamplesAbortsWithoutTouchingLUT(t *testing.T) {
	t.Parallel()
	c := newCalibrator(t, 4, 2)
	require.NoError(t, c.StartCalibration(2, 1))
	require.NoError(t, c.SetUseFlags(true, true))

	// Never feed a single sample; lap target never reached.
	done, err := c.FinishCalibrationIfReady()
	require.NoError(t, err)
	require.False(t, done)

	require.InDelta(t, 7.0, c.CorrectDt(0, 1, 7), 1e-6)
}

func TestStartCalibrationRejectsBadLapCount(t *testing.T) {
	t.Parallel()
	c := newCalibrator(t, 4, 3)
	require.Error(t, c.StartCalibration(0, 1))
	require.Error(t, c.StartCalibration(4, 1))
}

func TestAlignmentRequiresReadyPattern(t *testing.T) {
	t.Parallel()
	c := newCalibrator(t, 4, 2)
	// Fresh calibrator: pattern is flat (LUT all ones), not ready.
	require.Error(t, c.StartAlignment(1, 1))
}

func TestAlignmentRecoversKnownShift(t *testing.T) {
	t.Parallel()
	c := newCalibrator(t, 4, 2)

	// Establish a non-flat LUT so the derived pattern is ready.
	require.NoError(t, c.StartCalibration(1, 1))
	c.FeedPeriod(0, 100)
	c.FeedPeriod(1, 200)
	c.FeedPeriod(2, 100)
	c.FeedPeriod(3, 100)
	done, err := c.FinishCalibrationIfReady()
	require.NoError(t, err)
	require.True(t, done)

	// The pattern derived from that LUT: reciprocal of s, renormalized to
	// mean 1. sector_mean = (100,200,100,100), global_mean = 125,
	// s = (1.25, 0.625, 1.25, 1.25); raw = 1/s = (0.8, 1.6, 0.8, 0.8),
	// mean(raw) = 1.0, so pattern = (0.8, 1.6, 0.8, 0.8).
	//
	// Feed a lap shifted by 2: lap[k] = pattern[(k+2)%4].
	require.NoError(t, c.StartAlignment(1, 1))
	pattern := []float32{0.8, 1.6, 0.8, 0.8}
	shiftBy := 2
	for k := 0; k < 4; k++ {
		c.FeedPeriod(k, pattern[(k+shiftBy)%4])
	}

	offset, score, done, err := c.FinishAlignmentIfReady()
	require.NoError(t, err)
	require.True(t, done)
	require.EqualValues(t, shiftBy, offset)
	require.InDelta(t, 0, score, 1e-4)
}

func TestAlignmentZeroLapSumAborts(t *testing.T) {
	t.Parallel()
	c := newCalibrator(t, 4, 1)
	require.NoError(t, c.StartCalibration(1, 1))
	c.FeedPeriod(0, 100)
	c.FeedPeriod(1, 200)
	c.FeedPeriod(2, 100)
	c.FeedPeriod(3, 100)
	_, err := c.FinishCalibrationIfReady()
	require.NoError(t, err)

	require.NoError(t, c.StartAlignment(1, 1))
	// Close the lap with a single zero sample: every cell stays zero, lap sum is 0.
	c.FeedPeriod(3, 0)
	_, _, done, err := c.FinishAlignmentIfReady()
	require.Error(t, err)
	require.False(t, done)
}

func TestClearResetsEverything(t *testing.T) {
	t.Parallel()
	c := newCalibrator(t, 4, 2)
	require.NoError(t, c.StartCalibration(1, 1))
	for k := 0; k < 4; k++ {
		c.FeedPeriod(k, float32(100+k*10))
	}
	_, err := c.FinishCalibrationIfReady()
	require.NoError(t, err)
	require.NoError(t, c.SetUseFlags(true, true))

	require.NoError(t, c.Clear())
	useFwd, useRev := c.UseFlags()
	require.False(t, useFwd)
	require.False(t, useRev)
	require.InDelta(t, 1.0, c.CorrectDt(0, 1, 1), 1e-6)
}

func TestLoadMigratesLegacySingleLUT(t *testing.T) {
	t.Parallel()
	store := hal.NewMemStore()
	require.NoError(t, store.SetFloat32s("lut", []float32{1.1, 0.9, 1.1, 0.9}))
	require.NoError(t, store.SetBool("use_lut", true))

	c, err := calibrator.New(4, 3, store, "legacywheel", logger.Nop())
	require.NoError(t, err)
	require.NoError(t, c.Load())

	useFwd, useRev := c.UseFlags()
	require.True(t, useFwd)
	require.True(t, useRev)
	require.InDelta(t, 1.1, c.CorrectDt(0, 1, 1), 1e-6)
	require.InDelta(t, 1.0, c.CorrectDt(0, -1, 1), 1e-6)
}
