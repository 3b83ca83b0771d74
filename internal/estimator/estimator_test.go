package estimator_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fidistudio/hallwheel/internal/calibrator"
	"github.com/fidistudio/hallwheel/internal/estimator"
	"github.com/fidistudio/hallwheel/internal/hal"
	"github.com/fidistudio/hallwheel/pkg/logger"
)

type fakeCapture struct {
	count  uint32
	period int64
	ts     int64
}

func (f *fakeCapture) Snapshot() (uint32, int64, int64) { return f.count, f.period, f.ts }

func newCalib(t *testing.T, ppr int) *calibrator.Calibrator {
	t.Helper()
	c, err := calibrator.New(ppr, 3, hal.NewMemStore(), "w", logger.Nop())
	require.NoError(t, err)
	return c
}

func TestMultiPulseCatchUpAdvancesSectorAndConvergesEMA(t *testing.T) {
	t.Parallel()
	cap := &fakeCapture{}
	calib := newCalib(t, 6)
	est := estimator.New(estimator.Config{PPR: 6, AlphaPeriod: 0.5}, cap, calib, logger.Nop())

	est.Tick(1000) // establish baseline at count=0

	cap.count = 3
	cap.period = 10000
	cap.ts = 2000
	est.Tick(2000)

	require.EqualValues(t, 3, est.Sector())
	require.Greater(t, est.RPM(), float32(0))
	require.Greater(t, est.Omega(), float32(0))

	// A second identical burst should converge the EMA even closer to
	// the raw period.
	before := est.Omega()
	cap.count = 6
	cap.ts = 3000
	est.Tick(3000)
	require.EqualValues(t, 0, est.Sector()) // 6 mod 6 == 0
	require.InDelta(t, float64(before), float64(est.Omega()), float64(before)*0.5)
}

func TestTimeoutCollapsesToZero(t *testing.T) {
	t.Parallel()
	cap := &fakeCapture{}
	calib := newCalib(t, 4)
	est := estimator.New(estimator.Config{PPR: 4, AlphaPeriod: 1, TimeoutStopUs: 2_000_000}, cap, calib, logger.Nop())

	est.Tick(0)
	cap.count = 1
	cap.period = 5000
	cap.ts = 10
	est.Tick(10)
	require.Greater(t, est.Omega(), float32(0))

	// No new pulses, well past the timeout.
	est.Tick(3_000_010)
	require.Zero(t, est.Omega())
	require.Zero(t, est.RPM())
}

func TestCorrectionPassthroughWhenUseFlagUnset(t *testing.T) {
	t.Parallel()
	cap := &fakeCapture{}
	calib := newCalib(t, 4)
	est := estimator.New(estimator.Config{PPR: 4, AlphaPeriod: 1}, cap, calib, logger.Nop())

	est.Tick(0)
	cap.count = 1
	cap.period = 1000
	cap.ts = 1000
	est.Tick(1000)

	// With no calibration loaded, omega derives from the raw period
	// unmodified (use flags default false).
	expectedRevPerSec := float32(1e6 / (4 * 1000.0))
	require.InDelta(t, float64(expectedRevPerSec*2*3.14159265), float64(est.Omega()), 1e-2)
}

func TestConcurrentCalibrationAndAlignmentFeedPeriodOnce(t *testing.T) {
	t.Parallel()
	cap := &fakeCapture{}
	calib := newCalib(t, 4)
	est := estimator.New(estimator.Config{PPR: 4, AlphaPeriod: 1}, cap, calib, logger.Nop())
	est.SetStepDirection(1)
	est.Tick(0) // establish baseline at count=0

	// Seed a forward pattern so alignment has something to search against.
	require.NoError(t, calib.StartCalibration(2, 1))
	for pulse := 0; pulse < 8; pulse++ {
		cap.count = uint32(pulse + 1)
		cap.period = int64(1000 + 100*(pulse%4)) // distinct per sector, so the LUT is not flat
		cap.ts = int64(pulse+1) * 1000
		est.Tick(cap.ts)
	}
	require.False(t, calib.CalibrationActive())

	// Calibration and alignment running concurrently on the same wheel is
	// a sanctioned state; each run must only see one FeedPeriod per pulse,
	// so a 2-lap alignment run completes after exactly 2*PPR pulses, not
	// half that.
	require.NoError(t, calib.StartCalibration(2, 1))
	require.NoError(t, calib.StartAlignment(2, 1))

	for pulse := 0; pulse < 7; pulse++ {
		cap.count = uint32(9 + pulse)
		cap.period = 1000
		cap.ts = int64(9+pulse) * 1000
		est.Tick(cap.ts)
		require.True(t, calib.AlignmentActive(), "alignment finished early at pulse %d", pulse)
	}

	cap.count = 16
	cap.period = 1000
	cap.ts = 16000
	est.Tick(cap.ts)
	require.False(t, calib.AlignmentActive())
	require.False(t, calib.CalibrationActive())
}

func TestInvertNegatesReportedRates(t *testing.T) {
	t.Parallel()
	cap := &fakeCapture{}
	calib := newCalib(t, 4)
	est := estimator.New(estimator.Config{PPR: 4, AlphaPeriod: 1, Invert: true}, cap, calib, logger.Nop())

	est.Tick(0)
	cap.count = 1
	cap.period = 1000
	cap.ts = 1000
	est.Tick(1000)

	require.Less(t, est.Omega(), float32(0))
	require.Less(t, est.RPM(), float32(0))
}
