// Package estimator converts a raw pulse stream into a calibrated
// angular velocity: it drains PulseCapture snapshots, routes each
// inter-pulse period through the sector calibrator, and maintains an
// EMA-filtered period from which rpm and omega are derived.
package estimator

import (
	"github.com/chewxy/math32"
	"github.com/rs/zerolog"

	"github.com/fidistudio/hallwheel/internal/calibrator"
	"github.com/fidistudio/hallwheel/internal/filter"
)

// Capture is the subset of capture.Device the estimator consumes.
type Capture interface {
	Snapshot() (count uint32, lastPeriodUs int64, lastTsUs int64)
}

// Config configures one Estimator instance.
type Config struct {
	PPR           int
	AlphaPeriod   float32 // EMA mix factor in (0, 1]
	TimeoutStopUs int64   // velocity collapses to 0 after this much silence
	Invert        bool
}

// Estimator derives rpm/omega from a Capture device, correcting each
// period through a Calibrator and tracking the running sector index.
type Estimator struct {
	cap   Capture
	calib *calibrator.Calibrator
	log   zerolog.Logger
	cfg   Config

	ema *filter.EMA

	k       int // current sector index, [0, PPR)
	stepDir int // +1 or -1

	periodEmaUs float32
	rpm         float32
	omega       float32

	prevCount  uint32
	lastSeenUs int64
	haveSeen   bool
}

// New creates an Estimator over cap, correcting through calib.
func New(cfg Config, cap Capture, calib *calibrator.Calibrator, log zerolog.Logger) *Estimator {
	if cfg.AlphaPeriod <= 0 || cfg.AlphaPeriod > 1 {
		cfg.AlphaPeriod = 1
	}
	return &Estimator{
		cap:     cap,
		calib:   calib,
		log:     log,
		cfg:     cfg,
		ema:     filter.NewEMA(cfg.AlphaPeriod),
		stepDir: 1,
	}
}

// SetStepDirection sets the direction (+1 or -1) the sector index
// advances on each accepted pulse. Callers pass the wheel's current
// direction, or a routine's frozen direction while one is active.
func (e *Estimator) SetStepDirection(dir int) {
	if dir < 0 {
		e.stepDir = -1
	} else {
		e.stepDir = 1
	}
}

// Sector returns the current running sector index.
func (e *Estimator) Sector() int { return e.k }

// RPM returns the most recently derived revolutions-per-minute magnitude,
// negated when Config.Invert is set.
func (e *Estimator) RPM() float32 { return e.rpm }

// Omega returns the most recently derived angular velocity magnitude, in
// rad/s, negated when Config.Invert is set.
func (e *Estimator) Omega() float32 { return e.omega }

// Tick processes whatever pulses have arrived since the previous call, at
// timestamp nowUs.
func (e *Estimator) Tick(nowUs int64) {
	count, lastPeriodUs, lastTsUs := e.cap.Snapshot()

	if !e.haveSeen {
		e.prevCount = count
		e.lastSeenUs = nowUs
		e.haveSeen = true
		if count == 0 {
			return
		}
	}

	delta := int(count - e.prevCount)
	if delta == 0 {
		if e.cfg.TimeoutStopUs > 0 && nowUs-e.lastSeenUs > e.cfg.TimeoutStopUs {
			e.periodEmaUs = 0
			e.rpm = 0
			e.omega = 0
			e.ema.Reset()
		}
		return
	}
	if delta < 0 {
		// Counter wrapped or was reset underneath us; resynchronize without
		// fabricating history.
		delta = 1
	}

	for i := 0; i < delta; i++ {
		rawDt := float32(lastPeriodUs)

		calWasActive := e.calib.CalibrationActive()
		alignWasActive := e.calib.AlignmentActive()
		if calWasActive || alignWasActive {
			e.calib.FeedPeriod(e.k, rawDt)
		}
		if calWasActive {
			if done, err := e.calib.FinishCalibrationIfReady(); err != nil {
				e.log.Warn().Err(err).Msg("calibration run finished with no usable samples")
			} else if done {
				e.log.Info().Msg("calibration complete")
			}
		}
		if alignWasActive {
			if offset, score, done, err := e.calib.FinishAlignmentIfReady(); err != nil {
				e.log.Warn().Err(err).Msg("alignment run finished with no usable laps")
			} else if done {
				e.log.Info().Uint16("offset", offset).Float32("score", score).Msg("alignment complete")
				e.periodEmaUs = 0
				e.ema.Reset()
			}
		}

		correctedDt := e.calib.CorrectDt(e.k, e.stepDir, rawDt)
		e.periodEmaUs = e.ema.Process(correctedDt)

		e.k = ((e.k+e.stepDir)%e.cfg.PPR + e.cfg.PPR) % e.cfg.PPR
	}

	e.deriveRates()
	e.prevCount = count
	e.lastSeenUs = lastUsOrNow(lastTsUs, nowUs)
}

func lastUsOrNow(lastTsUs, nowUs int64) int64 {
	if lastTsUs > 0 {
		return lastTsUs
	}
	return nowUs
}

func (e *Estimator) deriveRates() {
	if e.periodEmaUs <= 0 || e.cfg.PPR <= 0 {
		e.rpm = 0
		e.omega = 0
		return
	}
	revPerSec := 1e6 / (float32(e.cfg.PPR) * e.periodEmaUs)
	rpm := 60 * revPerSec
	omega := 2 * math32.Pi * revPerSec
	if e.cfg.Invert {
		rpm = -rpm
		omega = -omega
	}
	e.rpm = rpm
	e.omega = omega
}

// Reset clears all derived state, as if freshly constructed, without
// touching the sector index or step direction.
func (e *Estimator) Reset() {
	e.periodEmaUs = 0
	e.rpm = 0
	e.omega = 0
	e.ema.Reset()
	e.haveSeen = false
}
