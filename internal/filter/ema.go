// Package filter holds small signal-conditioning primitives shared by the
// estimator and PID controllers.
package filter

import "github.com/chewxy/math32"

// EMA is an exponential moving average filter: value = alpha*sample +
// (1-alpha)*previous, seeded by its first sample instead of starting at
// zero.
type EMA struct {
	alpha       float32
	value       float32
	initialized bool
}

// NewEMA creates an EMA filter with smoothing factor alpha in (0, 1].
func NewEMA(alpha float32) *EMA {
	if alpha <= 0 || alpha > 1 {
		panic("filter: EMA alpha must be in range (0, 1]")
	}
	return &EMA{alpha: alpha}
}

// Reset clears the filter back to its unseeded state.
func (e *EMA) Reset() {
	e.value = 0
	e.initialized = false
}

// Process folds in a new sample and returns the updated average.
func (e *EMA) Process(sample float32) float32 {
	if !e.initialized {
		e.value = sample
		e.initialized = true
	} else {
		e.value = e.alpha*sample + (1-e.alpha)*e.value
	}
	return e.value
}

// Value returns the current average without processing a new sample.
func (e *EMA) Value() float32 { return e.value }

// SetAlpha changes the smoothing factor.
func (e *EMA) SetAlpha(alpha float32) {
	if alpha <= 0 || alpha > 1 {
		panic("filter: EMA alpha must be in range (0, 1]")
	}
	e.alpha = alpha
}

// AlphaFromTimeConstant derives a smoothing factor from a time constant
// expressed in samples (the number of samples to reach ~63% of a step
// change).
func AlphaFromTimeConstant(timeConstant float32) float32 {
	if timeConstant <= 0 {
		panic("filter: time constant must be > 0")
	}
	return 1.0 - math32.Exp(-1.0/timeConstant)
}
