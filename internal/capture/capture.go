// Package capture implements an ISR-safe pulse capture stream: a
// Hall-effect edge counter with software debounce that exports a
// three-word snapshot to the control task. Single-edge pulse counting
// with a last-period measurement, not quadrature decoding.
package capture

import "sync"

// Device captures pulses on one Hall sensor channel. Accept is the ISR-side
// entry point; Snapshot and Reset are called from the control task. Both
// sides touch the same three words under a short critical section — the
// spec's "short critical section that also protects the snapshot read".
type Device struct {
	mu sync.Mutex

	count      uint32
	lastUs     int64
	lastPeriod int64 // microseconds; 0 until the second pulse arrives

	minGapUs int64 // 0 disables software debounce
}

// New creates a Device. minGapUs is the software debounce threshold (0
// disables it, relying on the hardware glitch filter alone).
func New(minGapUs int64) *Device {
	return &Device{minGapUs: minGapUs}
}

// Accept records a pulse arriving at timestamp nowUs. It is safe to call
// from interrupt context: the critical section is a single mutex lock
// around three word writes, no allocation, no blocking.
func (d *Device) Accept(nowUs int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.count == 0 {
		// First pulse ever: there is no prior edge to measure a period
		// against, so just establish the baseline.
		d.lastUs = nowUs
		d.count++
		return
	}

	gap := nowUs - d.lastUs
	if d.minGapUs > 0 && gap < d.minGapUs {
		// Software debounce on top of the hardware glitch filter.
		return
	}

	d.lastPeriod = gap
	d.lastUs = nowUs
	d.count++
}

// Snapshot atomically reads (count, lastPeriodUs, lastTsUs). Consumers must
// tolerate count jumping by more than 1 since the previous snapshot and, in
// that case, reuse lastPeriodUs as the best available estimate for each
// missed sample.
func (d *Device) Snapshot() (count uint32, lastPeriodUs int64, lastTsUs int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count, d.lastPeriod, d.lastUs
}

// Reset clears the capture state.
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count = 0
	d.lastUs = 0
	d.lastPeriod = 0
}
