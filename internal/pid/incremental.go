package pid

// Incremental is a discrete velocity-form PID: a single closed-form
// update with three coefficients recomputed only when gains or the
// sample period change, rather than separately accumulated P/I/D terms.
type Incremental struct {
	kp, ki, kd float32
	ts         float32

	c0, c1, c2 float32

	uMin, uMax float32
	clampOut   bool

	uPrev  float32
	e1, e2 float32
	output float32
}

// NewIncremental builds an Incremental controller. If clampOut is false,
// uMin/uMax are ignored and output is unbounded; per spec the default
// caller-facing range is [0, 1] since callers pass magnitudes.
func NewIncremental(kp, ki, kd, ts, uMin, uMax float32, clampOut bool) *Incremental {
	p := &Incremental{
		kp: kp, ki: ki, kd: kd, ts: ts,
		uMin: uMin, uMax: uMax, clampOut: clampOut,
	}
	p.recompute()
	return p
}

func (p *Incremental) recompute() {
	ts := p.ts
	if ts <= 0 {
		ts = 1
	}
	p.c0 = p.kp + p.kd/ts
	p.c1 = -p.kp + p.ki*ts - 2*p.kd/ts
	p.c2 = p.kd / ts
}

// SetGains updates Kp/Ki/Kd and recomputes the closed-form coefficients.
func (p *Incremental) SetGains(kp, ki, kd float32) {
	p.kp, p.ki, p.kd = kp, ki, kd
	p.recompute()
}

// SetSamplePeriod updates Ts and recomputes the closed-form coefficients.
func (p *Incremental) SetSamplePeriod(ts float32) {
	p.ts = ts
	p.recompute()
}

// Update computes u[n] = u[n-1] + c0*e[n] + c1*e[n-1] + c2*e[n-2] and
// shifts the error history.
func (p *Incremental) Update(target, measured float32) float32 {
	e := target - measured
	u := p.uPrev + p.c0*e + p.c1*p.e1 + p.c2*p.e2
	if p.clampOut {
		u = clamp(u, p.uMin, p.uMax)
	}
	p.e2 = p.e1
	p.e1 = e
	p.uPrev = u
	p.output = u
	return u
}

// Reset sets u[n-1] = u0 and zeroes both prior errors: a bumpless
// transfer used whenever the reference sign flips.
func (p *Incremental) Reset(u0 float32) {
	p.uPrev = u0
	p.e1 = 0
	p.e2 = 0
	p.output = u0
}

// Output returns the most recently computed output.
func (p *Incremental) Output() float32 { return p.output }
