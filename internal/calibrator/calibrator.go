// Package calibrator implements the sector-indexed calibration and
// alignment pipeline: dual forward/reverse lookup tables, multi-lap
// acquisition, trimmed-mean aggregation, persistence, and
// circular-pattern-matching auto-alignment.
package calibrator

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Direction selects which LUT/pattern/offset/use-flag pair an operation
// addresses.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func directionOf(stepDir int) Direction {
	if stepDir < 0 {
		return Reverse
	}
	return Forward
}

// patternReadyEpsilon is the minimum (max-min) range a pattern must carry
// to be considered ready for alignment search.
const patternReadyEpsilon = 1e-3

// Calibrator owns the dual LUTs, derived patterns, offsets, use flags, the
// calibration/alignment sample arenas, and their persistence.
type Calibrator struct {
	ppr     int
	maxLaps int

	store     Store
	namespace string
	log       zerolog.Logger

	sFwd, sRev []float32
	pFwd, pRev []float32
	offFwd     uint16
	offRev     uint16
	useFwd     bool
	useRev     bool

	calActive bool
	calDir    Direction
	calTarget int
	calLap    int
	calBuf    []float32 // flat [k*maxLaps+lap]
	calFilled []bool

	alignActive bool
	alignDir    Direction
	alignTarget int
	alignLap    int
	alignBuf    []float32 // flat [k*maxLaps+lap]
}

// Store is the subset of hal.Store the calibrator persists to. Declared
// locally so this package doesn't import hal directly — it only needs the
// typed accessors, not the rest of the platform surface.
type Store interface {
	GetBool(key string) (bool, bool)
	SetBool(key string, value bool) error
	GetUint16(key string) (uint16, bool)
	SetUint16(key string, value uint16) error
	GetFloat32s(key string) ([]float32, bool)
	SetFloat32s(key string, value []float32) error
}

// New creates a Calibrator for a wheel identified by namespace (e.g.
// "wheelL"), with neutral (1.0) LUTs until Load is called. maxLaps must be
// in (0, 12].
func New(ppr, maxLaps int, store Store, namespace string, log zerolog.Logger) (*Calibrator, error) {
	if ppr <= 0 {
		return nil, fmt.Errorf("calibrator: ppr must be > 0, got %d", ppr)
	}
	if maxLaps <= 0 || maxLaps > 12 {
		return nil, fmt.Errorf("calibrator: maxLaps must be in (0, 12], got %d", maxLaps)
	}

	c := &Calibrator{
		ppr:       ppr,
		maxLaps:   maxLaps,
		store:     store,
		namespace: namespace,
		log:       log,
		calBuf:    make([]float32, ppr*maxLaps),
		calFilled: make([]bool, ppr*maxLaps),
		alignBuf:  make([]float32, ppr*maxLaps),
	}
	c.resetLUTs()
	return c, nil
}

func (c *Calibrator) resetLUTs() {
	c.sFwd = ones(c.ppr)
	c.sRev = ones(c.ppr)
	c.rebuildPattern(Forward)
	c.rebuildPattern(Reverse)
}

func ones(n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = 1
	}
	return s
}

func (c *Calibrator) key(suffix string) string {
	return c.namespace + "." + suffix
}

// PPR returns the configured sectors-per-revolution.
func (c *Calibrator) PPR() int { return c.ppr }

func (c *Calibrator) lutFor(dir Direction) []float32 {
	if dir == Reverse {
		return c.sRev
	}
	return c.sFwd
}

func (c *Calibrator) patternFor(dir Direction) []float32 {
	if dir == Reverse {
		return c.pRev
	}
	return c.pFwd
}

func (c *Calibrator) offsetFor(dir Direction) uint16 {
	if dir == Reverse {
		return c.offRev
	}
	return c.offFwd
}

func (c *Calibrator) setOffset(dir Direction, off uint16) {
	if dir == Reverse {
		c.offRev = off
		return
	}
	c.offFwd = off
}

func (c *Calibrator) useFor(dir Direction) bool {
	if dir == Reverse {
		return c.useRev
	}
	return c.useFwd
}

// rebuildPattern derives the direction's pattern from its LUT: p[k] is the
// reciprocal of the LUT entry, renormalized to mean 1. The pattern
// represents the sector's relative *raw period shape*, which is what an
// unaligned lap of fresh periods actually looks like — the LUT instead
// gives the multiplicative correction to flatten that shape out.
func (c *Calibrator) rebuildPattern(dir Direction) {
	lut := c.lutFor(dir)
	raw := make([]float32, len(lut))
	var sum float32
	for k, s := range lut {
		v := float32(1)
		if s > 0 {
			v = 1 / s
		}
		raw[k] = v
		sum += v
	}
	mean := sum / float32(len(raw))
	if mean <= 0 {
		mean = 1
	}
	for k := range raw {
		raw[k] /= mean
	}
	if dir == Reverse {
		c.pRev = raw
	} else {
		c.pFwd = raw
	}
}

// patternReady reports whether dir's pattern carries enough shape to run an
// alignment search against (a perfectly flat pattern, e.g. right after
// Reset, can't discriminate any rotation).
func (c *Calibrator) patternReady(dir Direction) bool {
	p := c.patternFor(dir)
	if len(p) == 0 {
		return false
	}
	lo, hi := p[0], p[0]
	for _, v := range p[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return hi-lo >= patternReadyEpsilon
}

// PatternReady reports whether the given step direction's pattern is
// ready for an alignment search (exported for boot-time auto-align
// decisions outside this package).
func (c *Calibrator) PatternReady(stepDir int) bool {
	return c.patternReady(directionOf(stepDir))
}

// CorrectDt applies the per-sector multiplicative correction for the
// current step direction and sector index, scaling a raw inter-pulse
// period toward its flattened equivalent. The lookup is shifted by the
// direction's learned alignment offset before indexing the LUT. If the
// direction's use flag is not set, dt passes through unscaled.
func (c *Calibrator) CorrectDt(k int, stepDir int, dtUs float32) float32 {
	dir := directionOf(stepDir)
	if !c.useFor(dir) {
		return dtUs
	}
	lut := c.lutFor(dir)
	if k < 0 || len(lut) == 0 {
		return dtUs
	}
	idx := (k + int(c.offsetFor(dir))) % len(lut)
	if idx < 0 {
		idx += len(lut)
	}
	return dtUs * lut[idx]
}

// UseFlags reports the forward and reverse use flags.
func (c *Calibrator) UseFlags() (useFwd, useRev bool) {
	return c.useFwd, c.useRev
}

// SetUseFlags sets and persists the forward and reverse use flags
// independently.
func (c *Calibrator) SetUseFlags(useFwd, useRev bool) error {
	c.useFwd = useFwd
	c.useRev = useRev
	if err := c.store.SetBool(c.key("use_fwd"), useFwd); err != nil {
		return err
	}
	return c.store.SetBool(c.key("use_rev"), useRev)
}
