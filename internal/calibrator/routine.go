package calibrator

import (
	"fmt"

	"github.com/chewxy/math32"
)

// StartCalibration arms a calibration run of lapsN laps in the direction
// implied by stepDir's sign, clearing any prior partial run's samples. It
// errs without changing state if lapsN is out of (0, maxLaps].
func (c *Calibrator) StartCalibration(lapsN int, stepDir int) error {
	if lapsN <= 0 || lapsN > c.maxLaps {
		return fmt.Errorf("calibrator: lapsN must be in (0, %d], got %d", c.maxLaps, lapsN)
	}
	c.calDir = directionOf(stepDir)
	c.calTarget = lapsN
	c.calLap = 0
	for i := range c.calBuf {
		c.calBuf[i] = 0
		c.calFilled[i] = false
	}
	c.calActive = true
	return nil
}

// StartAlignment arms an alignment run of lapsN laps in the direction
// implied by stepDir's sign. It errs without changing state if lapsN is
// out of range, or if that direction's pattern isn't ready (no prior
// calibration to search against).
func (c *Calibrator) StartAlignment(lapsN int, stepDir int) error {
	if lapsN <= 0 || lapsN > c.maxLaps {
		return fmt.Errorf("calibrator: lapsN must be in (0, %d], got %d", c.maxLaps, lapsN)
	}
	dir := directionOf(stepDir)
	if !c.patternReady(dir) {
		return fmt.Errorf("calibrator: pattern not ready for alignment in direction %d", dir)
	}
	c.alignDir = dir
	c.alignTarget = lapsN
	c.alignLap = 0
	for i := range c.alignBuf {
		c.alignBuf[i] = 0
	}
	c.alignActive = true
	return nil
}

// CalibrationActive reports whether a calibration run is in progress.
func (c *Calibrator) CalibrationActive() bool { return c.calActive }

// AlignmentActive reports whether an alignment run is in progress.
func (c *Calibrator) AlignmentActive() bool { return c.alignActive }

// FeedPeriod routes one raw (uncorrected) inter-pulse period into whichever runs
// are active, indexed by sector k (0..PPR-1) and the lap each is
// currently filling. A lap completes, advancing its run's lap counter,
// whenever k wraps past PPR-1.
func (c *Calibrator) FeedPeriod(k int, dtUs float32) {
	if k < 0 || k >= c.ppr {
		return
	}
	if c.calActive && c.calLap < c.calTarget {
		idx := k*c.maxLaps + c.calLap
		c.calBuf[idx] = dtUs
		c.calFilled[idx] = true
		if k == c.ppr-1 {
			c.calLap++
		}
	}
	if c.alignActive && c.alignLap < c.alignTarget {
		idx := k*c.maxLaps + c.alignLap
		c.alignBuf[idx] = dtUs
		if k == c.ppr-1 {
			c.alignLap++
		}
	}
}

// FinishCalibrationIfReady checks whether the active calibration run has
// collected its target lap count and, if so, aggregates the samples into
// a new LUT for that direction, persists it, and returns done=true. A run
// with zero usable samples across every sector aborts without touching
// the LUT.
func (c *Calibrator) FinishCalibrationIfReady() (done bool, err error) {
	if !c.calActive || c.calLap < c.calTarget {
		return false, nil
	}
	defer func() { c.calActive = false }()

	sectorMean := make([]float32, c.ppr)
	haveSector := make([]bool, c.ppr)
	var globalSum float32
	var globalCount int

	buf := make([]float32, 0, c.calTarget)
	for k := 0; k < c.ppr; k++ {
		buf = buf[:0]
		for lap := 0; lap < c.calTarget; lap++ {
			idx := k*c.maxLaps + lap
			if c.calFilled[idx] {
				buf = append(buf, c.calBuf[idx])
			}
		}
		if len(buf) == 0 {
			continue
		}
		m := trimmedMean(buf)
		sectorMean[k] = m
		haveSector[k] = true
		globalSum += m
		globalCount++
	}

	if globalCount == 0 {
		return false, fmt.Errorf("calibrator: calibration run produced zero usable samples")
	}

	globalMean := globalSum / float32(globalCount)
	lut := c.lutFor(c.calDir)
	for k := 0; k < c.ppr; k++ {
		m := sectorMean[k]
		if !haveSector[k] || m <= 0 {
			m = globalMean
		}
		lut[k] = globalMean / m
	}
	c.rebuildPattern(c.calDir)
	if err := c.save(); err != nil {
		return false, err
	}
	return true, nil
}

// trimmedMean drops the single minimum and single maximum sample (when
// there are more than two) and averages the rest, limiting the influence
// of one-off outlier pulses without discarding a whole sector's data.
func trimmedMean(samples []float32) float32 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	if n <= 2 {
		var sum float32
		for _, v := range samples {
			sum += v
		}
		return sum / float32(n)
	}
	minIdx, maxIdx := 0, 0
	for i, v := range samples {
		if v < samples[minIdx] {
			minIdx = i
		}
		if v > samples[maxIdx] {
			maxIdx = i
		}
	}
	var sum float32
	var count int
	for i, v := range samples {
		if i == minIdx || i == maxIdx {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		// minIdx == maxIdx can't happen with n > 2 unless all samples are
		// equal; in that degenerate case every value is the mean anyway.
		return samples[0]
	}
	return sum / float32(count)
}

// FinishAlignmentIfReady checks whether the active alignment run has
// collected its target lap count and, if so, searches each completed lap
// for the circular shift that best matches that direction's pattern,
// takes a plurality vote across laps (falling back to the single
// best-scoring lap on a tie), persists the winning offset, and returns
// done=true with the winning offset and its L1 score. A run where every
// lap sums to zero aborts without touching the offset.
func (c *Calibrator) FinishAlignmentIfReady() (offset uint16, score float32, done bool, err error) {
	if !c.alignActive || c.alignLap < c.alignTarget {
		return 0, 0, false, nil
	}
	defer func() { c.alignActive = false }()

	pattern := c.patternFor(c.alignDir)
	votes := make(map[int]int)
	results := make([]lapResult, 0, c.alignTarget)

	normalized := make([]float32, c.ppr)
	for lap := 0; lap < c.alignTarget; lap++ {
		var sum float32
		for k := 0; k < c.ppr; k++ {
			sum += c.alignBuf[k*c.maxLaps+lap]
		}
		if sum <= 0 {
			continue
		}
		mean := sum / float32(c.ppr)
		for k := 0; k < c.ppr; k++ {
			normalized[k] = c.alignBuf[k*c.maxLaps+lap] / mean
		}

		bestShift := 0
		bestL1 := float32(math32.MaxFloat32)
		for shift := 0; shift < c.ppr; shift++ {
			var l1 float32
			for k := 0; k < c.ppr; k++ {
				l1 += math32.Abs(normalized[k] - pattern[(k+shift)%c.ppr])
			}
			if l1 < bestL1 {
				bestL1 = l1
				bestShift = shift
			}
		}
		results = append(results, lapResult{shift: bestShift, score: bestL1})
		votes[bestShift]++
	}

	if len(results) == 0 {
		return 0, 0, false, fmt.Errorf("calibrator: alignment run produced zero usable laps")
	}

	bestVotes := -1
	var winners []int
	for shift, n := range votes {
		switch {
		case n > bestVotes:
			bestVotes = n
			winners = []int{shift}
		case n == bestVotes:
			winners = append(winners, shift)
		}
	}

	var chosenShift int
	var chosenScore float32
	if len(winners) == 1 {
		chosenShift = winners[0]
		chosenScore = bestScoreForShift(results, chosenShift)
	} else {
		best := results[0]
		for _, r := range results[1:] {
			if r.score < best.score {
				best = r
			}
		}
		chosenShift = best.shift
		chosenScore = best.score
	}

	c.setOffset(c.alignDir, uint16(chosenShift))
	if err := c.save(); err != nil {
		return 0, 0, false, err
	}
	return uint16(chosenShift), chosenScore, true, nil
}

// lapResult is one lap's best-matching shift and its L1 score.
type lapResult struct {
	shift int
	score float32
}

func bestScoreForShift(results []lapResult, shift int) float32 {
	best := float32(math32.MaxFloat32)
	for _, r := range results {
		if r.shift == shift && r.score < best {
			best = r.score
		}
	}
	return best
}
