package calibrator

// Legacy key names from a single-LUT predecessor layout: one shared table
// and one shared use flag instead of a forward/reverse pair. Load migrates
// these transparently the first time it finds no split keys.
const (
	legacyLUTKey = "lut"
	legacyUseKey = "use_lut"
)

// Load reads persisted LUTs, offsets and use flags from the store,
// deriving patterns from whatever LUTs result. Missing split keys fall
// back to the legacy single-LUT layout: the legacy table becomes
// s_fwd, s_rev stays at its neutral default; missing everything
// leaves the neutral defaults from New in place.
func (c *Calibrator) Load() error {
	fwd, fwdOK := c.store.GetFloat32s(c.key("lut_fwd"))
	rev, revOK := c.store.GetFloat32s(c.key("lut_rev"))

	if !fwdOK && !revOK {
		if legacy, ok := c.store.GetFloat32s(legacyLUTKey); ok && len(legacy) == c.ppr {
			fwd = append([]float32(nil), legacy...)
			fwdOK = true
		}
	}

	if fwdOK && len(fwd) == c.ppr {
		c.sFwd = fwd
	}
	if revOK && len(rev) == c.ppr {
		c.sRev = rev
	}
	c.rebuildPattern(Forward)
	c.rebuildPattern(Reverse)

	if off, ok := c.store.GetUint16(c.key("off_fwd")); ok {
		c.offFwd = off
	}
	if off, ok := c.store.GetUint16(c.key("off_rev")); ok {
		c.offRev = off
	}

	if v, ok := c.store.GetBool(c.key("use_fwd")); ok {
		c.useFwd = v
	} else if v, ok := c.store.GetBool(legacyUseKey); ok {
		c.useFwd = v
	}
	if v, ok := c.store.GetBool(c.key("use_rev")); ok {
		c.useRev = v
	} else if v, ok := c.store.GetBool(legacyUseKey); ok {
		c.useRev = v
	}

	return nil
}

// save persists both directions' LUTs, offsets and use flags. Called
// after every successful calibration or alignment run, and by Clear.
func (c *Calibrator) save() error {
	if err := c.store.SetFloat32s(c.key("lut_fwd"), c.sFwd); err != nil {
		return err
	}
	if err := c.store.SetFloat32s(c.key("lut_rev"), c.sRev); err != nil {
		return err
	}
	if err := c.store.SetUint16(c.key("off_fwd"), c.offFwd); err != nil {
		return err
	}
	if err := c.store.SetUint16(c.key("off_rev"), c.offRev); err != nil {
		return err
	}
	if err := c.store.SetBool(c.key("use_fwd"), c.useFwd); err != nil {
		return err
	}
	return c.store.SetBool(c.key("use_rev"), c.useRev)
}

// Clear resets both LUTs to neutral, both offsets to zero, and both use
// flags to false, then persists the reset state.
func (c *Calibrator) Clear() error {
	c.resetLUTs()
	c.offFwd = 0
	c.offRev = 0
	c.useFwd = false
	c.useRev = false
	return c.save()
}
