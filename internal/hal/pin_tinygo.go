//go:build tinygo

package hal

import "machine"

// PinChange mirrors machine.PinChange so callers never import "machine"
// directly outside of this file.
type PinChange = machine.PinChange

const (
	PinFalling = machine.PinFalling
	PinRising  = machine.PinRising
	PinToggle  = machine.PinToggle
)

// MachinePin adapts machine.Pin to the Pin interface.
type MachinePin struct {
	p machine.Pin
}

// NewPin wraps a configured machine.Pin.
func NewPin(p machine.Pin) *MachinePin {
	return &MachinePin{p: p}
}

func (m *MachinePin) Get() bool { return m.p.Get() }

func (m *MachinePin) Set(value bool) { m.p.Set(value) }

func (m *MachinePin) SetInterrupt(change PinChange, callback func(Pin)) error {
	if callback == nil {
		return m.p.SetInterrupt(change, nil)
	}
	return m.p.SetInterrupt(change, func(machine.Pin) {
		callback(m)
	})
}
