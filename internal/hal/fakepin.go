package hal

import "sync"

// FakePin is an in-memory Pin used by unit tests. Trigger simulates a
// hardware edge by invoking the armed callback synchronously, standing in
// for the ISR the real peripheral would run.
type FakePin struct {
	num int

	mu       sync.Mutex
	value    bool
	change   PinChange
	callback func(Pin)
}

// NewFakePin creates a FakePin. num is cosmetic, matching the
// pin-number-first convention of the platform constructors.
func NewFakePin(num int) *FakePin {
	return &FakePin{num: num}
}

func (p *FakePin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

func (p *FakePin) Set(value bool) {
	p.mu.Lock()
	p.value = value
	p.mu.Unlock()
}

func (p *FakePin) SetInterrupt(change PinChange, callback func(Pin)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.change = change
	p.callback = callback
	return nil
}

// Trigger simulates an edge of the given direction (true = rising, false =
// falling) and invokes the armed callback if it matches the configured
// PinChange.
func (p *FakePin) Trigger(rising bool) {
	p.mu.Lock()
	p.value = rising
	change := p.change
	cb := p.callback
	p.mu.Unlock()

	edge := PinFalling
	if rising {
		edge = PinRising
	}
	if cb != nil && change&edge != 0 {
		cb(p)
	}
}
