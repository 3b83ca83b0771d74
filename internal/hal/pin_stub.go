//go:build !tinygo && !linux

package hal

// PinChange represents one or more trigger edges for SetInterrupt.
type PinChange uint8

const (
	PinFalling PinChange = 4 << iota
	PinRising
	PinToggle = PinFalling | PinRising
)

// NewPin returns a FakePin on platforms with no native GPIO backend (macOS,
// Windows, plain `go test`). Production firmware never reaches this path.
func NewPin(num int) *FakePin {
	return NewFakePin(num)
}
