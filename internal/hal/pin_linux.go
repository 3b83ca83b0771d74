//go:build !tinygo && linux

package hal

import (
	"context"
	"fmt"
	"os"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
)

// PinChange represents one or more trigger edges for SetInterrupt.
type PinChange uint8

const (
	PinFalling PinChange = 4 << iota
	PinRising
	PinToggle = PinFalling | PinRising
)

var edgeNames = map[PinChange]string{
	PinToggle:  "both",
	PinRising:  "rising",
	PinFalling: "falling",
}

// SysfsPin implements Pin using the Linux sysfs GPIO interface. It exists
// for off-target bring-up and integration testing; production firmware
// bring-up of the real peripheral is out of this module's scope.
//
// Unlike a bare edge-notifier, a SysfsPin logs every poll failure through
// its injected logger rather than dropping it: on an encoder line, a
// silently-dying interrupt goroutine reads as a stalled wheel, which
// corrupts calibration and alignment runs in a way that's hard to
// distinguish from "motor not spinning" without the log line.
type SysfsPin struct {
	pinNum int
	value  *os.File
	log    zerolog.Logger

	mu       sync.Mutex
	callback func(Pin)
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewPin opens an already-exported sysfs GPIO pin.
func NewPin(pinNum int, log zerolog.Logger) (*SysfsPin, error) {
	valuePath := fmt.Sprintf("/sys/class/gpio/gpio%d/value", pinNum)
	value, err := os.OpenFile(valuePath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open gpio %d: %w (ensure pin is exported)", pinNum, err)
	}
	return &SysfsPin{
		pinNum: pinNum,
		value:  value,
		log:    log.With().Int("gpio", pinNum).Logger(),
	}, nil
}

func (p *SysfsPin) Get() bool {
	buf := make([]byte, 1)
	if _, err := p.value.ReadAt(buf, 0); err != nil {
		p.log.Warn().Err(err).Msg("read gpio value")
		return false
	}
	return buf[0] == '1'
}

func (p *SysfsPin) Set(value bool) {
	b := byte('0')
	if value {
		b = '1'
	}
	if _, err := p.value.WriteAt([]byte{b}, 0); err != nil {
		p.log.Warn().Err(err).Msg("write gpio value")
	}
}

func (p *SysfsPin) SetInterrupt(change PinChange, callback func(Pin)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
		<-p.done
		p.cancel = nil
		p.done = nil
	}

	if callback == nil {
		return p.writeEdge("none")
	}

	edge, ok := edgeNames[change]
	if !ok {
		return fmt.Errorf("invalid PinChange value: %d", change)
	}
	if err := p.writeEdge(edge); err != nil {
		return err
	}

	p.callback = callback
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.interruptLoop(ctx, p.done)
	return nil
}

func (p *SysfsPin) writeEdge(edge string) error {
	edgePath := fmt.Sprintf("/sys/class/gpio/gpio%d/edge", p.pinNum)
	if err := os.WriteFile(edgePath, []byte(edge), 0); err != nil {
		return fmt.Errorf("set edge trigger for gpio %d: %w", p.pinNum, err)
	}
	return nil
}

// interruptLoop polls the sysfs value fd for edge events via epoll until
// ctx is cancelled, invoking the armed callback once per wakeup.
func (p *SysfsPin) interruptLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	epfd, err := syscall.EpollCreate1(0)
	if err != nil {
		p.log.Error().Err(err).Msg("epoll_create1")
		return
	}
	defer syscall.Close(epfd)

	fd := int(p.value.Fd())
	events := uint32(syscall.EPOLLIN | syscall.EPOLLET | syscall.EPOLLPRI)
	if err := syscall.EpollCtl(epfd, syscall.EPOLL_CTL_ADD, fd, &syscall.EpollEvent{Events: events, Fd: int32(fd)}); err != nil {
		p.log.Error().Err(err).Msg("epoll_ctl add")
		return
	}

	readBuf := make([]byte, 1)
	epollEvents := make([]syscall.EpollEvent, 1)

	for {
		if ctx.Err() != nil {
			return
		}
		n, err := syscall.EpollWait(epfd, epollEvents, 100)
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			p.log.Error().Err(err).Msg("epoll_wait")
			return
		}
		if n == 0 {
			continue
		}
		if _, err := p.value.ReadAt(readBuf, 0); err != nil {
			p.log.Warn().Err(err).Msg("read gpio value after edge wakeup")
			continue
		}
		p.mu.Lock()
		cb := p.callback
		p.mu.Unlock()
		if cb != nil {
			cb(p)
		}
	}
}

// Close disarms the edge trigger and releases the underlying sysfs file.
func (p *SysfsPin) Close() error {
	p.mu.Lock()
	if p.cancel != nil {
		cancel, done := p.cancel, p.done
		p.mu.Unlock()
		cancel()
		<-done
		p.mu.Lock()
		p.cancel = nil
		p.done = nil
	}
	p.mu.Unlock()

	if err := p.writeEdge("none"); err != nil {
		p.log.Warn().Err(err).Msg("disarm edge trigger on close")
	}
	return p.value.Close()
}
