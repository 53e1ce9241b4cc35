//go:build linux

package eventloop

import (
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// IOEvents represents the type of I/O events to monitor.
type IOEvents uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the file descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup
)

// Standard errors.
var (
	ErrFDOutOfRange        = errors.New("eventloop: fd out of range")
	ErrFDAlreadyRegistered = errors.New("eventloop: fd already registered")
	ErrSlotOutOfRange      = errors.New("eventloop: poller slot out of range")
	ErrPollerClosed        = errors.New("eventloop: poller closed")
)

// poller waits on a fixed set of descriptors, using epoll. Each descriptor
// is registered against a slot, and a wait reports readiness per slot, so
// the caller decides the order in which ready descriptors are handled.
//
// Only the pump goroutine may call wait. Slots are assigned before Run, so
// registration needs no locking.
type poller struct {
	ready    []IOEvents
	fds      []int
	eventBuf [16]unix.EpollEvent
	epfd     int
	closed   atomic.Bool
}

// init creates the epoll instance, with room for slots descriptors.
func (p *poller) init(slots int) error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("eventloop: epoll_create1: %w", err)
	}
	p.epfd = epfd
	p.ready = make([]IOEvents, slots)
	p.fds = make([]int, slots)
	for i := range p.fds {
		p.fds[i] = -1
	}
	return nil
}

// close closes the epoll instance. Registered descriptors are not closed.
func (p *poller) close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	if p.epfd > 0 {
		return unix.Close(p.epfd)
	}
	return nil
}

// register watches fd for events, reporting readiness against slot. Error
// and hangup conditions are always reported.
func (p *poller) register(slot, fd int, events IOEvents) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	if slot < 0 || slot >= len(p.fds) {
		return ErrSlotOutOfRange
	}
	if fd < 0 {
		return ErrFDOutOfRange
	}
	if p.fds[slot] >= 0 {
		return ErrFDAlreadyRegistered
	}
	// the slot is carried in the event data, in place of the fd
	ev := &unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(slot),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return fmt.Errorf("eventloop: epoll_ctl add fd %d: %w", fd, err)
	}
	p.fds[slot] = fd
	return nil
}

// wait blocks until at least one descriptor is ready, or timeoutMs elapses
// (-1 waits forever). Interrupted waits are retried. Readiness is left in
// p.ready, indexed by slot, cleared on every call.
func (p *poller) wait(timeoutMs int) (int, error) {
	clear(p.ready)
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}
	for {
		n, err := unix.EpollWait(p.epfd, p.eventBuf[:], timeoutMs)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("eventloop: epoll_wait: %w", err)
		}
		for i := 0; i < n; i++ {
			slot := int(p.eventBuf[i].Fd)
			if slot >= 0 && slot < len(p.ready) {
				p.ready[slot] |= epollToEvents(p.eventBuf[i].Events)
			}
		}
		return n, nil
	}
}

// readable reports whether slot was reported readable by the last wait.
func (p *poller) readable(slot int) bool {
	return p.ready[slot]&EventRead != 0
}

// eventsToEpoll converts IOEvents to epoll event flags.
func eventsToEpoll(events IOEvents) uint32 {
	var epollEvents uint32
	if events&EventRead != 0 {
		epollEvents |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		epollEvents |= unix.EPOLLOUT
	}
	return epollEvents
}

// epollToEvents converts epoll event flags to IOEvents.
func epollToEvents(epollEvents uint32) IOEvents {
	var events IOEvents
	if epollEvents&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if epollEvents&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if epollEvents&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if epollEvents&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
