package eventloop

import (
	"errors"
	"sync"
)

// maxFDLimit is the maximum FD value we support for dynamic growth.
const maxFDLimit = 100000000

// initialFDs is the initial size of the fd table, indexed by fd.
const initialFDs = 1024

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
	ErrFDOutOfRange        = errors.New("eventloop: fd out of range (max 100000000)")
	ErrFDAlreadyRegistered = errors.New("eventloop: fd already registered")
	ErrFDNotRegistered     = errors.New("eventloop: fd not registered")
	ErrPollerClosed        = errors.New("eventloop: poller closed")
)

// IOCallback is the callback type for I/O events.
type IOCallback func(IOEvents)

// fdInfo stores per-FD callback information.
type fdInfo struct {
	callback IOCallback
	events   IOEvents
	active   bool
}

// fdTable is the platform independent part of the poller: callbacks indexed
// by fd, guarded by a RWMutex, so registration is safe from any goroutine.
type fdTable struct {
	fds  []fdInfo
	fdMu sync.RWMutex
}

// add stores the registration, returning a rollback func.
func (t *fdTable) add(fd int, events IOEvents, cb IOCallback) (func(), error) {
	if fd < 0 || fd >= maxFDLimit {
		return nil, ErrFDOutOfRange
	}

	t.fdMu.Lock()
	defer t.fdMu.Unlock()

	// Grow slice if necessary
	if fd >= len(t.fds) {
		newSize := max(fd*2+1, initialFDs)
		if newSize > maxFDLimit {
			newSize = maxFDLimit + 1
		}
		newFds := make([]fdInfo, newSize)
		copy(newFds, t.fds)
		t.fds = newFds
	}

	if t.fds[fd].active {
		return nil, ErrFDAlreadyRegistered
	}

	t.fds[fd] = fdInfo{callback: cb, events: events, active: true}

	return func() {
		t.fdMu.Lock()
		t.fds[fd] = fdInfo{}
		t.fdMu.Unlock()
	}, nil
}

// remove clears the registration, returning the events it was registered for.
func (t *fdTable) remove(fd int) (IOEvents, error) {
	if fd < 0 {
		return 0, ErrFDOutOfRange
	}
	t.fdMu.Lock()
	defer t.fdMu.Unlock()
	if fd >= len(t.fds) || !t.fds[fd].active {
		return 0, ErrFDNotRegistered
	}
	events := t.fds[fd].events
	t.fds[fd] = fdInfo{}
	return events, nil
}

// modify swaps the registered events, returning the old ones.
func (t *fdTable) modify(fd int, events IOEvents) (IOEvents, error) {
	if fd < 0 {
		return 0, ErrFDOutOfRange
	}
	t.fdMu.Lock()
	defer t.fdMu.Unlock()
	if fd >= len(t.fds) || !t.fds[fd].active {
		return 0, ErrFDNotRegistered
	}
	old := t.fds[fd].events
	t.fds[fd].events = events
	return old, nil
}

// lookup copies the registration under the read lock. Callbacks are always
// run outside the lock, meaning a callback may run once after UnregisterFD
// returns, if the event was already collected.
func (t *fdTable) lookup(fd int) (info fdInfo) {
	t.fdMu.RLock()
	if fd >= 0 && fd < len(t.fds) {
		info = t.fds[fd]
	}
	t.fdMu.RUnlock()
	return
}

// RegisterFD registers a file descriptor for I/O monitoring. The callback runs
// on the loop, within RunOnce. Registered fds keep the loop alive.
//
// Always call UnregisterFD before closing a file descriptor, to prevent stale
// event delivery due to FD recycling.
func (l *Loop) RegisterFD(fd int, events IOEvents, callback IOCallback) error {
	if l.state.Load() == StateTerminated {
		return ErrLoopTerminated
	}
	if err := l.poller.RegisterFD(fd, events, callback); err != nil {
		return err
	}
	l.fdCount.Add(1)
	return nil
}

// UnregisterFD removes a file descriptor from monitoring.
func (l *Loop) UnregisterFD(fd int) error {
	if err := l.poller.UnregisterFD(fd); err != nil {
		return err
	}
	l.fdCount.Add(-1)
	return nil
}

// ModifyFD updates the events being monitored for a file descriptor.
func (l *Loop) ModifyFD(fd int, events IOEvents) error {
	return l.poller.ModifyFD(fd, events)
}
