package eventloop

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// fakeDisplay models the display connection with a pipe: push queues a
// listener callback and makes the pipe readable, ReadEvents moves pushed
// callbacks to the dispatch queue.
type fakeDisplay struct {
	incoming    []func()
	queued      []func()
	r, w        int
	mu          sync.Mutex
	invalid     atomic.Bool
	prepared    atomic.Bool
	reads       atomic.Int32
	cancels     atomic.Int32
	flushes     atomic.Int32
	dispatches  atomic.Int32
	flushErr    error
	dispatchErr error
}

func newFakeDisplay(t *testing.T) *fakeDisplay {
	t.Helper()
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		t.Fatal(err)
	}
	d := &fakeDisplay{r: fds[0], w: fds[1]}
	t.Cleanup(func() {
		_ = unix.Close(d.r)
		_ = unix.Close(d.w)
	})
	return d
}

func (d *fakeDisplay) push(fn func()) {
	d.mu.Lock()
	d.incoming = append(d.incoming, fn)
	d.mu.Unlock()
	_, _ = unix.Write(d.w, []byte{1})
}

func (d *fakeDisplay) Fd() int { return d.r }

func (d *fakeDisplay) PrepareRead() bool {
	if len(d.queued) != 0 {
		return false
	}
	d.prepared.Store(true)
	return true
}

func (d *fakeDisplay) CancelRead() {
	d.prepared.Store(false)
	d.cancels.Add(1)
}

func (d *fakeDisplay) ReadEvents() error {
	d.prepared.Store(false)
	d.reads.Add(1)
	var buf [64]byte
	for {
		n, err := unix.Read(d.r, buf[:])
		if n <= 0 || err != nil {
			break
		}
	}
	d.mu.Lock()
	d.queued = append(d.queued, d.incoming...)
	d.incoming = nil
	d.mu.Unlock()
	return nil
}

func (d *fakeDisplay) DispatchPending() error {
	d.dispatches.Add(1)
	if d.dispatchErr != nil {
		return d.dispatchErr
	}
	queued := d.queued
	d.queued = nil
	for _, fn := range queued {
		fn()
	}
	return nil
}

func (d *fakeDisplay) Flush() error {
	d.flushes.Add(1)
	return d.flushErr
}

func (d *fakeDisplay) Valid() bool { return !d.invalid.Load() }

type vsyncCall struct {
	token      uintptr
	start, end uint64
}

type fakeEngine struct {
	onVsync func(token uintptr, start, end uint64) error
	onTask  func(task HostTask) error
	vsyncs  []vsyncCall
	tasks   []HostTask
	mu      sync.Mutex
}

func (e *fakeEngine) OnVsync(token uintptr, start, end uint64) error {
	e.mu.Lock()
	e.vsyncs = append(e.vsyncs, vsyncCall{token: token, start: start, end: end})
	fn := e.onVsync
	e.mu.Unlock()
	if fn != nil {
		return fn(token, start, end)
	}
	return nil
}

func (e *fakeEngine) RunTask(task HostTask) error {
	e.mu.Lock()
	e.tasks = append(e.tasks, task)
	fn := e.onTask
	e.mu.Unlock()
	if fn != nil {
		return fn(task)
	}
	return nil
}

func (e *fakeEngine) vsyncCalls() []vsyncCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]vsyncCall(nil), e.vsyncs...)
}

func (e *fakeEngine) taskIDs() []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]uint64, len(e.tasks))
	for i, task := range e.tasks {
		ids[i] = task.ID
	}
	return ids
}

// startPump runs p on a new goroutine, returning a channel receiving Run's
// result. The pump is shut down on cleanup.
func startPump(t *testing.T, p *Pump) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
	waitFor(t, time.Second, func() bool { return p.State() == StateSleeping })
	return done
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(time.Millisecond)
	}
}

func waitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Run to return")
		return nil
	}
}
