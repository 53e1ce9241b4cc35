//go:build linux

package notify

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func readable(t *testing.T, fd int, timeout time.Duration) bool {
	t.Helper()
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, int(timeout/time.Millisecond))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			t.Fatal(err)
		}
		return n > 0 && fds[0].Revents&unix.POLLIN != 0
	}
}

func TestChannel_oneReceivePerSend(t *testing.T) {
	c, err := NewChannel()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if readable(t, c.Fd(), 0) {
		t.Fatal("expected fresh channel to be empty")
	}

	const sends = 3
	for i := 0; i < sends; i++ {
		if err := c.Send(); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < sends; i++ {
		if !readable(t, c.Fd(), time.Second) {
			t.Fatalf("receive %d: not readable", i)
		}
		if err := c.Receive(); err != nil {
			t.Fatalf("receive %d: %v", i, err)
		}
	}
	if readable(t, c.Fd(), 0) {
		t.Error("expected channel drained")
	}
	if err := c.Receive(); !errors.Is(err, unix.EAGAIN) {
		t.Errorf("expected EAGAIN on empty receive, got %v", err)
	}
}

func TestChannel_closed(t *testing.T) {
	c, err := NewChannel()
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if err := c.Send(); !errors.Is(err, ErrClosed) {
		t.Errorf("send after close: %v", err)
	}
	if err := c.Receive(); !errors.Is(err, ErrClosed) {
		t.Errorf("receive after close: %v", err)
	}
}

func TestEvent_signalsCoalesce(t *testing.T) {
	e, err := NewEvent()
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if n, err := e.Drain(); err != nil || n != 0 {
		t.Fatalf("drain of idle event: %d, %v", n, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.Signal(); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if !readable(t, e.Fd(), time.Second) {
		t.Fatal("expected event readable")
	}
	n, err := e.Drain()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected coalesced count 1, got %d", n)
	}
	if readable(t, e.Fd(), 0) {
		t.Error("expected event drained")
	}

	// signalling after a drain must wake again
	if err := e.Signal(); err != nil {
		t.Fatal(err)
	}
	if !readable(t, e.Fd(), time.Second) {
		t.Fatal("expected event readable after drain")
	}
}

func TestTimer_armDisarm(t *testing.T) {
	tm, err := NewTimer()
	if err != nil {
		t.Fatal(err)
	}
	defer tm.Close()

	if err := tm.Arm(50*time.Millisecond, 0); err != nil {
		t.Fatal(err)
	}
	if err := tm.Disarm(); err != nil {
		t.Fatal(err)
	}
	if readable(t, tm.Fd(), 100*time.Millisecond) {
		t.Error("disarmed timer fired")
	}
	if n, err := tm.Expirations(); err != nil || n != 0 {
		t.Errorf("expected no expirations, got %d, %v", n, err)
	}
}

func TestTimer_periodic(t *testing.T) {
	tm, err := NewTimer()
	if err != nil {
		t.Fatal(err)
	}
	defer tm.Close()

	if err := tm.Arm(time.Millisecond, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	n, err := tm.Expirations()
	if err != nil {
		t.Fatal(err)
	}
	if n < 2 {
		t.Errorf("expected several expirations, got %d", n)
	}
}

func TestTimer_armAtPast(t *testing.T) {
	tm, err := NewTimer()
	if err != nil {
		t.Fatal(err)
	}
	defer tm.Close()

	for _, deadline := range []uint64{0, MonotonicNanos() - uint64(time.Millisecond)} {
		if err := tm.ArmAt(deadline); err != nil {
			t.Fatal(err)
		}
		if !readable(t, tm.Fd(), time.Second) {
			t.Fatalf("deadline %d: expected immediate expiry", deadline)
		}
		if n, err := tm.Expirations(); err != nil || n != 1 {
			t.Fatalf("deadline %d: got %d, %v", deadline, n, err)
		}
	}
}

func TestTimer_armAtFar(t *testing.T) {
	tm, err := NewTimer()
	if err != nil {
		t.Fatal(err)
	}
	defer tm.Close()

	for _, deadline := range []uint64{math.MaxInt64, math.MaxInt64 + 1, math.MaxUint64} {
		if err := tm.ArmAt(deadline); err != nil {
			t.Fatalf("deadline %d: %v", deadline, err)
		}
		if readable(t, tm.Fd(), 10*time.Millisecond) {
			t.Fatalf("deadline %d: unexpected expiry", deadline)
		}
	}
}

func TestMonotonicNanos(t *testing.T) {
	a := MonotonicNanos()
	time.Sleep(time.Millisecond)
	b := MonotonicNanos()
	if b <= a {
		t.Errorf("clock went backwards: %d then %d", a, b)
	}
}
