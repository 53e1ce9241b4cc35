//go:build linux

package notify

import (
	"errors"
	"runtime"

	"golang.org/x/sys/unix"
)

// Standard errors.
var (
	ErrClosed    = errors.New("notify: descriptor closed")
	ErrShortRead = errors.New("notify: short read")
)

// MonotonicNanos returns CLOCK_MONOTONIC in nanoseconds, the time base used
// for task fire times, presentation timestamps and absolute timer deadlines.
func MonotonicNanos() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		panic(err)
	}
	return uint64(ts.Nano())
}

// readFD reads, retrying on EINTR. EAGAIN is returned to the caller.
func readFD(fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Read(fd, buf)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

// writeFD writes, retrying on EINTR and EAGAIN. A non-blocking writer that
// reports EAGAIN yields before retrying, so the reader can make progress.
func writeFD(fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Write(fd, buf)
		switch err {
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			runtime.Gosched()
			continue
		}
		return n, err
	}
}

func closeFD(fd *int) error {
	if *fd < 0 {
		return nil
	}
	err := unix.Close(*fd)
	*fd = -1
	return err
}
