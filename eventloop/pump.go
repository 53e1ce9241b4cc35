package eventloop

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-wlpacer/delayq"
	"github.com/joeycumines/go-wlpacer/notify"
	"github.com/joeycumines/go-wlpacer/vsync"
	"github.com/joeycumines/logiface"
)

// poller slots, in handling order. Extra sources follow slotSources.
const (
	slotKeyRepeat = iota
	slotTaskWake
	slotDeadline
	slotVsync
	slotDisplay
	slotSources
)

// Pump is the render/event pump. See the package documentation.
type Pump struct { // betteralign:ignore
	// Prevent copying
	_ [0]func()

	display   Display
	engine    Engine
	presenter Presenter
	repeat    RepeatHandler
	keyTimer  RepeatTimer
	sources   []Source

	bridge   *vsync.Bridge
	tasks    *delayq.Queue[HostTask]
	vsyncCh  *notify.Channel
	taskWake *notify.Event
	deadline *notify.Timer

	logger  *logiface.Logger[logiface.Event]
	metrics *Metrics
	now     func() uint64

	state *FastState

	failure error
	failMu  sync.Mutex

	stopOnce  sync.Once
	closeOnce sync.Once

	// Loop termination signaling
	loopDone chan struct{}

	loopGoroutineID atomic.Uint64

	// task batch buffer, reused across drains
	taskBuf []delayq.Task[HostTask]

	poller poller

	deadlineAt    uint64
	deadlineArmed bool
}

// New creates a pump servicing display on behalf of engine. The returned
// pump owns its notification descriptors, which are released when Run
// returns, or by Close.
func New(display Display, engine Engine, opts ...LoopOption) (*Pump, error) {
	if display == nil || engine == nil {
		return nil, Fatal(KindSetup, errors.New("eventloop: display and engine are required"))
	}
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, Fatal(KindSetup, err)
	}

	p := &Pump{
		display:   display,
		engine:    engine,
		presenter: cfg.presenter,
		repeat:    cfg.repeatHandler,
		keyTimer:  cfg.repeatTimer,
		sources:   cfg.sources,
		logger:    cfg.logger,
		now:       cfg.now,
		state:     NewFastState(),
		loopDone:  make(chan struct{}),
	}
	if p.now == nil {
		p.now = notify.MonotonicNanos
	}
	if cfg.metricsEnabled {
		p.metrics = &Metrics{}
	}

	if err := p.init(cfg.clock); err != nil {
		p.closeFDs()
		return nil, Fatal(KindSetup, err)
	}
	return p, nil
}

func (p *Pump) init(clock *vsync.Clock) (err error) {
	if p.vsyncCh, err = notify.NewChannel(); err != nil {
		return err
	}
	if p.taskWake, err = notify.NewEvent(); err != nil {
		return err
	}
	if p.deadline, err = notify.NewTimer(); err != nil {
		return err
	}

	p.bridge = vsync.NewBridge(
		p.vsyncCh,
		clock,
		vsync.WithLogger(p.logger),
		vsync.WithFatal(func(err error) { p.Fail(Fatal(KindProtocol, err)) }),
		vsync.WithNow(p.now),
	)
	p.tasks = delayq.New[HostTask](
		delayq.WithLogger(p.logger),
		delayq.WithWake(func() { _ = p.taskWake.Signal() }),
	)

	if err = p.poller.init(slotSources + len(p.sources)); err != nil {
		return err
	}
	if p.keyTimer != nil {
		if err = p.poller.register(slotKeyRepeat, p.keyTimer.Fd(), EventRead); err != nil {
			return err
		}
	}
	if err = p.poller.register(slotTaskWake, p.taskWake.Fd(), EventRead); err != nil {
		return err
	}
	if err = p.poller.register(slotDeadline, p.deadline.Fd(), EventRead); err != nil {
		return err
	}
	if err = p.poller.register(slotVsync, p.vsyncCh.Fd(), EventRead); err != nil {
		return err
	}
	if err = p.poller.register(slotDisplay, p.display.Fd(), EventRead); err != nil {
		return err
	}
	for i, source := range p.sources {
		if err = p.poller.register(slotSources+i, source.Fd(), EventRead); err != nil {
			return err
		}
	}
	return nil
}

// Bridge returns the vsync bridge, e.g. for presentation feedback.
func (p *Pump) Bridge() *vsync.Bridge { return p.bridge }

// Clock returns the frame clock.
func (p *Pump) Clock() *vsync.Clock { return p.bridge.Clock() }

// Tasks returns the delayed task queue.
func (p *Pump) Tasks() *delayq.Queue[HostTask] { return p.tasks }

// Now returns the pump's CLOCK_MONOTONIC time, in ns.
func (p *Pump) Now() uint64 { return p.now() }

// State returns the current lifecycle state.
func (p *Pump) State() LoopState { return p.state.Load() }

// Metrics returns a snapshot of the pacing metrics, or nil if metrics were
// not enabled.
func (p *Pump) Metrics() *Snapshot {
	if p.metrics == nil {
		return nil
	}
	s := p.metrics.Snapshot()
	return &s
}

// RequestVsync deposits a vsync token, to be answered on the next pass of
// the loop. A second request while one is outstanding is a protocol
// violation, which stops the pump. Safe to call from any goroutine.
func (p *Pump) RequestVsync(token uintptr) error {
	if p.state.Stopping() {
		return ErrLoopTerminated
	}
	return p.bridge.Deposit(token)
}

// PostTask schedules task to run at fireTime (CLOCK_MONOTONIC ns). Tasks
// run in fire time order, FIFO among equal fire times. Safe to call from
// any goroutine.
func (p *Pump) PostTask(task HostTask, fireTime uint64) error {
	if p.state.Load() == StateTerminated {
		return ErrLoopTerminated
	}
	p.tasks.Post(task, fireTime)
	return nil
}

// PostTaskAfter schedules task to run after delay.
func (p *Pump) PostTaskAfter(task HostTask, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	fireTime := p.now() + uint64(delay)
	if fireTime < uint64(delay) {
		fireTime = math.MaxUint64
	}
	return p.PostTask(task, fireTime)
}

// RunsTasksOnCurrentThread reports whether the caller is the pump
// goroutine.
func (p *Pump) RunsTasksOnCurrentThread() bool {
	return p.isLoopThread()
}

// Fail reports an unrecoverable error, stopping the pump. Only the first
// reported error is kept, and returned by Run. Safe to call from any
// goroutine, including from within collaborators.
func (p *Pump) Fail(err error) {
	if err == nil {
		return
	}
	p.failMu.Lock()
	first := p.failure == nil
	if first {
		p.failure = err
	}
	p.failMu.Unlock()

	if first {
		p.logger.Err().
			Err(err).
			Log("eventloop: fatal error, stopping")
	}
	p.requestStop()
}

// Err returns the error reported via Fail, if any.
func (p *Pump) Err() error {
	p.failMu.Lock()
	defer p.failMu.Unlock()
	return p.failure
}

// Run runs the pump on the calling goroutine, locking it to its OS thread,
// until the display becomes invalid (returning nil), Shutdown is called
// (nil), ctx is cancelled (ctx.Err()), or a fatal error is reported (that
// error).
func (p *Pump) Run(ctx context.Context) error {
	if p.isLoopThread() {
		return ErrReentrantRun
	}

	if !p.state.TryTransition(StateAwake, StateRunning) {
		switch p.state.Load() {
		case StateTerminated, StateTerminating:
			if err := p.Err(); err != nil {
				return err
			}
			return ErrLoopTerminated
		default:
			return ErrLoopAlreadyRunning
		}
	}

	// Close loopDone when run exits to signal completion to Shutdown waiters
	defer close(p.loopDone)

	return p.run(ctx)
}

// Shutdown stops the pump, waiting until Run has returned or ctx expires.
func (p *Pump) Shutdown(ctx context.Context) error {
	var result error
	p.stopOnce.Do(func() {
		result = p.shutdownImpl(ctx)
	})
	return result
}

func (p *Pump) shutdownImpl(ctx context.Context) error {
	if from, ok := p.requestStop(); ok && from == StateAwake {
		return nil
	}
	select {
	case <-p.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the pump without waiting. A pump that was never run has its
// descriptors released immediately.
func (p *Pump) Close() error {
	if p.state.IsTerminal() {
		return ErrLoopTerminated
	}
	p.requestStop()
	return nil
}

// requestStop moves the pump towards Terminated, waking it if required.
func (p *Pump) requestStop() (LoopState, bool) {
	from, ok := p.state.TransitionAny([]LoopState{StateAwake, StateRunning, StateSleeping}, StateTerminating)
	if !ok {
		return from, false
	}
	if from == StateAwake {
		// Run can no longer start, so it will never close loopDone
		p.state.Store(StateTerminated)
		p.closeFDs()
		close(p.loopDone)
		return from, true
	}
	p.wakeup()
	return from, true
}

func (p *Pump) wakeup() {
	if err := p.taskWake.Signal(); err != nil && !errors.Is(err, notify.ErrClosed) {
		p.logger.Warning().
			Err(err).
			Log("eventloop: wake-up failed")
	}
}

// run is the main loop goroutine.
func (p *Pump) run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	p.loopGoroutineID.Store(getGoroutineID())
	defer p.loopGoroutineID.Store(0)

	// wake the loop on cancellation
	ctxDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			p.requestStop()
		case <-ctxDone:
		}
	}()
	defer close(ctxDone)

	defer p.shutdown()

	p.logger.Debug().
		Int("display_fd", p.display.Fd()).
		Int("sources", len(p.sources)).
		Log("eventloop: running")

	for {
		if err := ctx.Err(); err != nil {
			p.requestStop()
			if failure := p.Err(); failure != nil {
				return failure
			}
			return err
		}
		if p.state.Stopping() {
			return p.Err()
		}
		if !p.display.Valid() {
			p.logger.Info().Log("eventloop: display no longer valid, stopping")
			return p.Err()
		}

		if err := p.iterate(); err != nil {
			p.Fail(err)
		}
	}
}

func (p *Pump) shutdown() {
	p.state.Store(StateTerminated)
	p.closeFDs()
}

// iterate runs one pass of the loop, see the package documentation.
func (p *Pump) iterate() error {
	if p.metrics != nil {
		p.metrics.iterations.Add(1)
	}

	for !p.display.PrepareRead() {
		if err := p.display.DispatchPending(); err != nil {
			return Fatal(KindProtocol, fmt.Errorf("eventloop: dispatch pending: %w", err))
		}
	}

	if err := p.display.Flush(); err != nil {
		p.display.CancelRead()
		return Fatal(KindIO, fmt.Errorf("eventloop: flush: %w", err))
	}

	for {
		if err := p.runExpiredTasks(); err != nil {
			p.display.CancelRead()
			return err
		}

		if p.state.Stopping() {
			p.display.CancelRead()
			return nil
		}

		if err := p.wait(); err != nil {
			p.display.CancelRead()
			return err
		}

		if p.keyTimer != nil && p.poller.readable(slotKeyRepeat) {
			if err := p.handleKeyRepeat(); err != nil {
				p.display.CancelRead()
				return err
			}
		}

		if p.poller.readable(slotTaskWake) {
			if _, err := p.taskWake.Drain(); err != nil {
				p.display.CancelRead()
				return Fatal(KindIO, err)
			}
		}

		if p.poller.readable(slotDeadline) {
			if _, err := p.deadline.Expirations(); err != nil {
				p.display.CancelRead()
				return Fatal(KindIO, err)
			}
			p.deadlineArmed = false
		}

		for i, source := range p.sources {
			if !p.poller.readable(slotSources + i) {
				continue
			}
			if err := source.Handle(); err != nil {
				p.display.CancelRead()
				return Fatal(KindIO, err)
			}
		}

		if p.poller.readable(slotVsync) {
			if err := p.handleVsync(); err != nil {
				p.display.CancelRead()
				return err
			}
			continue
		}

		displayEvents := p.poller.ready[slotDisplay]
		if displayEvents&EventRead != 0 {
			if err := p.display.ReadEvents(); err != nil {
				return Fatal(KindIO, fmt.Errorf("eventloop: read events: %w", err))
			}
		} else {
			p.display.CancelRead()
			if displayEvents&(EventError|EventHangup) != 0 {
				return Fatal(KindIO, ErrDisplayLost)
			}
		}

		break
	}

	if err := p.display.DispatchPending(); err != nil {
		return Fatal(KindProtocol, fmt.Errorf("eventloop: dispatch pending: %w", err))
	}
	return nil
}

// wait blocks until any descriptor is ready. It returns without waiting
// (and with no readiness) if the pump is stopping.
func (p *Pump) wait() error {
	if !p.state.TryTransition(StateRunning, StateSleeping) {
		clear(p.poller.ready)
		return nil
	}
	_, err := p.poller.wait(-1)
	p.state.TryTransition(StateSleeping, StateRunning)
	if err != nil {
		return Fatal(KindIO, err)
	}
	return nil
}

func (p *Pump) handleKeyRepeat() error {
	n, err := p.keyTimer.Expired()
	if err != nil {
		return Fatal(KindIO, err)
	}
	if n == 0 {
		return nil
	}
	if p.metrics != nil {
		p.metrics.keyRepeats.Add(1)
	}
	if err := p.repeat.RepeatKey(); err != nil {
		p.logger.Warning().
			Err(err).
			Log("eventloop: key repeat failed")
	}
	return nil
}

func (p *Pump) handleVsync() error {
	if err := p.vsyncCh.Receive(); err != nil {
		return Fatal(KindIO, fmt.Errorf("eventloop: vsync notification: %w", err))
	}

	if p.presenter != nil && p.presenter.RequestFeedback() {
		if err := p.display.DispatchPending(); err != nil {
			return Fatal(KindProtocol, fmt.Errorf("eventloop: dispatch pending: %w", err))
		}
	}

	token, ok := p.bridge.Take()
	if !ok {
		if p.metrics != nil {
			p.metrics.spuriousWakes.Add(1)
		}
		p.logger.Debug().Log("eventloop: vsync notification without a token")
		return nil
	}

	// read before OnVsync, which may lead to the next deposit
	depositedAt := p.bridge.DepositedAt()
	now := p.now()
	start, end := p.bridge.ComputeWindow(now)

	p.logger.Trace().
		Uint64("token", uint64(token)).
		Uint64("now", now).
		Uint64("start", start).
		Uint64("end", end).
		Log("eventloop: answering vsync")

	if err := p.engine.OnVsync(token, start, end); err != nil {
		return Fatal(KindProtocol, fmt.Errorf("%w: token %#x: %w", ErrVsyncFailed, token, err))
	}

	if p.metrics != nil {
		p.metrics.vsyncs.Add(1)
		if depositedAt != 0 && now >= depositedAt {
			p.metrics.VsyncLatency.Record(time.Duration(now - depositedAt))
		}
	}
	return nil
}

// runExpiredTasks runs every task due by now, then re-arms the deadline
// timer for the earliest remaining task. Tasks posted while running are
// left for the next pass.
func (p *Pump) runExpiredTasks() error {
	now := p.now()
	p.taskBuf = p.tasks.AppendExpired(p.taskBuf[:0], now)
	for i := range p.taskBuf {
		p.runTask(p.taskBuf[i], now)
		p.taskBuf[i] = delayq.Task[HostTask]{}
	}
	return p.armDeadline()
}

func (p *Pump) runTask(task delayq.Task[HostTask], now uint64) {
	if p.metrics != nil {
		p.metrics.tasks.Add(1)
		if now >= task.FireTime {
			p.metrics.TaskLateness.Record(time.Duration(now - task.FireTime))
		}
	}
	if err := p.safeExecute(task.Payload); err != nil {
		p.logger.Err().
			Err(err).
			Uint64("seq", task.Seq).
			Uint64("task_id", task.Payload.ID).
			Log("eventloop: task failed")
	}
}

// safeExecute runs a task with panic recovery.
func (p *Pump) safeExecute(task HostTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r}
		}
	}()
	return p.engine.RunTask(task)
}

func (p *Pump) armDeadline() error {
	next, ok := p.tasks.NextDeadline()
	if !ok {
		if p.deadlineArmed {
			if err := p.deadline.Disarm(); err != nil {
				return Fatal(KindIO, err)
			}
			p.deadlineArmed = false
		}
		return nil
	}
	if p.deadlineArmed && p.deadlineAt == next {
		return nil
	}
	if err := p.deadline.ArmAt(next); err != nil {
		return Fatal(KindIO, err)
	}
	p.deadlineAt = next
	p.deadlineArmed = true
	return nil
}

// closeFDs closes the descriptors owned by the pump.
func (p *Pump) closeFDs() {
	p.closeOnce.Do(func() {
		_ = p.poller.close()
		if p.vsyncCh != nil {
			_ = p.vsyncCh.Close()
		}
		if p.taskWake != nil {
			_ = p.taskWake.Close()
		}
		if p.deadline != nil {
			_ = p.deadline.Close()
		}
	})
}

// isLoopThread checks if we're on the loop goroutine.
func (p *Pump) isLoopThread() bool {
	loopID := p.loopGoroutineID.Load()
	if loopID == 0 {
		return false
	}
	return getGoroutineID() == loopID
}

// getGoroutineID returns the current goroutine's ID.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
