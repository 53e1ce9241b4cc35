// Package delayq implements a thread-safe queue of time-stamped tasks,
// ordered by fire time, then by posting order.
package delayq

import (
	"sync"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/joeycumines/logiface"
)

// Task is a payload scheduled to fire at FireTime (CLOCK_MONOTONIC ns). Seq
// is assigned by [Queue.Post], strictly increasing per queue.
type Task[T any] struct {
	Payload  T
	Seq      uint64
	FireTime uint64
}

// Queue is a min-ordered set of tasks. It is safe for concurrent use, Post
// being the only method intended to be called off the loop goroutine.
type Queue[T any] struct {
	wake   func()
	logger *logiface.Logger[logiface.Event]
	tree   *redblacktree.Tree
	mu     sync.Mutex
	seq    uint64
}

type key struct {
	fireTime uint64
	seq      uint64
}

// compare orders by fire time, ties broken FIFO by sequence.
func compare(a, b any) int {
	ka, kb := a.(key), b.(key)
	switch {
	case ka.fireTime < kb.fireTime:
		return -1
	case ka.fireTime > kb.fireTime:
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}

// New returns an empty queue.
func New[T any](opts ...Option) *Queue[T] {
	cfg := resolveOptions(opts)
	return &Queue[T]{
		wake:   cfg.wake,
		logger: cfg.logger,
		tree:   redblacktree.NewWith(compare),
	}
}

// Post schedules payload to fire at fireTime. It always succeeds. The wake
// hook, if any, is called after the lock has been released.
func (q *Queue[T]) Post(payload T, fireTime uint64) uint64 {
	q.mu.Lock()
	q.seq++
	seq := q.seq
	q.tree.Put(key{fireTime: fireTime, seq: seq}, Task[T]{Payload: payload, Seq: seq, FireTime: fireTime})
	size := q.tree.Size()
	q.mu.Unlock()

	q.logger.Trace().
		Uint64("seq", seq).
		Uint64("fire_time", fireTime).
		Int("size", size).
		Log("delayq: task posted")

	if q.wake != nil {
		q.wake()
	}
	return seq
}

// DrainExpired pops every task with FireTime <= now, in order.
func (q *Queue[T]) DrainExpired(now uint64) []Task[T] {
	return q.AppendExpired(nil, now)
}

// AppendExpired is [Queue.DrainExpired], appending to dst. Tasks are popped
// under the lock, and the lock is released before returning, so callers may
// run the tasks (which may Post) freely.
func (q *Queue[T]) AppendExpired(dst []Task[T], now uint64) []Task[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		node := q.tree.Left()
		if node == nil {
			break
		}
		k := node.Key.(key)
		if k.fireTime > now {
			break
		}
		dst = append(dst, node.Value.(Task[T]))
		q.tree.Remove(k)
	}
	return dst
}

// NextDeadline returns the fire time of the earliest task.
func (q *Queue[T]) NextDeadline() (uint64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	node := q.tree.Left()
	if node == nil {
		return 0, false
	}
	return node.Key.(key).fireTime, true
}

// Len returns the number of queued tasks.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tree.Size()
}
