package eventloop

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks pacing statistics for the pump. It is safe for concurrent
// use: the pump records, and any goroutine may take a Snapshot.
//
// Example:
//
//	pump, _ := New(display, engine, WithMetrics(true))
//	go pump.Run(ctx)
//	stats := pump.Metrics()
//	fmt.Printf("vsync P99: %v, task lateness P99: %v\n",
//		stats.VsyncLatency.P99, stats.TaskLateness.P99)
type Metrics struct {
	// VsyncLatency is the delay from a token's deposit to its answer.
	VsyncLatency LatencyMetrics

	// TaskLateness is the delay from a task's fire time to it being run.
	TaskLateness LatencyMetrics

	vsyncs        atomic.Uint64
	tasks         atomic.Uint64
	keyRepeats    atomic.Uint64
	spuriousWakes atomic.Uint64
	iterations    atomic.Uint64
}

// Snapshot is a point-in-time copy of [Metrics].
type Snapshot struct {
	VsyncLatency  LatencySnapshot
	TaskLateness  LatencySnapshot
	Vsyncs        uint64
	Tasks         uint64
	KeyRepeats    uint64
	SpuriousWakes uint64
	Iterations    uint64
}

// Snapshot computes the current percentiles and copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		VsyncLatency:  m.VsyncLatency.Sample(),
		TaskLateness:  m.TaskLateness.Sample(),
		Vsyncs:        m.vsyncs.Load(),
		Tasks:         m.tasks.Load(),
		KeyRepeats:    m.keyRepeats.Load(),
		SpuriousWakes: m.spuriousWakes.Load(),
		Iterations:    m.iterations.Load(),
	}
}

// LatencyMetrics tracks a latency distribution: exact percentiles over a
// rolling window of recent samples, and streaming estimates over every
// sample ever recorded.
type LatencyMetrics struct {
	lifetime    *pSquareMultiQuantile
	samples     [sampleSize]time.Duration
	sum         time.Duration
	sampleIdx   int
	sampleCount int
	mu          sync.Mutex
}

// LatencySnapshot holds the computed percentiles of a [LatencyMetrics].
type LatencySnapshot struct {
	P50  time.Duration
	P90  time.Duration
	P95  time.Duration
	P99  time.Duration
	Max  time.Duration
	Mean time.Duration

	// LifetimeP50 and LifetimeP99 are P-square estimates over all samples.
	LifetimeP50 time.Duration
	LifetimeP99 time.Duration

	// Window is the number of samples the exact percentiles were taken from.
	Window int
	// Count is the total number of samples recorded.
	Count int
}

// sampleSize is the maximum number of latency samples to retain.
const sampleSize = 1000

// Record records a latency sample.
func (l *LatencyMetrics) Record(duration time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lifetime == nil {
		l.lifetime = newPSquareMultiQuantile(0.50, 0.99)
	}
	l.lifetime.Update(float64(duration))

	// if buffer is full, subtract the old sample that we're replacing
	if l.sampleCount >= sampleSize {
		l.sum -= l.samples[l.sampleIdx]
	}

	l.samples[l.sampleIdx] = duration
	l.sum += duration
	l.sampleIdx++
	if l.sampleIdx >= sampleSize {
		l.sampleIdx = 0
	}
	if l.sampleCount < sampleSize {
		l.sampleCount++
	}
}

// Sample computes percentiles from the collected samples.
func (l *LatencyMetrics) Sample() LatencySnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.sampleCount
	if count == 0 {
		return LatencySnapshot{}
	}

	sorted := make([]time.Duration, count)
	copy(sorted, l.samples[:count])
	slices.Sort(sorted)

	return LatencySnapshot{
		P50:         sorted[percentileIndex(count, 50)],
		P90:         sorted[percentileIndex(count, 90)],
		P95:         sorted[percentileIndex(count, 95)],
		P99:         sorted[percentileIndex(count, 99)],
		Max:         sorted[count-1],
		Mean:        l.sum / time.Duration(count),
		LifetimeP50: time.Duration(l.lifetime.Quantile(0)),
		LifetimeP99: time.Duration(l.lifetime.Quantile(1)),
		Window:      count,
		Count:       l.lifetime.Count(),
	}
}

// percentileIndex computes the index for a given percentile (0-100).
func percentileIndex(n, p int) int {
	index := (p * n) / 100
	if index >= n {
		return n - 1
	}
	return index
}
