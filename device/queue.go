// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"errors"
	"time"
)

// Kernel identifies one compute kernel of the render pipeline. The set is
// shared by all backends; a backend translates the id to its own entry point.
type Kernel int

const (
	KernelIntegratorInit Kernel = iota
	KernelIntegratorIntersect
	KernelIntegratorShade
	KernelFilmAccumulate
	KernelFilmConvert
	KernelBake
	KernelDenoiseFilter
	KernelPrefixSum

	numKernels
)

// KernelCount is the number of kernel ids, useful for sizing tables.
const KernelCount = int(numKernels)

func (k Kernel) String() string {
	switch k {
	case KernelIntegratorInit:
		return "integrator_init"
	case KernelIntegratorIntersect:
		return "integrator_intersect"
	case KernelIntegratorShade:
		return "integrator_shade"
	case KernelFilmAccumulate:
		return "film_accumulate"
	case KernelFilmConvert:
		return "film_convert"
	case KernelBake:
		return "bake"
	case KernelDenoiseFilter:
		return "denoise_filter"
	case KernelPrefixSum:
		return "prefix_sum"
	}
	return "unknown"
}

// Args is the argument pack for one kernel dispatch. Buffers are referenced,
// not copied; they must stay alive until the dispatch has synchronized.
type Args struct {
	Buffers []*Buffer
	Ints    []int32
	Floats  []float32
}

// TimingStat accumulates execution statistics for one kernel over the queue
// lifetime. Counters are cumulative and never implicitly reset.
type TimingStat struct {
	TotalTime     time.Duration
	TotalWorkSize uint64
	NumDispatches uint64
}

// Throughput returns work items per second, or zero before any timed
// dispatch completed. Sessions use it as an adaptive batching signal.
func (s TimingStat) Throughput() float64 {
	if s.TotalTime <= 0 {
		return 0
	}
	return float64(s.TotalWorkSize) / s.TotalTime.Seconds()
}

// QueueState is the lifecycle phase of a queue's current command buffer.
type QueueState int

const (
	QueueIdle QueueState = iota
	QueueEncoding
	QueueSubmitted
	QueueCompleted
)

func (s QueueState) String() string {
	switch s {
	case QueueIdle:
		return "idle"
	case QueueEncoding:
		return "encoding"
	case QueueSubmitted:
		return "submitted"
	case QueueCompleted:
		return "completed"
	}
	return "unknown"
}

var (
	// ErrQueueExists is returned by Device.NewQueue while a previous queue
	// of the same device is still open.
	ErrQueueExists = errors.New("device: a queue is already active on this device")
	// ErrCaptureActive is returned by BeginCapture while a capture is
	// already running on the queue.
	ErrCaptureActive = errors.New("device: capture already in progress")
	// ErrQueueClosed is returned by operations on a closed queue.
	ErrQueueClosed = errors.New("device: queue is closed")
)

// Queue is an ordered command stream on one device. Commands accumulate in
// an open encoder; Synchronize is the only blocking operation and the only
// point where host-visible results are guaranteed. A queue is not safe for
// concurrent use; the render session serializes access.
type Queue interface {
	// InitExecution performs one-time backend setup and must be called
	// before the first Enqueue.
	InitExecution() error

	// Enqueue records a kernel dispatch over workSize items. It reports
	// false when the backend rejects the dispatch; no internal retry is
	// attempted.
	Enqueue(kernel Kernel, workSize int, args Args) bool

	// Synchronize submits the open encoder, blocks until the backend has
	// completed it and flushes timing samples into the stats table.
	Synchronize() error

	// ZeroToDevice, CopyToDevice and CopyFromDevice record transfers into
	// the stream; they order with dispatches and complete at Synchronize.
	ZeroToDevice(buf *Buffer) error
	CopyToDevice(buf *Buffer) error
	CopyFromDevice(buf *Buffer) error

	// Capacity queries. Results are at least 1 and monotone non-increasing
	// in the state size. Pure; they never touch the command stream.
	NumConcurrentStates(stateSize int) int
	NumConcurrentBusyStates(stateSize int) int
	NumSortPartitions(maxNumPaths, maxSceneShaders int) int

	// BeginCapture starts a debug capture labelled for the tooling;
	// EndCapture stops it. At most one capture per queue at a time.
	BeginCapture(label string) error
	EndCapture()

	// SubmittedCount and CompletedCount expose the cumulative command
	// buffer counters for non-blocking progress polling.
	SubmittedCount() uint64
	CompletedCount() uint64

	// TimingStats returns a snapshot of per-kernel execution statistics.
	TimingStats() map[Kernel]TimingStat

	// NativeQueue exposes the backend handle for interop; nil when the
	// backend has none.
	NativeQueue() interface{}

	Close() error
}
