// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cpu

import (
	"runtime"
	"sync"
	"time"

	"github.com/devblok/lumen/device"
)

// unit of the capacity heuristic, per worker thread
const memBudgetPerWorker = 64 << 20

type commandKind int

const (
	cmdDispatch commandKind = iota
	cmdZero
	cmdCopyTo
	cmdCopyFrom
)

type command struct {
	kind     commandKind
	kernel   device.Kernel
	workSize int
	args     device.Args
	buf      *device.Buffer
}

// Queue is the CPU command stream. Commands accumulate in order and run at
// Synchronize, dispatches fanned out across the worker pool. The queue is
// not safe for concurrent use.
type Queue struct {
	dev     *Device
	workers int
	budget  int64

	kernels     map[device.Kernel]kernelFunc
	initialized bool
	closed      bool

	state    device.QueueState
	commands []command

	submitted uint64
	completed uint64

	stats map[device.Kernel]device.TimingStat

	capture captureState
}

func newQueue(d *Device) *Queue {
	workers := runtime.NumCPU()
	return &Queue{
		dev:     d,
		workers: workers,
		budget:  int64(workers) * memBudgetPerWorker,
		state:   device.QueueIdle,
		stats:   make(map[device.Kernel]device.TimingStat),
		capture: captureFromEnv(),
	}
}

// InitExecution implements device.Queue.
func (q *Queue) InitExecution() error {
	if q.closed {
		return device.ErrQueueClosed
	}
	if q.initialized {
		return nil
	}
	q.kernels = kernelTable()
	q.initialized = true
	return nil
}

// Enqueue implements device.Queue.
func (q *Queue) Enqueue(kernel device.Kernel, workSize int, args device.Args) bool {
	if q.closed || !q.initialized || workSize < 0 {
		return false
	}
	if _, ok := q.kernels[kernel]; !ok {
		return false
	}
	q.commands = append(q.commands, command{
		kind:     cmdDispatch,
		kernel:   kernel,
		workSize: workSize,
		args:     args,
	})
	q.state = device.QueueEncoding
	return true
}

// ZeroToDevice implements device.Queue.
func (q *Queue) ZeroToDevice(buf *device.Buffer) error {
	return q.transfer(cmdZero, buf)
}

// CopyToDevice implements device.Queue.
func (q *Queue) CopyToDevice(buf *device.Buffer) error {
	return q.transfer(cmdCopyTo, buf)
}

// CopyFromDevice implements device.Queue.
func (q *Queue) CopyFromDevice(buf *device.Buffer) error {
	return q.transfer(cmdCopyFrom, buf)
}

func (q *Queue) transfer(kind commandKind, buf *device.Buffer) error {
	if q.closed {
		return device.ErrQueueClosed
	}
	q.commands = append(q.commands, command{kind: kind, buf: buf})
	q.state = device.QueueEncoding
	return nil
}

// deviceData returns the device-side storage of a buffer, allocating it on
// first use. The host slice is only touched by explicit transfers.
func deviceData(buf *device.Buffer) []float32 {
	if data, ok := buf.Handle.([]float32); ok && len(data) == len(buf.Host) {
		return data
	}
	data := make([]float32, len(buf.Host))
	buf.Handle = data
	return data
}

// Synchronize implements device.Queue. Commands run strictly in submission
// order; only dispatch work ranges are parallel.
func (q *Queue) Synchronize() error {
	if q.closed {
		return device.ErrQueueClosed
	}
	if len(q.commands) == 0 {
		return nil
	}

	q.state = device.QueueSubmitted
	q.submitted++

	for _, cmd := range q.commands {
		switch cmd.kind {
		case cmdDispatch:
			elapsed := q.dispatch(cmd)
			stat := q.stats[cmd.kernel]
			stat.TotalTime += elapsed
			stat.TotalWorkSize += uint64(cmd.workSize)
			stat.NumDispatches++
			q.stats[cmd.kernel] = stat
			q.capture.observe(cmd, elapsed)
		case cmdZero:
			data := deviceData(cmd.buf)
			for i := range data {
				data[i] = 0
			}
		case cmdCopyTo:
			copy(deviceData(cmd.buf), cmd.buf.Host)
		case cmdCopyFrom:
			copy(cmd.buf.Host, deviceData(cmd.buf))
		}
	}

	q.commands = q.commands[:0]
	q.completed++
	q.state = device.QueueIdle
	q.capture.synchronized()
	return nil
}

func (q *Queue) dispatch(cmd command) time.Duration {
	fn := q.kernels[cmd.kernel]
	start := time.Now()

	chunk := (cmd.workSize + q.workers - 1) / q.workers
	if chunk < 1 {
		chunk = 1
	}
	var wg sync.WaitGroup
	for begin := 0; begin < cmd.workSize; begin += chunk {
		end := begin + chunk
		if end > cmd.workSize {
			end = cmd.workSize
		}
		wg.Add(1)
		go func(begin, end int) {
			defer wg.Done()
			for i := begin; i < end; i++ {
				fn(cmd.args, i)
			}
		}(begin, end)
	}
	wg.Wait()

	return time.Since(start)
}

// NumConcurrentStates implements device.Queue.
func (q *Queue) NumConcurrentStates(stateSize int) int {
	if stateSize < 1 {
		return 1
	}
	n := int(q.budget / int64(stateSize))
	if n < 1 {
		return 1
	}
	return n
}

// NumConcurrentBusyStates implements device.Queue.
func (q *Queue) NumConcurrentBusyStates(stateSize int) int {
	n := q.NumConcurrentStates(stateSize) / 2
	if n < 1 {
		return 1
	}
	return n
}

// NumSortPartitions implements device.Queue.
func (q *Queue) NumSortPartitions(maxNumPaths, maxSceneShaders int) int {
	n := maxNumPaths / (64 << 10)
	if n < 1 {
		n = 1
	}
	if maxSceneShaders >= 1 && n > maxSceneShaders {
		n = maxSceneShaders
	}
	return n
}

// BeginCapture implements device.Queue.
func (q *Queue) BeginCapture(label string) error {
	if q.closed {
		return device.ErrQueueClosed
	}
	return q.capture.begin(label)
}

// EndCapture implements device.Queue.
func (q *Queue) EndCapture() {
	q.capture.end()
}

// SubmittedCount implements device.Queue.
func (q *Queue) SubmittedCount() uint64 { return q.submitted }

// CompletedCount implements device.Queue.
func (q *Queue) CompletedCount() uint64 { return q.completed }

// TimingStats implements device.Queue.
func (q *Queue) TimingStats() map[device.Kernel]device.TimingStat {
	out := make(map[device.Kernel]device.TimingStat, len(q.stats))
	for k, v := range q.stats {
		out[k] = v
	}
	return out
}

// NativeQueue implements device.Queue. The CPU stream has no backend
// object behind it.
func (q *Queue) NativeQueue() interface{} { return nil }

// Close implements device.Queue.
func (q *Queue) Close() error {
	if q.closed {
		return nil
	}
	q.closed = true
	q.commands = nil
	q.capture.end()
	if q.dev != nil {
		q.dev.release(q)
	}
	return nil
}
