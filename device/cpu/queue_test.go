// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cpu

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gobuffalo/envy"

	"github.com/devblok/lumen/device"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	infos := device.AvailableDevices(device.Mask(device.TypeCPU))
	if len(infos) != 1 {
		t.Fatalf("expected one CPU device, got %v", infos)
	}
	dev, err := device.NewDevice(infos[0])
	if err != nil {
		t.Fatal(err)
	}
	q, err := dev.NewQueue()
	if err != nil {
		t.Fatal(err)
	}
	if err := q.InitExecution(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		q.Close()
		dev.Close()
	})
	return q.(*Queue)
}

func TestEnumeration(t *testing.T) {
	infos := device.AvailableDevices(device.MaskAll)
	found := false
	for _, info := range infos {
		if info.Type == device.TypeCPU {
			found = true
			if info.ID != "CPU_0000" {
				t.Errorf("CPU id = %q", info.ID)
			}
			if !info.Denoisers.Has(device.DenoiserOpenImageDenoise) {
				t.Error("CPU should report the OIDN denoiser")
			}
		}
	}
	if !found {
		t.Fatal("CPU device missing from enumeration")
	}
}

func TestSingleActiveQueue(t *testing.T) {
	infos := device.AvailableDevices(device.Mask(device.TypeCPU))
	dev, err := device.NewDevice(infos[0])
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()

	q1, err := dev.NewQueue()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dev.NewQueue(); err != device.ErrQueueExists {
		t.Errorf("second queue returned %v, want ErrQueueExists", err)
	}
	q1.Close()
	q2, err := dev.NewQueue()
	if err != nil {
		t.Errorf("queue after close failed: %v", err)
	}
	q2.Close()
}

// TestCommandOrdering zeroes, dispatches and copies back in one stream; the
// copy must observe post-dispatch data.
func TestCommandOrdering(t *testing.T) {
	q := newTestQueue(t)

	const n = 64
	in := device.NewBuffer("in", n)
	out := device.NewBuffer("out", n)
	for i := range in.Host {
		in.Host[i] = 1.0
	}

	if err := q.CopyToDevice(in); err != nil {
		t.Fatal(err)
	}
	if err := q.ZeroToDevice(out); err != nil {
		t.Fatal(err)
	}
	if !q.Enqueue(device.KernelPrefixSum, 1, device.Args{Buffers: []*device.Buffer{in, out}}) {
		t.Fatal("enqueue rejected")
	}
	if err := q.CopyFromDevice(out); err != nil {
		t.Fatal(err)
	}
	if err := q.Synchronize(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < n; i++ {
		if out.Host[i] != float32(i+1) {
			t.Fatalf("out[%d] = %f, want %d", i, out.Host[i], i+1)
		}
	}
}

// TestTransferOrdering checks that a host-side change between CopyToDevice
// being recorded and Synchronize is visible, since transfers execute at
// synchronization time in stream order.
func TestTransferOrdering(t *testing.T) {
	q := newTestQueue(t)

	buf := device.NewBuffer("data", 8)
	if err := q.CopyToDevice(buf); err != nil {
		t.Fatal(err)
	}
	buf.Host[0] = 42.0
	if err := q.CopyFromDevice(buf); err != nil {
		t.Fatal(err)
	}
	if err := q.Synchronize(); err != nil {
		t.Fatal(err)
	}
	if buf.Host[0] != 42.0 {
		t.Errorf("copy executed out of stream order, Host[0] = %f", buf.Host[0])
	}
}

func TestEnqueueRejections(t *testing.T) {
	q := newTestQueue(t)
	if q.Enqueue(device.Kernel(9999), 8, device.Args{}) {
		t.Error("unknown kernel accepted")
	}
	if q.Enqueue(device.KernelPrefixSum, -1, device.Args{}) {
		t.Error("negative work size accepted")
	}

	fresh := &Queue{state: device.QueueIdle}
	if fresh.Enqueue(device.KernelPrefixSum, 1, device.Args{}) {
		t.Error("enqueue before InitExecution accepted")
	}
}

func TestCounters(t *testing.T) {
	q := newTestQueue(t)
	if q.SubmittedCount() != 0 || q.CompletedCount() != 0 {
		t.Fatal("fresh queue has non-zero counters")
	}

	// Synchronize with nothing recorded is a no-op.
	if err := q.Synchronize(); err != nil {
		t.Fatal(err)
	}
	if q.SubmittedCount() != 0 {
		t.Error("empty synchronize bumped the submitted counter")
	}

	buf := device.NewBuffer("b", 4)
	q.ZeroToDevice(buf)
	if err := q.Synchronize(); err != nil {
		t.Fatal(err)
	}
	if q.SubmittedCount() != 1 || q.CompletedCount() != 1 {
		t.Errorf("counters = %d/%d, want 1/1", q.SubmittedCount(), q.CompletedCount())
	}
}

func TestTimingStats(t *testing.T) {
	q := newTestQueue(t)

	in := device.NewBuffer("in", 32)
	out := device.NewBuffer("out", 32)
	for i := 0; i < 3; i++ {
		if !q.Enqueue(device.KernelPrefixSum, 1, device.Args{Buffers: []*device.Buffer{in, out}}) {
			t.Fatal("enqueue rejected")
		}
	}
	if err := q.Synchronize(); err != nil {
		t.Fatal(err)
	}

	stats := q.TimingStats()
	stat, ok := stats[device.KernelPrefixSum]
	if !ok {
		t.Fatal("no stats for the dispatched kernel")
	}
	if stat.NumDispatches != 3 {
		t.Errorf("NumDispatches = %d, want 3", stat.NumDispatches)
	}
	if stat.TotalWorkSize != 3 {
		t.Errorf("TotalWorkSize = %d, want 3", stat.TotalWorkSize)
	}

	// Stats are cumulative across synchronizations.
	q.Enqueue(device.KernelPrefixSum, 1, device.Args{Buffers: []*device.Buffer{in, out}})
	q.Synchronize()
	if got := q.TimingStats()[device.KernelPrefixSum].NumDispatches; got != 4 {
		t.Errorf("NumDispatches after second round = %d, want 4", got)
	}
}

func TestCapacityQueries(t *testing.T) {
	q := newTestQueue(t)

	if got := q.NumConcurrentStates(1 << 62); got != 1 {
		t.Errorf("oversized state: %d, want floor of 1", got)
	}
	if got := q.NumConcurrentStates(0); got != 1 {
		t.Errorf("zero state size: %d, want 1", got)
	}

	prev := q.NumConcurrentStates(64)
	for _, size := range []int{128, 1024, 1 << 20, 1 << 30} {
		cur := q.NumConcurrentStates(size)
		if cur > prev {
			t.Errorf("capacity grew from %d to %d as state size grew to %d", prev, cur, size)
		}
		if cur < 1 {
			t.Errorf("capacity %d below floor for size %d", cur, size)
		}
		prev = cur
	}

	if busy := q.NumConcurrentBusyStates(64); busy > q.NumConcurrentStates(64) || busy < 1 {
		t.Errorf("busy capacity %d out of range", busy)
	}

	if got := q.NumSortPartitions(1, 32); got != 1 {
		t.Errorf("tiny path count: %d partitions, want 1", got)
	}
	if got := q.NumSortPartitions(1<<24, 4); got != 4 {
		t.Errorf("partitions = %d, want shader-bound 4", got)
	}
}

func TestCaptureRejectsConcurrent(t *testing.T) {
	q := newTestQueue(t)
	if err := q.BeginCapture("first"); err != nil {
		t.Fatal(err)
	}
	if err := q.BeginCapture("second"); err != device.ErrCaptureActive {
		t.Errorf("second capture returned %v, want ErrCaptureActive", err)
	}
	q.EndCapture()
	if err := q.BeginCapture("third"); err != nil {
		t.Errorf("capture after end failed: %v", err)
	}
	q.EndCapture()
}

func TestCaptureFromEnvWritesOnce(t *testing.T) {
	dir := t.TempDir()
	trace := filepath.Join(dir, "capture.trace")

	envy.Temp(func() {
		envy.Set(EnvCaptureKernel, device.KernelPrefixSum.String())
		envy.Set(EnvCaptureDispatch, "0")
		envy.Set(EnvCaptureSamples, "1")
		envy.Set(EnvCaptureFile, trace)

		q := newTestQueue(t)
		in := device.NewBuffer("in", 16)
		out := device.NewBuffer("out", 16)
		q.Enqueue(device.KernelPrefixSum, 1, device.Args{Buffers: []*device.Buffer{in, out}})
		if err := q.Synchronize(); err != nil {
			t.Fatal(err)
		}

		info, err := os.Stat(trace)
		if err != nil {
			t.Fatalf("trace file missing: %v", err)
		}
		first := info.Size()

		// A second matching dispatch must not rewrite the file.
		os.Remove(trace)
		q.Enqueue(device.KernelPrefixSum, 1, device.Args{Buffers: []*device.Buffer{in, out}})
		if err := q.Synchronize(); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(trace); !os.IsNotExist(err) {
			t.Error("capture fired a second time")
		}
		_ = first
	})
}

func TestClosedQueue(t *testing.T) {
	q := newTestQueue(t)
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	if err := q.Synchronize(); err != device.ErrQueueClosed {
		t.Errorf("Synchronize on closed queue: %v", err)
	}
	if q.Enqueue(device.KernelPrefixSum, 1, device.Args{}) {
		t.Error("Enqueue accepted on closed queue")
	}
	if err := q.CopyToDevice(device.NewBuffer("b", 1)); err != device.ErrQueueClosed {
		t.Errorf("CopyToDevice on closed queue: %v", err)
	}
}
