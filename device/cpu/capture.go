// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cpu

import (
	"encoding/gob"
	"os"
	"strconv"
	"time"

	"github.com/gobuffalo/envy"
	"github.com/pierrec/lz4"

	"github.com/devblok/lumen/device"
)

// Environment keys for dispatch capture. Read once when a queue is built;
// changing them afterwards has no effect on live queues.
const (
	EnvCaptureKernel   = "LUMEN_CAPTURE_KERNEL"
	EnvCaptureDispatch = "LUMEN_CAPTURE_DISPATCH"
	EnvCaptureSamples  = "LUMEN_CAPTURE_SAMPLES"
	EnvCaptureReset    = "LUMEN_CAPTURE_RESET"
	EnvCaptureFile     = "LUMEN_CAPTURE_FILE"
)

// traceRecord is one captured dispatch in a trace file.
type traceRecord struct {
	Label    string
	Kernel   string
	WorkSize int
	Ints     []int32
	Floats   []float32
	Buffers  []string
	Duration time.Duration
}

type captureState struct {
	enabled       bool
	kernel        device.Kernel
	startDispatch uint64
	samples       uint64
	reset         bool
	file          string

	capturing bool
	manual    bool
	label     string

	counter  uint64
	recorded uint64
	written  bool

	trace []traceRecord
}

func captureFromEnv() captureState {
	s := captureState{
		samples: 1,
		file:    envy.Get(EnvCaptureFile, "lumen_capture.trace"),
	}

	name := envy.Get(EnvCaptureKernel, "")
	if name == "" {
		return s
	}
	for k := device.Kernel(0); int(k) < device.KernelCount; k++ {
		if k.String() == name {
			s.enabled = true
			s.kernel = k
			break
		}
	}
	if !s.enabled {
		return s
	}

	if n, err := strconv.ParseUint(envy.Get(EnvCaptureDispatch, "0"), 10, 64); err == nil {
		s.startDispatch = n
	}
	if n, err := strconv.ParseUint(envy.Get(EnvCaptureSamples, "1"), 10, 64); err == nil && n > 0 {
		s.samples = n
	}
	if b, err := strconv.ParseBool(envy.Get(EnvCaptureReset, "false")); err == nil {
		s.reset = b
	}
	return s
}

func (s *captureState) begin(label string) error {
	if s.capturing {
		return device.ErrCaptureActive
	}
	s.capturing = true
	s.manual = true
	s.label = label
	return nil
}

func (s *captureState) end() {
	if !s.manual {
		return
	}
	s.capturing = false
	s.manual = false
	s.flush()
}

// observe is called for every executed dispatch.
func (s *captureState) observe(cmd command, elapsed time.Duration) {
	if s.enabled && !s.written && !s.manual {
		if cmd.kernel == s.kernel {
			if s.counter == s.startDispatch && !s.capturing {
				s.capturing = true
				s.label = "auto"
			}
			s.counter++
		}
	}

	if !s.capturing {
		return
	}

	record := traceRecord{
		Label:    s.label,
		Kernel:   cmd.kernel.String(),
		WorkSize: cmd.workSize,
		Ints:     append([]int32(nil), cmd.args.Ints...),
		Floats:   append([]float32(nil), cmd.args.Floats...),
		Duration: elapsed,
	}
	for _, b := range cmd.args.Buffers {
		record.Buffers = append(record.Buffers, b.Name)
	}
	s.trace = append(s.trace, record)

	if !s.manual {
		s.recorded++
		if s.recorded >= s.samples {
			s.capturing = false
			s.flush()
		}
	}
}

func (s *captureState) synchronized() {
	if s.reset && !s.capturing {
		s.counter = 0
		s.recorded = 0
	}
}

// flush writes the accumulated trace to disk. Fires at most once per queue
// lifetime; later captures keep accumulating in memory but are dropped.
func (s *captureState) flush() {
	if s.written || len(s.trace) == 0 || s.file == "" {
		return
	}
	s.written = true

	f, err := os.Create(s.file)
	if err != nil {
		return
	}
	defer f.Close()

	w := lz4.NewWriter(f)
	if err := gob.NewEncoder(w).Encode(s.trace); err != nil {
		return
	}
	w.Close()
}
