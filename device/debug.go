// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import "sync"

// DebugFlags holds process-wide backend tuning toggles. They exist for
// regression hunting, not for production configuration, and default to the
// fastest supported paths.
type DebugFlags struct {
	CPU struct {
		// Instruction-set ceilings; disabling one forces the next
		// older kernel variant.
		AVX2  bool
		SSE42 bool
		// BVHLayout overrides the acceleration-structure layout,
		// empty meaning the device default.
		BVHLayout string
	}
	CUDA struct {
		AdaptiveCompile bool
	}
	HIP struct {
		AdaptiveCompile bool
	}
	Metal struct {
		AdaptiveCompile bool
	}
	OptiX struct {
		UseDebug bool
	}
}

func defaultDebugFlags() DebugFlags {
	var f DebugFlags
	f.CPU.AVX2 = true
	f.CPU.SSE42 = true
	return f
}

var (
	debugMu         sync.Mutex
	debugFlags      = defaultDebugFlags()
	debugGeneration uint64
)

// Debug returns a copy of the current process-wide debug flags.
func Debug() DebugFlags {
	debugMu.Lock()
	defer debugMu.Unlock()
	return debugFlags
}

// UpdateDebugFlags replaces the process-wide debug flags. Cached device
// enumerations are invalidated, since flags can change which kernel variants
// a device reports support for.
func UpdateDebugFlags(flags DebugFlags) {
	debugMu.Lock()
	debugFlags = flags
	debugGeneration++
	debugMu.Unlock()
}

// ResetDebugFlags restores the default flags. Invalidates cached
// enumerations like UpdateDebugFlags.
func ResetDebugFlags() {
	UpdateDebugFlags(defaultDebugFlags())
}

func debugGen() uint64 {
	debugMu.Lock()
	defer debugMu.Unlock()
	return debugGeneration
}
