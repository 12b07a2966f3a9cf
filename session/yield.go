// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package session

import "sync"

// HostState models the embedding host's single-threaded execution token.
// Long-running session operations yield it so host threads can run while the
// renderer blocks, and restore it on every exit path.
type HostState struct {
	mutex sync.Mutex
	depth int
}

// Yield releases the host token and returns the restore function. The
// returned function must be called exactly once, typically via defer.
func (h *HostState) Yield() func() {
	if h == nil {
		return func() {}
	}
	h.mutex.Lock()
	h.depth++
	h.mutex.Unlock()
	return func() {
		h.mutex.Lock()
		h.depth--
		h.mutex.Unlock()
	}
}

// Yielded reports whether the token is currently released.
func (h *HostState) Yielded() bool {
	if h == nil {
		return false
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.depth > 0
}
