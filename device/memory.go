// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

// Buffer is a block of device memory with a host-side shadow. The allocator
// that created the buffer owns it; queues reference buffers through Args but
// never free them. Handle carries the backend payload (nil for backends that
// work directly on the host slice) and is owned by the queue's device.
type Buffer struct {
	Name   string
	Host   []float32
	Handle interface{}
}

// NewBuffer allocates a host-backed buffer of size float32 elements.
func NewBuffer(name string, size int) *Buffer {
	return &Buffer{
		Name: name,
		Host: make([]float32, size),
	}
}

// Len returns the element count of the buffer.
func (b *Buffer) Len() int {
	return len(b.Host)
}
