// Package secure holds key material in locked memory and encrypts files at rest.
package secure

import (
	"runtime"
	"sync"
)

// Buffer holds sensitive bytes. The memory is mlock'd when the platform
// allows it and zeroed on Destroy.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	locked bool
}

// NewBuffer allocates a zeroed buffer of size bytes.
func NewBuffer(size int) *Buffer {
	b := &Buffer{data: make([]byte, size)}

	// Locking is best effort; RLIMIT_MEMLOCK is often tiny.
	b.locked = mlock(b.data)

	runtime.SetFinalizer(b, func(b *Buffer) { b.Destroy() })
	return b
}

// FromSlice copies data into a new buffer and zeroes the source.
func FromSlice(data []byte) *Buffer {
	b := NewBuffer(len(data))
	copy(b.data, data)
	Zero(data)
	return b
}

// Bytes returns the underlying slice, or nil after Destroy.
// Callers must not retain it past Destroy.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

// IsLocked reports whether the memory is mlock'd.
func (b *Buffer) IsLocked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// Len returns the buffer length, zero after Destroy.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Destroy zeroes and unlocks the memory. Safe to call more than once.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.data == nil {
		return
	}
	Zero(b.data)
	if b.locked {
		munlock(b.data)
		b.locked = false
	}
	b.data = nil
	runtime.SetFinalizer(b, nil)
}

// Zero overwrites data with zeroes.
func Zero(data []byte) {
	clear(data)
}
