package secure

import (
	"fmt"

	vwerrors "github.com/vaultwatch/vaultwatch/internal/errors"
)

// wipePatterns are the overwrite passes applied on release. Alternating
// bit patterns before the final zero pass defeat naive memory-remnant
// recovery; a single zero fill does not.
var wipePatterns = [...]byte{0xAA, 0x55, 0xFF, 0x00}

// SecureBuffer owns one fixed-size memory allocation for its lifetime.
// It is not resizable and not safe for concurrent use; the holder that
// allocated it owns it exclusively and must call Wipe() exactly once
// when done (idempotent, so a defer is always safe).
type SecureBuffer struct {
	data    []byte
	locked  bool
	lockErr error
	wiped   bool
}

// NewSecureBuffer allocates a buffer of the given capacity and
// best-effort requests that the OS refuse to swap the region to disk.
// A failed lock is not fatal: the buffer is still usable, Locked()
// reports false and LockError() carries the cause so the caller can
// log the degradation.
func NewSecureBuffer(size int) (*SecureBuffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secure buffer size must be positive, got %d", size)
	}

	b := &SecureBuffer{data: make([]byte, size)}
	if err := lockMemory(b.data); err != nil {
		b.lockErr = err
	} else {
		b.locked = true
	}
	return b, nil
}

// Capacity returns the fixed size of the buffer.
func (b *SecureBuffer) Capacity() int {
	if b.wiped {
		return 0
	}
	return len(b.data)
}

// Locked reports whether the OS accepted the page-lock request.
func (b *SecureBuffer) Locked() bool {
	return b.locked && !b.wiped
}

// LockError returns the reason page locking failed, or nil.
func (b *SecureBuffer) LockError() error {
	return b.lockErr
}

// Write copies data into the buffer at offset.
func (b *SecureBuffer) Write(data []byte, offset int) error {
	if b.wiped {
		return vwerrors.ErrBufferWiped
	}
	if offset < 0 || offset+len(data) > len(b.data) {
		return fmt.Errorf("%w: write of %d bytes at offset %d into %d-byte buffer",
			vwerrors.ErrOutOfBounds, len(data), offset, len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

// Read returns a copy of length bytes starting at offset. The caller
// owns the returned slice and should zero it when finished.
func (b *SecureBuffer) Read(length, offset int) ([]byte, error) {
	if b.wiped {
		return nil, vwerrors.ErrBufferWiped
	}
	if offset < 0 || length < 0 || offset+length > len(b.data) {
		return nil, fmt.Errorf("%w: read of %d bytes at offset %d from %d-byte buffer",
			vwerrors.ErrOutOfBounds, length, offset, len(b.data))
	}
	out := make([]byte, length)
	copy(out, b.data[offset:offset+length])
	return out, nil
}

// scrub overwrites the live region with every wipe pattern without
// releasing the allocation. Used by SecureString when replacing
// contents in place.
func (b *SecureBuffer) scrub() {
	if b.wiped {
		return
	}
	for _, pattern := range wipePatterns {
		for i := range b.data {
			b.data[i] = pattern
		}
	}
}

// Wipe performs the multi-pass overwrite, releases the page lock and
// drops the allocation. Idempotent: second and later calls are no-ops.
// After Wipe, all reads and writes fail with ErrBufferWiped.
func (b *SecureBuffer) Wipe() {
	if b.wiped {
		return
	}
	b.scrub()
	if b.locked {
		// Best effort; the memory is already scrubbed.
		_ = unlockMemory(b.data)
		b.locked = false
	}
	b.data = nil
	b.wiped = true
}
