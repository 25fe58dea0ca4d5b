package secure

import (
	vwerrors "github.com/vaultwatch/vaultwatch/internal/errors"
)

// DefaultStringCapacity is the initial backing-buffer size when none is
// requested. Sized so that typical passphrases and derived keys fit
// without a grow cycle.
const DefaultStringCapacity = 64

// SecureString holds a secret value of logical length <= the capacity
// of its backing SecureBuffer. Growth reallocates a larger buffer,
// copies, then wipes the old buffer immediately; the window where two
// copies of the secret exist ends before Append or Set returns.
//
// Like SecureBuffer, a SecureString has a single owner and is not safe
// for concurrent use. Wipe() is terminal: afterwards every accessor
// fails with ErrBufferWiped.
type SecureString struct {
	buf    *SecureBuffer
	length int
	wiped  bool
}

// NewSecureString allocates an empty secure string. A non-positive
// capacity selects DefaultStringCapacity.
func NewSecureString(capacity int) (*SecureString, error) {
	if capacity <= 0 {
		capacity = DefaultStringCapacity
	}
	buf, err := NewSecureBuffer(capacity)
	if err != nil {
		return nil, err
	}
	return &SecureString{buf: buf}, nil
}

// NewSecureStringFrom allocates a secure string holding a copy of
// value. The caller keeps ownership of value and should zero it once
// this returns.
func NewSecureStringFrom(value []byte) (*SecureString, error) {
	capacity := len(value)
	if capacity < DefaultStringCapacity {
		capacity = DefaultStringCapacity
	}
	s, err := NewSecureString(capacity)
	if err != nil {
		return nil, err
	}
	if err := s.Set(value); err != nil {
		s.Wipe()
		return nil, err
	}
	return s, nil
}

// Len returns the logical length of the held value.
func (s *SecureString) Len() int {
	return s.length
}

// Capacity returns the size of the current backing buffer.
func (s *SecureString) Capacity() int {
	if s.wiped {
		return 0
	}
	return s.buf.Capacity()
}

// Locked reports whether the current backing buffer is page-locked.
func (s *SecureString) Locked() bool {
	return !s.wiped && s.buf.Locked()
}

// Set replaces the held value. The old contents are scrubbed before
// the new value is written; if the new value needs a larger buffer,
// the old buffer is wiped as soon as the replacement is populated.
func (s *SecureString) Set(value []byte) error {
	if s.wiped {
		return vwerrors.ErrBufferWiped
	}

	if len(value) <= s.buf.Capacity() {
		s.buf.scrub()
		if err := s.buf.Write(value, 0); err != nil {
			return err
		}
		s.length = len(value)
		return nil
	}

	return s.replaceBuffer(value)
}

// Append extends the held value, growing the backing buffer when the
// concatenation no longer fits.
func (s *SecureString) Append(value []byte) error {
	if s.wiped {
		return vwerrors.ErrBufferWiped
	}
	if len(value) == 0 {
		return nil
	}

	need := s.length + len(value)
	if need <= s.buf.Capacity() {
		if err := s.buf.Write(value, s.length); err != nil {
			return err
		}
		s.length = need
		return nil
	}

	current, err := s.buf.Read(s.length, 0)
	if err != nil {
		return err
	}
	combined := concatZeroing(current, value, need)
	err = s.replaceBuffer(combined)
	for i := range combined {
		combined[i] = 0
	}
	return err
}

// concatZeroing concatenates current and value into a fresh slice and
// zeroes current before returning. Appending to current directly could
// reallocate and strand an unwiped plaintext copy on the heap.
func concatZeroing(current, value []byte, capacity int) []byte {
	combined := make([]byte, 0, capacity)
	combined = append(combined, current...)
	combined = append(combined, value...)
	for i := range current {
		current[i] = 0
	}
	return combined
}

// replaceBuffer moves the string onto a fresh, larger buffer holding
// value, then wipes the previous buffer. Growth doubles until value
// fits so that repeated appends stay amortised.
func (s *SecureString) replaceBuffer(value []byte) error {
	capacity := s.buf.Capacity()
	if capacity == 0 {
		capacity = DefaultStringCapacity
	}
	for capacity < len(value) {
		capacity *= 2
	}

	next, err := NewSecureBuffer(capacity)
	if err != nil {
		return err
	}
	if err := next.Write(value, 0); err != nil {
		next.Wipe()
		return err
	}

	old := s.buf
	s.buf = next
	s.length = len(value)
	old.Wipe()
	return nil
}

// Bytes returns a copy of the held value. The caller owns the copy and
// should zero it when finished.
func (s *SecureString) Bytes() ([]byte, error) {
	if s.wiped {
		return nil, vwerrors.ErrBufferWiped
	}
	return s.buf.Read(s.length, 0)
}

// String returns the held value as a Go string. Note that the returned
// string is immutable and cannot be wiped; prefer Bytes for values
// that stay secret.
func (s *SecureString) String() (string, error) {
	b, err := s.Bytes()
	if err != nil {
		return "", err
	}
	out := string(b)
	for i := range b {
		b[i] = 0
	}
	return out, nil
}

// Wipe destroys the held value and the backing buffer. Terminal and
// idempotent.
func (s *SecureString) Wipe() {
	if s.wiped {
		return
	}
	s.buf.Wipe()
	s.length = 0
	s.wiped = true
}
