package secure

import (
	"sync"

	"github.com/awnumar/memguard"

	vwerrors "github.com/vaultwatch/vaultwatch/internal/errors"
)

// Enclave seals a key at rest in memory. It wraps memguard.Enclave,
// which encrypts the payload (XSalsa20Poly1305), mlocks the pages it
// controls and places guard pages around decrypted views. Use it for
// secrets that outlive a single operation, such as the derived key held
// between keyring reads; use SecureString for values that are written,
// summarised and wiped inside one call chain.
type Enclave struct {
	enclave *memguard.Enclave
	mu      sync.RWMutex
	// destroyed allows idempotent Destroy() calls and makes
	// use-after-destroy an explicit failure.
	destroyed bool
}

// NewEnclave seals a copy of data. The input remains untouched; the
// caller should zero it once this returns.
func NewEnclave(data []byte) *Enclave {
	return &Enclave{enclave: memguard.NewEnclave(data)}
}

// Open decrypts the sealed key into a locked buffer. The caller MUST
// call Destroy() on the returned buffer to wipe the plaintext:
//
//	locked, err := enc.Open()
//	if err != nil {
//	    return err
//	}
//	defer locked.Destroy()
//	use(locked.Bytes())
func (e *Enclave) Open() (*memguard.LockedBuffer, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.destroyed {
		return nil, vwerrors.ErrBufferWiped
	}
	return e.enclave.Open()
}

// Destroy marks the enclave unusable. Idempotent. The sealed ciphertext
// is unreadable without the memguard session key, which is purged at
// process exit via memguard.Purge in main.
func (e *Enclave) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return
	}
	e.enclave = nil
	e.destroyed = true
}
