// Package secure provides memory-safe handling of sensitive data.
//
// Three primitives are exposed:
//
//   - SecureBuffer: a fixed-capacity memory region that best-effort
//     locks its pages against swapping and guarantees a multi-pass
//     overwrite on release. Whether locking succeeded is observable
//     via Locked(); a failed lock degrades protection but never fails
//     allocation.
//
//   - SecureString: a growable secret value backed by SecureBuffers.
//     Growth reallocates into a larger buffer and wipes the old one
//     immediately, so at no point are two live, unwiped copies of the
//     secret resident.
//
//   - Enclave: a memguard-backed sealed holder for a key at rest
//     (encrypted in memory, decrypted only inside a locked buffer).
//     Used where a secret must survive longer than one operation,
//     e.g. the derived key cached around keyring access.
//
// After Wipe() or Destroy(), every read and write fails with
// errors.ErrBufferWiped. Wiped memory is never silently read back as
// zeros; that distinction is a security invariant, not a nicety.
//
// Instances are not safe for concurrent use. Ownership is
// single-threaded; hand a value to another goroutine by transferring
// ownership, never by sharing a live reference. Holders are expected
// to guarantee wipe-on-teardown with a defer at the ownership root.
//
// # Platform Behavior
//
//   - Linux: page locking requires RLIMIT_MEMLOCK headroom
//   - macOS: works out of the box
//   - other platforms: locking is unavailable and Locked() reports false
package secure
