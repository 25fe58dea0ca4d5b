//go:build unix

package secure

import "golang.org/x/sys/unix"

// lockMemory asks the kernel to keep the region resident. Commonly
// fails under a tight RLIMIT_MEMLOCK; callers treat that as degraded,
// not fatal.
func lockMemory(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Mlock(b)
}

func unlockMemory(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Munlock(b)
}
