//go:build linux

package audit

import "golang.org/x/sys/unix"

// threadID returns the kernel thread id of the calling goroutine's
// current OS thread. Informational only; goroutines migrate.
func threadID() int {
	return unix.Gettid()
}
