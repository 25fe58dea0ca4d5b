//go:build !unix

package secure

import "errors"

func lockMemory(b []byte) error {
	return errors.New("memory locking not supported on this platform")
}

func unlockMemory(b []byte) error {
	return nil
}
