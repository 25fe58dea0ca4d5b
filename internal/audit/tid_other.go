//go:build !linux

package audit

func threadID() int {
	return 0
}
