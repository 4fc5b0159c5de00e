//go:build !(aix || darwin || dragonfly || freebsd || illumos || linux || netbsd || openbsd || solaris)

package keypress

import "time"

func waitReadable(int, time.Duration) (bool, error) {
	return false, ErrUnsupported
}

func readByte(int) (byte, error) {
	return 0, ErrUnsupported
}
