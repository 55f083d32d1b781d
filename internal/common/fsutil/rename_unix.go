//go:build !windows

package fsutil

import (
	"errors"
	"syscall"
)

func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}
