//go:build darwin

package platform

import (
	"syscall"
	"time"
)

func atimeFromSys(sys any) (time.Time, bool) {
	stat, ok := sys.(*syscall.Stat_t)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(stat.Atimespec.Sec, stat.Atimespec.Nsec), true
}
