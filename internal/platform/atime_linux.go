//go:build linux

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
	return time.Unix(stat.Atim.Sec, stat.Atim.Nsec), true
}
