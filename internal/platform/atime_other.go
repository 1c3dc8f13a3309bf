//go:build !linux && !darwin

package platform

import "time"

func atimeFromSys(any) (time.Time, bool) { return time.Time{}, false }
