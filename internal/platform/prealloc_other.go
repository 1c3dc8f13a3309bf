//go:build !linux && !darwin

package platform

import "os"

func preallocate(_ *os.File, _ int64) {}
