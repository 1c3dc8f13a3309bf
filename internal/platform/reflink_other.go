//go:build !linux && !darwin

package platform

import "os"

// ReflinkFile always fails on platforms without a clone primitive.
func ReflinkFile(_, _ string, _ os.FileMode) error {
	return ErrReflinkUnsupported
}
