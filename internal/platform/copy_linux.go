//go:build linux

package platform

import (
	"os"

	"golang.org/x/sys/unix"
)

// maxStep bounds a single kernel copy call.
const maxStep = 1 << 30

// stepFunc moves up to n bytes from src at *off to dst's file position and
// advances *off.
type stepFunc func(dst, src int, off *int64, n int) (int, error)

func copyFileRangeStep(dst, src int, off *int64, n int) (int, error) {
	return unix.CopyFileRange(src, off, dst, nil, n, 0)
}

func sendfileStep(dst, src int, off *int64, n int) (int, error) {
	return unix.Sendfile(dst, src, off, n)
}

var kernelMethods = []struct {
	method CopyMethod
	step   stepFunc
}{
	{CopyFileRange, copyFileRangeStep},
	{Sendfile, sendfileStep},
}

// CopyFile copies the whole source into params.DstFd. copy_file_range and
// sendfile are tried in turn; a method rejected before it wrote anything
// hands over to the next, ending with pread/pwrite.
func CopyFile(params CopyFileParams) (CopyResult, error) {
	preallocate(params.DstFd, params.SrcSize)

	src, err := os.Open(params.SrcPath)
	if err != nil {
		return CopyResult{}, err
	}
	defer src.Close()

	for _, k := range kernelMethods {
		result, err := kernelCopy(src, params, k.method, k.step)
		if err == nil || result.BytesWritten > 0 || !isFallbackErr(err) {
			return result, err
		}
	}
	return copyReadWrite(params)
}

//nolint:gosec // G115: fd values are small non-negative integers
func kernelCopy(src *os.File, params CopyFileParams, method CopyMethod, step stepFunc) (CopyResult, error) {
	var off int64
	for off < params.SrcSize {
		n, err := step(int(params.DstFd.Fd()), int(src.Fd()), &off, int(min(params.SrcSize-off, maxStep)))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return CopyResult{BytesWritten: off, Method: method}, err
		}
		if n == 0 {
			break // source shrank
		}
	}
	return CopyResult{BytesWritten: off, Method: method}, nil
}
