package platform

import (
	"errors"
	"io"
	"os"
	"sync"
)

const bufferSize = 1 << 20 // 1 MiB

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, bufferSize)
		return &b
	},
}

// copyReadWrite copies with positional reads and writes through a pooled
// buffer. It reads to EOF rather than to SrcSize, so a source that grew since
// it was hashed yields a copy the caller's re-hash rejects.
func copyReadWrite(params CopyFileParams) (CopyResult, error) {
	src, err := os.Open(params.SrcPath)
	if err != nil {
		return CopyResult{}, err
	}
	defer src.Close()

	bufp := bufPool.Get().(*[]byte)
	defer bufPool.Put(bufp)
	buf := *bufp

	result := CopyResult{Method: ReadWrite}
	for {
		n, rerr := src.ReadAt(buf, result.BytesWritten)
		if n > 0 {
			if _, err := params.DstFd.WriteAt(buf[:n], result.BytesWritten); err != nil {
				return result, err
			}
			result.BytesWritten += int64(n)
		}
		if errors.Is(rerr, io.EOF) {
			return result, nil
		}
		if rerr != nil {
			return result, rerr
		}
	}
}

// CopyReadWrite copies without any kernel offload; the fallback every other
// method ends in.
func CopyReadWrite(params CopyFileParams) (CopyResult, error) {
	return copyReadWrite(params)
}
