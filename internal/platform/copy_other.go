//go:build !linux

package platform

// CopyFile copies the whole source with pread/pwrite. Clones are attempted
// separately through ReflinkFile.
func CopyFile(params CopyFileParams) (CopyResult, error) {
	preallocate(params.DstFd, params.SrcSize)
	return copyReadWrite(params)
}
