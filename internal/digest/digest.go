// Package digest computes the content hashes that name store entries.
package digest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"sync"
	"syscall"

	"github.com/avast/retry-go/v4"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

// Algorithm names a supported hash function.
type Algorithm string

const (
	BLAKE2bp Algorithm = "blake2bp"
	BLAKE2b  Algorithm = "blake2b"
	BLAKE3   Algorithm = "blake3"
)

// Default is the algorithm the content store is keyed by.
const Default = BLAKE2bp

// HexLen is the length of a hex-encoded 256-bit digest.
const HexLen = 2 * Size

const chunkSize = 1 << 20 // 1 MiB

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, chunkSize)
		return &b
	},
}

// Algorithms lists every supported algorithm, default first.
func Algorithms() []Algorithm {
	return []Algorithm{BLAKE2bp, BLAKE2b, BLAKE3}
}

// ParseAlgorithm validates an algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	for _, a := range Algorithms() {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown hash algorithm %q (want one of %v)", s, Algorithms())
}

// New returns a fresh 256-bit hash for the algorithm.
//
//nolint:ireturn // hash.Hash is the natural return type here
func (a Algorithm) New() (hash.Hash, error) {
	switch a {
	case BLAKE2bp:
		return NewBLAKE2bp(), nil
	case BLAKE2b:
		return blake2b.New256(nil)
	case BLAKE3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", string(a))
	}
}

// File hashes the file at path with the default algorithm.
func File(path string) (string, error) {
	return FileWith(Default, path)
}

// FileWith hashes the file at path, returning the lowercase hex digest.
func FileWith(alg Algorithm, path string) (string, error) {
	// Open and read errors are *fs.PathError and already name path.
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return Reader(alg, f)
}

// Reader hashes everything r yields until EOF. Reads are done in bounded
// chunks and interrupted reads are retried.
func Reader(alg Algorithm, r io.Reader) (string, error) {
	h, err := alg.New()
	if err != nil {
		return "", err
	}

	bufp := bufPool.Get().(*[]byte)
	defer bufPool.Put(bufp)
	buf := *bufp

	rr := retryReader{r: r}
	for {
		n, err := rr.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ValidHex reports whether name is shaped like a store entry name.
func ValidHex(name string) bool {
	if len(name) != HexLen {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// retryReader retries reads that fail with EINTR before any byte arrived.
type retryReader struct {
	r io.Reader
}

func (rr retryReader) Read(p []byte) (int, error) {
	var (
		n    int
		rerr error
	)
	err := retry.Do(
		func() error {
			n, rerr = rr.r.Read(p)
			if n == 0 && isInterrupted(rerr) {
				return rerr
			}
			return nil
		},
		retry.Attempts(0),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(isInterrupted),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return n, err
	}
	return n, rerr
}

func isInterrupted(err error) bool {
	return errors.Is(err, syscall.EINTR)
}
