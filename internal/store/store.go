// Package store implements the content-addressed store: a flat directory of
// read-only regular files, each named by the BLAKE2bp hash of its content.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"github.com/bamsammich/cpdd/internal/digest"
	"github.com/bamsammich/cpdd/internal/platform"
)

// EntryMode is the permission of every committed store entry.
const EntryMode os.FileMode = 0o444

const lockRetryDelay = 100 * time.Millisecond

var (
	// ErrContentMismatch means a copied entry does not hash to its name.
	ErrContentMismatch = errors.New("content mismatch")
	// ErrNotRegular means a store name is taken by something other than a
	// regular file.
	ErrNotRegular = errors.New("store entry is not a regular file")
	// ErrNotDirectory means the store path exists but is not a directory.
	ErrNotDirectory = errors.New("store path is not a directory")
	// ErrInvalidHash means a name passed to the store is not a content hash.
	ErrInvalidHash = errors.New("invalid content hash")
)

// Options controls how a store is opened.
type Options struct {
	// Create makes a missing store directory.
	Create bool
	// Shared takes a read lock instead of the exclusive writer lock.
	Shared bool
	Logger *slog.Logger
}

// Store is an open, locked content store.
type Store struct {
	dir    string
	lock   *flock.Flock
	logger *slog.Logger
}

// LockPath returns the advisory lock file guarding the store at dir.
func LockPath(dir string) string {
	return filepath.Clean(dir) + ".lock"
}

// Open locks and opens the store at dir. It blocks until the lock is
// available or ctx is done.
func Open(ctx context.Context, dir string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{dir: filepath.Clean(dir), logger: logger}

	if !opts.Create {
		// A store that is not there gets no lock file either.
		if err := s.stat(); err != nil {
			return nil, err
		}
	}
	if err := s.acquire(ctx, opts.Shared); err != nil {
		return nil, err
	}

	if err := s.prepare(opts); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) acquire(ctx context.Context, shared bool) error {
	s.lock = flock.New(LockPath(s.dir))

	var locked bool
	var err error
	if shared {
		locked, err = s.lock.TryRLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = s.lock.TryLockContext(ctx, lockRetryDelay)
	}
	if err != nil && shared && readOnlyLockErr(err) {
		// Readers on a read-only mount cannot create the lock file, and no
		// writer can be active there either.
		s.logger.Warn("store lock unavailable, verifying unlocked", "path", s.dir, "error", err)
		s.lock = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("lock store %s: %w", s.dir, err)
	}
	if !locked {
		return fmt.Errorf("lock store %s: %w", s.dir, ctx.Err())
	}
	return nil
}

func readOnlyLockErr(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errors.Is(err, unix.EROFS)
}

func (s *Store) prepare(opts Options) error {
	switch err := s.stat(); {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && opts.Create:
		if err := os.Mkdir(s.dir, 0o755); err != nil {
			return err
		}
		if err := platform.SyncDir(s.dir); err != nil {
			return err
		}
		if err := platform.SyncDir(filepath.Dir(s.dir)); err != nil {
			return err
		}
		s.logger.Info("created store", "path", s.dir)
	default:
		return err
	}

	if !opts.Shared {
		removed, err := platform.RemoveStaleTemps(s.dir)
		if err != nil {
			return fmt.Errorf("clean store %s: %w", s.dir, err)
		}
		for _, name := range removed {
			s.logger.Warn("removed stale temporary file", "path", filepath.Join(s.dir, name))
		}
	}
	return nil
}

// stat follows a symlinked store path; anything but a directory is
// ErrNotDirectory.
func (s *Store) stat() error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s (%s)", ErrNotDirectory, s.dir, info.Mode().Type())
	}
	return nil
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// Path returns where the entry for hash lives, whether or not it exists.
func (s *Store) Path(hash string) string {
	return filepath.Join(s.dir, hash)
}

// Close releases the store lock.
func (s *Store) Close() error {
	if s.lock == nil {
		return nil
	}
	err := s.lock.Unlock()
	s.lock = nil
	return err
}

// Ensure makes sure the store holds an entry named hash with the content of
// sourcePath. added reports whether this call created the entry. The caller
// guarantees hash is the content hash of sourcePath.
func (s *Store) Ensure(hash, sourcePath string) (storePath string, added bool, err error) {
	if !digest.ValidHex(hash) {
		return "", false, fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}
	storePath = s.Path(hash)

	exists, err := s.existing(storePath)
	if err != nil || exists {
		if exists {
			s.logger.Debug("store hit", "hash", hash, "path", sourcePath)
		}
		return storePath, false, err
	}

	added, err = s.write(hash, sourcePath, storePath)
	if err != nil {
		return "", false, err
	}
	return storePath, added, nil
}

// existing reports whether storePath is already a regular file.
func (s *Store) existing(storePath string) (bool, error) {
	info, err := os.Lstat(storePath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("%w: %s (%s)", ErrNotRegular, storePath, info.Mode().Type())
	}
	return true, nil
}

func (s *Store) write(hash, sourcePath, storePath string) (bool, error) {
	tmp := platform.TempPath(storePath)
	platform.RegisterTemp(tmp)
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmp)
			platform.DeregisterTemp(tmp)
		}
	}()

	method, err := s.fill(hash, sourcePath, tmp)
	if err != nil {
		return false, err
	}

	if err := os.Chmod(tmp, EntryMode); err != nil {
		return false, err
	}
	if err := platform.SyncPath(tmp); err != nil {
		return false, err
	}

	err = platform.CommitNoReplace(tmp, storePath)
	committed = err == nil || errors.Is(err, fs.ErrExist)
	if errors.Is(err, fs.ErrExist) {
		// Lost a race with another writer: their entry has the same name,
		// hence the same content.
		if _, err := s.existing(storePath); err != nil {
			return false, err
		}
		s.logger.Debug("store entry appeared concurrently", "hash", hash)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("commit %s: %w", storePath, err)
	}

	if err := platform.SyncDir(s.dir); err != nil {
		return true, err
	}
	s.logger.Debug("store entry added", "hash", hash, "path", sourcePath, "method", method.String())
	return true, nil
}

// fill writes sourcePath's content into the new file tmp, cloning when
// possible and otherwise copying and re-hashing.
func (s *Store) fill(hash, sourcePath, tmp string) (platform.CopyMethod, error) {
	err := platform.ReflinkFile(sourcePath, tmp, 0o600)
	if err == nil {
		return platform.Reflink, nil
	}
	if !platform.IsReflinkUnsupported(err) {
		return 0, err
	}
	s.logger.Debug("reflink unsupported, copying", "path", sourcePath, "error", err)

	result, err := CopyVerified(sourcePath, tmp, 0o600, hash)
	if err != nil {
		return 0, err
	}
	return result.Method, nil
}

// CopyVerified fully copies src into the new file dst and checks that the
// copy hashes to want. On any failure dst is removed.
func CopyVerified(src, dst string, perm os.FileMode, want string) (platform.CopyResult, error) {
	info, err := os.Stat(src)
	if err != nil {
		return platform.CopyResult{}, err
	}
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return platform.CopyResult{}, err
	}
	result, err := platform.CopyFile(platform.CopyFileParams{
		DstFd:   f,
		SrcPath: src,
		SrcSize: info.Size(),
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return result, fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}

	got, err := digest.File(dst)
	if err != nil {
		_ = os.Remove(dst)
		return result, err
	}
	if got != want {
		_ = os.Remove(dst)
		return result, fmt.Errorf("%w: copy of %s to %s hashes to %s, want %s",
			ErrContentMismatch, src, dst, got, want)
	}
	return result, nil
}
