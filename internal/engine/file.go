package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bamsammich/cpdd/internal/digest"
	"github.com/bamsammich/cpdd/internal/event"
	"github.com/bamsammich/cpdd/internal/platform"
	"github.com/bamsammich/cpdd/internal/store"
)

// copyFile stores src's content and places it at dst.
func (c *copier) copyFile(src, dst string, info fs.FileInfo) error {
	hash, err := digest.File(src)
	if err != nil {
		return err
	}
	c.stats.AddBytesHashed(info.Size())

	storePath, added, err := c.store.Ensure(hash, src)
	if err != nil {
		return err
	}
	if added {
		c.stats.AddStoreWrites(1)
		c.emit(event.Event{Type: event.StoreAdded, Path: src, Dst: storePath, Hash: hash, Size: info.Size()})
	} else {
		c.stats.AddStoreHits(1)
		c.emit(event.Event{Type: event.StoreHit, Path: src, Dst: storePath, Hash: hash, Size: info.Size()})
	}

	dstInfo, err := os.Lstat(dst)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.logger.Debug("destination file not found, creating", "dst", dst)
	case err != nil:
		return err
	case c.cfg.Overwrite && !dstInfo.IsDir():
		if err := c.remove(src, dst, dstInfo); err != nil {
			return err
		}
	default:
		same, err := sameContent(dst, dstInfo, info.Size(), hash)
		if err != nil {
			return err
		}
		if same {
			// Assumed to share extents with the store entry already.
			c.logger.Info("destination file already exists, skipping", "dst", dst, "hash", hash)
			c.stats.AddFilesUpToDate(1)
			c.emit(event.Event{Type: event.FileUpToDate, Path: src, Dst: dst, Hash: hash, Size: info.Size()})
			return nil
		}
		if err := c.backup(src, dst); err != nil {
			return err
		}
	}

	return c.link(src, storePath, dst, hash, info.Size())
}

func sameContent(dst string, dstInfo fs.FileInfo, size int64, hash string) (bool, error) {
	if !dstInfo.Mode().IsRegular() || dstInfo.Size() != size {
		return false, nil
	}
	dstHash, err := digest.File(dst)
	if err != nil {
		return false, err
	}
	return dstHash == hash, nil
}

// link places a reflink of the store entry at dst, which must not exist.
// Without reflink support the entry is copied and re-verified instead,
// unless RequireReflink is set.
func (c *copier) link(src, storePath, dst, hash string, size int64) error {
	tmp := platform.TempPath(dst)
	platform.RegisterTemp(tmp)
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmp)
			platform.DeregisterTemp(tmp)
		}
	}()

	method := platform.Reflink
	err := platform.ReflinkFile(storePath, tmp, 0o600)
	if err != nil {
		if c.cfg.RequireReflink || !platform.IsReflinkUnsupported(err) {
			return fmt.Errorf("reflink %s -> %s: %w", storePath, dst, err)
		}
		c.logger.Debug("reflink unsupported, copying", "path", storePath, "dst", dst, "error", err)
		result, err := store.CopyVerified(storePath, tmp, 0o600, hash)
		if err != nil {
			return err
		}
		method = result.Method
	}

	if err := platform.SyncPath(tmp); err != nil {
		return err
	}
	err = platform.CommitNoReplace(tmp, dst)
	committed = err == nil || errors.Is(err, fs.ErrExist)
	if err != nil {
		return fmt.Errorf("commit %s: %w", dst, err)
	}
	if err := platform.SyncDir(filepath.Dir(dst)); err != nil {
		return err
	}

	if method == platform.Reflink {
		c.stats.AddReflinks(1)
	} else {
		c.stats.AddFullCopies(1)
	}
	c.stats.AddFilesLinked(1)
	c.stats.AddBytesLinked(size)
	c.emit(event.Event{
		Type:   event.FileLinked,
		Path:   src,
		Dst:    dst,
		Hash:   hash,
		Method: method.String(),
		Size:   size,
	})
	return nil
}
