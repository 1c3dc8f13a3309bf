package engine

import (
	"context"
	"os"
	"path/filepath"

	"github.com/bamsammich/cpdd/internal/event"
)

// destName returns the name src will have inside the destination directory.
func destName(src string) (string, error) {
	name := filepath.Base(filepath.Clean(src))
	switch name {
	case "/", ".", "..":
		return "", invalidInput("source path has no file name: %q", src)
	}
	return name, nil
}

// copyTree copies src into the destination directory. Directories are walked
// depth-first with an explicit stack; a directory's metadata is replicated
// only after all of its children. ctx is checked between nodes.
func (c *copier) copyTree(ctx context.Context, src string) error {
	name, err := destName(src)
	if err != nil {
		return err
	}

	stack := []task{{src: src, dst: filepath.Join(c.cfg.DstDir, name)}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if t.post {
			if err := c.replicate(t.src, t.dst); err != nil {
				return err
			}
			continue
		}

		next, err := c.copyNode(t)
		if err != nil {
			return err
		}
		stack = append(stack, next...)
	}
	return nil
}

// copyNode handles one source node and returns the tasks it schedules, in
// reverse processing order.
func (c *copier) copyNode(t task) ([]task, error) {
	info, err := os.Lstat(t.src)
	if err != nil {
		return nil, err
	}
	kind := fileTypeOf(info.Mode())
	c.logger.Debug("copying", "path", t.src, "dst", t.dst, "kind", kind.String())

	switch kind {
	case Dir:
		if err := c.copyDir(t.src, t.dst); err != nil {
			return nil, err
		}
		next := []task{{src: t.src, dst: t.dst, post: true}}
		if !c.cfg.Recurse {
			return next, nil
		}
		names, err := readDirNames(t.src)
		if err != nil {
			return nil, err
		}
		for i := len(names) - 1; i >= 0; i-- {
			next = append(next, task{
				src: filepath.Join(t.src, names[i]),
				dst: filepath.Join(t.dst, names[i]),
			})
		}
		return next, nil

	case Regular:
		if err := c.copyFile(t.src, t.dst, info); err != nil {
			return nil, err
		}
		return nil, c.replicate(t.src, t.dst)

	case Symlink:
		if err := c.copySymlink(t.src, t.dst); err != nil {
			return nil, err
		}
		return nil, c.replicate(t.src, t.dst)
	}

	typeErr := &FileTypeError{Path: t.src, Mode: info.Mode()}
	if !c.cfg.SkipInvalid {
		return nil, typeErr
	}
	c.logger.Warn("skipping invalid source", "path", t.src, "kind", info.Mode().Type().String())
	c.stats.AddSkipped(1)
	c.emit(event.Event{Type: event.NodeSkipped, Path: t.src, Error: typeErr})
	return nil, nil
}

// readDirNames lists a directory in the filesystem's native order.
func readDirNames(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Readdirnames(-1)
}
