package cfgtree

import (
	"io"
	"os"
	"path/filepath"
)

// ResolveSymlinks recreates destDir and copies the entire tree from srcDir
// with every symbolic link dereferenced: the link target's content is
// copied, not the link itself, transitively for chained links. File modes
// and modification times are preserved.
func ResolveSymlinks(srcDir, destDir string) error {
	info, err := os.Stat(srcDir)
	if err != nil {
		return &ResolveIOError{Op: "stat", Path: srcDir, Err: err}
	}

	if err := os.RemoveAll(destDir); err != nil {
		return &ResolveIOError{Op: "clean", Path: destDir, Err: err}
	}

	if err := os.MkdirAll(destDir, info.Mode().Perm()); err != nil {
		return &ResolveIOError{Op: "create", Path: destDir, Err: err}
	}

	return copyResolved(srcDir, destDir)
}

func copyResolved(src, dest string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return &ResolveIOError{Op: "read", Path: src, Err: err}
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		destPath := filepath.Join(dest, entry.Name())

		// os.Stat follows the full link chain; a broken link fails here.
		info, err := os.Stat(srcPath)
		if err != nil {
			return &ResolveIOError{Op: "stat", Path: srcPath, Err: err}
		}

		if info.IsDir() {
			if err := os.Mkdir(destPath, info.Mode().Perm()); err != nil {
				return &ResolveIOError{Op: "create", Path: destPath, Err: err}
			}

			if err := copyResolved(srcPath, destPath); err != nil {
				return err
			}

			continue
		}

		if err := copyDereferenced(srcPath, destPath, info); err != nil {
			return err
		}
	}

	return nil
}

func copyDereferenced(srcPath, destPath string, info os.FileInfo) error {
	in, err := os.Open(srcPath)
	if err != nil {
		return &ResolveIOError{Op: "open", Path: srcPath, Err: err}
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return &ResolveIOError{Op: "create", Path: destPath, Err: err}
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()

		return &ResolveIOError{Op: "copy", Path: destPath, Err: err}
	}

	if err := out.Close(); err != nil {
		return &ResolveIOError{Op: "close", Path: destPath, Err: err}
	}

	if err := os.Chtimes(destPath, info.ModTime(), info.ModTime()); err != nil {
		return &ResolveIOError{Op: "chtimes", Path: destPath, Err: err}
	}

	return nil
}
