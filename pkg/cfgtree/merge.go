// Package cfgtree resolves the effective configuration tree for a run:
// layered-directory merge with concatenation semantics, followed by symlink
// dereferencing into the final tree handed to stages.
package cfgtree

import (
	"io/fs"
	"os"
	"path/filepath"
)

// MergePlan maps each relative path to the ordered list of source files that
// contribute to it. The plan is computed without touching the destination
// filesystem; Materialize writes it out as a separate step.
type MergePlan struct {
	paths []string            // relative paths in first-seen order
	files map[string][]string // relative path -> contributing source files, priority order
}

// PlanMerge walks the source directories in priority order and records which
// source files land at each relative destination path. Empty directories are
// not recorded; directory structure is derived from file paths.
func PlanMerge(sourceDirs []string) (*MergePlan, error) {
	plan := &MergePlan{files: make(map[string][]string)}

	for _, src := range sourceDirs {
		err := filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if entry.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(src, path)
			if err != nil {
				return err
			}

			if _, seen := plan.files[rel]; !seen {
				plan.paths = append(plan.paths, rel)
			}

			plan.files[rel] = append(plan.files[rel], path)

			return nil
		})
		if err != nil {
			return nil, &MergeIOError{Op: "walk", Path: src, Err: err}
		}
	}

	return plan, nil
}

// Paths returns every destination path in first-seen order.
func (p *MergePlan) Paths() []string {
	return p.paths
}

// Contributions returns the ordered source files contributing to rel.
func (p *MergePlan) Contributions(rel string) []string {
	return p.files[rel]
}

// Overlapping returns the paths fed by more than one source. Overlap is
// reported for observability only; concatenation is always allowed.
func (p *MergePlan) Overlapping() map[string][]string {
	overlapping := make(map[string][]string)

	for rel, sources := range p.files {
		if len(sources) > 1 {
			overlapping[rel] = sources
		}
	}

	return overlapping
}

// Materialize recreates destDir and writes the plan out. A path with a
// single contributor is copied verbatim, preserving metadata (symlinks stay
// symlinks until the resolution step). A path with several contributors is
// written as their contents concatenated in priority order, separated by a
// newline.
func (p *MergePlan) Materialize(destDir string) error {
	if err := os.RemoveAll(destDir); err != nil {
		return &MergeIOError{Op: "clean", Path: destDir, Err: err}
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return &MergeIOError{Op: "create", Path: destDir, Err: err}
	}

	for _, rel := range p.paths {
		sources := p.files[rel]
		dest := filepath.Join(destDir, rel)

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return &MergeIOError{Op: "create", Path: filepath.Dir(dest), Err: err}
		}

		if len(sources) == 1 {
			if err := copyEntry(sources[0], dest); err != nil {
				return err
			}

			continue
		}

		if err := concatenate(sources, dest); err != nil {
			return err
		}
	}

	return nil
}

// copyEntry copies one source entry verbatim. Symlinks are recreated as
// symlinks; regular files keep their mode and modification time.
func copyEntry(src, dest string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return &MergeIOError{Op: "stat", Path: src, Err: err}
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return &MergeIOError{Op: "readlink", Path: src, Err: err}
		}

		if err := os.Symlink(target, dest); err != nil {
			return &MergeIOError{Op: "symlink", Path: dest, Err: err}
		}

		return nil
	}

	content, err := os.ReadFile(src)
	if err != nil {
		return &MergeIOError{Op: "read", Path: src, Err: err}
	}

	if err := os.WriteFile(dest, content, info.Mode().Perm()); err != nil {
		return &MergeIOError{Op: "copy", Path: dest, Err: err}
	}

	if err := os.Chtimes(dest, info.ModTime(), info.ModTime()); err != nil {
		return &MergeIOError{Op: "chtimes", Path: dest, Err: err}
	}

	return nil
}

// concatenate layers every contributor onto the destination in priority
// order, newline-separated. Contents are read through symlinks.
func concatenate(sources []string, dest string) error {
	info, err := os.Stat(sources[0])
	if err != nil {
		return &MergeIOError{Op: "stat", Path: sources[0], Err: err}
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return &MergeIOError{Op: "create", Path: dest, Err: err}
	}
	defer func() {
		_ = out.Close()
	}()

	for i, src := range sources {
		content, err := os.ReadFile(src)
		if err != nil {
			return &MergeIOError{Op: "read", Path: src, Err: err}
		}

		if i > 0 {
			if _, err := out.Write([]byte("\n")); err != nil {
				return &MergeIOError{Op: "append", Path: dest, Err: err}
			}
		}

		if _, err := out.Write(content); err != nil {
			return &MergeIOError{Op: "append", Path: dest, Err: err}
		}
	}

	if err := out.Close(); err != nil {
		return &MergeIOError{Op: "close", Path: dest, Err: err}
	}

	return nil
}
