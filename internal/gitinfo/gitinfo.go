// Package gitinfo queries the local git checkout for run metadata. Git is a
// peripheral collaborator: callers decide whether a missing checkout is
// fatal (repository root discovery) or ignorable (manifest branch/commit).
package gitinfo

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Root returns the top-level directory of the enclosing git checkout.
func Root(ctx context.Context) (string, error) {
	return run(ctx, "rev-parse", "--show-toplevel")
}

// Branch returns the current branch name.
func Branch(ctx context.Context) (string, error) {
	return run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// Commit returns the current commit hash.
func Commit(ctx context.Context) (string, error) {
	return run(ctx, "rev-parse", "HEAD")
}

func run(ctx context.Context, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, "git", args...).Output()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %w", strings.Join(args, " "), err)
	}

	return strings.TrimSpace(string(out)), nil
}
