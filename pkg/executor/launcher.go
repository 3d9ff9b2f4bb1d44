package executor

import (
	"context"
	"os"
	"os/exec"
)

// Launcher invokes one stage's external entry point. The call blocks until
// the process exits; a non-nil error means the process could not be started
// or exited non-zero.
type Launcher interface {
	Launch(ctx context.Context, entryPoint string, env []string) error
}

// ExecLauncher runs entry points as child processes, streaming their output
// to the orchestrator's stdout/stderr.
type ExecLauncher struct {
	// Dir is the working directory for every stage process, normally the
	// pipeline repository root.
	Dir string
}

func (l *ExecLauncher) Launch(ctx context.Context, entryPoint string, env []string) error {
	cmd := exec.CommandContext(ctx, entryPoint)
	cmd.Dir = l.Dir
	cmd.Env = env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
