package launch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// interruptDelay bounds how long an interrupted child may take to exit
// before it is killed.
const interruptDelay = 3 * time.Second

// ExecSpawner runs the container's binary directly, capturing its streams to
// the session files. Used where no launch service exists.
type ExecSpawner struct{}

// Spawn runs the child and waits for it. A non-zero exit is not an error:
// the child records its own status. Cancelling ctx interrupts the child so
// it can withdraw its notification, and Spawn then reports ctx's error.
func (ExecSpawner) Spawn(ctx context.Context, req SpawnRequest) error {
	stdout, err := os.Create(req.Stdout)
	if err != nil {
		return fmt.Errorf("creating stdout capture: %w", err)
	}
	defer stdout.Close()
	stderr, err := os.Create(req.Stderr)
	if err != nil {
		return fmt.Errorf("creating stderr capture: %w", err)
	}
	defer stderr.Close()

	cmd := exec.CommandContext(ctx, req.Bundle.Executable, req.Args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = interruptDelay
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", req.Bundle.Executable, err)
	}
	// The exit code travels through the session status file.
	_ = cmd.Wait()
	return ctx.Err()
}
