//go:build darwin

package launch

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const openPath = "/usr/bin/open"

// LaunchServicesSpawner starts the container through open(1) so that it runs
// as a LaunchServices-managed application.
type LaunchServicesSpawner struct{}

// NewSpawner returns the platform spawner.
func NewSpawner() Spawner { return LaunchServicesSpawner{} }

// Spawn opens a new instance of the container, waits for it to quit and
// leaves its streams in the request's capture files.
func (LaunchServicesSpawner) Spawn(ctx context.Context, req SpawnRequest) error {
	args := []string{
		"-W", "-n",
		"--stdout", req.Stdout,
		"--stderr", req.Stderr,
		req.Bundle.Root,
		"--args",
	}
	args = append(args, req.Args...)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, openPath, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("open %s: %w: %s", req.Bundle.Root, err, msg)
		}
		return fmt.Errorf("open %s: %w", req.Bundle.Root, err)
	}
	return nil
}
