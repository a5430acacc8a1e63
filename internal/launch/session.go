package launch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	stdoutFile = "stdout"
	stderrFile = "stderr"
	statusFile = "status"
	cancelFile = "cancel"

	statusPoll = 50 * time.Millisecond
)

// Session is the scratch directory shared by a parent and its spawned child.
type Session struct {
	Dir string
}

// NewSession creates a fresh session directory.
func NewSession() (*Session, error) {
	dir, err := os.MkdirTemp("", "alerter-session-*")
	if err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	return &Session{Dir: dir}, nil
}

// StdoutPath returns where the child's stdout is captured.
func (s *Session) StdoutPath() string { return filepath.Join(s.Dir, stdoutFile) }

// StderrPath returns where the child's stderr is captured.
func (s *Session) StderrPath() string { return filepath.Join(s.Dir, stderrFile) }

// Remove deletes the session directory.
func (s *Session) Remove() {
	os.RemoveAll(s.Dir)
}

// RecordStatus writes the child's exit code into the session directory dir.
func RecordStatus(dir string, code int) error {
	path := filepath.Join(dir, statusFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(code)), 0o644); err != nil {
		return fmt.Errorf("writing exit status: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming exit status: %w", err)
	}
	return nil
}

// ReadStatus returns the exit code recorded in the session directory dir.
func ReadStatus(dir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(dir, statusFile))
	if err != nil {
		return 0, fmt.Errorf("reading exit status: %w", err)
	}
	code, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parsing exit status %q: %w", data, err)
	}
	return code, nil
}

// RequestCancel tells the child running for session directory dir to stop.
func RequestCancel(dir string) error {
	if err := os.WriteFile(filepath.Join(dir, cancelFile), nil, 0o644); err != nil {
		return fmt.Errorf("writing cancel request: %w", err)
	}
	return nil
}

// AwaitStatus waits up to timeout for the exit status in dir to appear.
func AwaitStatus(dir string, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	for {
		code, err := ReadStatus(dir)
		if err == nil || !time.Now().Before(deadline) {
			return code, err
		}
		time.Sleep(statusPoll)
	}
}

// WatchCancel returns a context that is cancelled once the parent of the
// session directory dir asks for a stop, or once dir disappears because the
// parent is gone.
func WatchCancel(ctx context.Context, dir string, interval time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if cancelRequested(dir) {
				cancel()
				return
			}
		}
	}()
	return ctx, cancel
}

func cancelRequested(dir string) bool {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return true
	}
	_, err := os.Stat(filepath.Join(dir, cancelFile))
	return err == nil
}
