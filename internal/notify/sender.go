package notify

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"
)

// Service is the capability interface a platform notification adapter
// implements. All methods must be safe for concurrent use: the coordinator
// calls Delivered from its poller while activation callbacks run on the
// platform's own goroutine or thread.
type Service interface {
	// Name identifies the service generation in warnings.
	Name() string

	// Capabilities reports which request options the service honours.
	Capabilities() Capabilities

	// AuthorizationStatus reports whether the sender may present notifications.
	AuthorizationStatus(ctx context.Context) (AuthStatus, error)

	// RequestAuthorization asks the user for permission and reports the answer.
	RequestAuthorization(ctx context.Context) (bool, error)

	// Deliver submits the request and returns the handle of the live notification.
	Deliver(ctx context.Context, req Request) (Handle, error)

	// Delivered lists the notifications currently delivered by this sender.
	Delivered(ctx context.Context) ([]Summary, error)

	// Withdraw removes the delivered notifications carrying the given tokens.
	// Unknown tokens are ignored.
	Withdraw(ctx context.Context, tokens ...string) error

	// OnActivation registers the callback invoked for user interactions.
	// Only the last registered callback is kept.
	OnActivation(fn func(Activation))

	// Close releases platform resources.
	Close() error
}

// MainLooper is implemented by services whose callbacks are dispatched by an
// event loop that must run on the process's main thread.
type MainLooper interface {
	// RunMainLoop blocks the calling (main) thread until StopMainLoop is called.
	RunMainLoop()
	// StopMainLoop makes RunMainLoop return. Safe to call from any goroutine,
	// before or after RunMainLoop starts.
	StopMainLoop()
}

// Capabilities lists the request options a service can honour.
type Capabilities struct {
	AppIcon         bool
	ContentImage    bool
	Actions         bool
	MultipleActions bool
	DropdownLabel   bool
	Reply           bool
	Sound           bool
	IgnoreDnD       bool
}

// ServiceConfig configures the platform service.
type ServiceConfig struct {
	// StateDir holds the delivered-notification ledger for adapters that
	// cannot enumerate delivered notifications themselves.
	StateDir string
}

// NewService creates the notification service for the current operating system.
// It returns an error wrapping ErrUnsupportedPlatform when none is available.
func NewService(cfg ServiceConfig) (Service, error) {
	svc, err := newPlatformService(cfg)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// Platform returns the current operating system name
func Platform() string {
	return runtime.GOOS
}

// List returns the delivered notifications matching the group filter.
// GroupAll matches every notification.
func List(ctx context.Context, svc Service, group string) ([]Summary, error) {
	delivered, err := svc.Delivered(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing delivered notifications: %w", err)
	}
	var matches []Summary
	for _, s := range delivered {
		if MatchesGroup(group, s.Group) {
			matches = append(matches, s)
		}
	}
	return matches, nil
}

// Remove withdraws every delivered notification matching the group filter and
// returns how many were removed. Zero matches is not an error.
func Remove(ctx context.Context, svc Service, group string) (int, error) {
	matches, err := List(ctx, svc, group)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, nil
	}
	tokens := make([]string, 0, len(matches))
	for _, s := range matches {
		tokens = append(tokens, s.Token)
	}
	if err := svc.Withdraw(ctx, tokens...); err != nil {
		return 0, fmt.Errorf("removing notifications: %w", err)
	}
	return len(matches), nil
}

// Authorize makes sure the sender may present notifications, prompting the
// user when the decision is still open. prompting is called right before the
// prompt and returns a function that ends the wait indicator; it may be nil.
func Authorize(ctx context.Context, svc Service, prompting func() func()) error {
	status, err := svc.AuthorizationStatus(ctx)
	if err != nil {
		// The query is advisory; asking is still allowed.
		status = AuthUndetermined
	}

	switch status {
	case AuthGranted:
		return nil
	case AuthDenied:
		return fmt.Errorf("%w: allow notifications for this sender in the system notification settings", ErrAuthorizationDenied)
	}

	stop := func() {}
	if prompting != nil {
		stop = prompting()
	}
	granted, err := svc.RequestAuthorization(ctx)
	stop()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthorizationDenied, err)
	}
	if !granted {
		return fmt.Errorf("%w: allow notifications for this sender in the system notification settings", ErrAuthorizationDenied)
	}
	return nil
}

// unsupportedOptions names the request options caps cannot honour.
func unsupportedOptions(req Request, caps Capabilities) []string {
	var opts []string
	if req.AppIcon != "" && !caps.AppIcon {
		opts = append(opts, "app-icon")
	}
	if req.ContentImage != "" && !caps.ContentImage {
		opts = append(opts, "content-image")
	}
	if len(req.Actions) > 0 && !caps.Actions {
		opts = append(opts, "actions")
	} else if len(req.Actions) > 1 && !caps.MultipleActions {
		opts = append(opts, "actions")
	}
	if req.DropdownLabel != "" && !caps.DropdownLabel {
		opts = append(opts, "dropdown-label")
	}
	if req.ReplyPlaceholder != "" && !caps.Reply {
		opts = append(opts, "reply")
	}
	if req.Sound != "" && !caps.Sound {
		opts = append(opts, "sound")
	}
	if req.IgnoreDnD && !caps.IgnoreDnD {
		opts = append(opts, "ignore-dnd")
	}
	return opts
}

// fileExists reports whether path names an existing regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// summaryTime converts platform epoch seconds to a time, zero for unknown.
func summaryTime(epoch float64) time.Time {
	if epoch <= 0 {
		return time.Time{}
	}
	sec := int64(epoch)
	nsec := int64((epoch - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}
