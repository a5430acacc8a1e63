//go:build windows

package notify

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-toast/toast"

	"github.com/ariel-frischer/alerter/internal/identity"
	"github.com/ariel-frischer/alerter/internal/registry"
)

const defaultAppID = "alerter"

// toastService shows Windows toast notifications. Toasts pushed from a
// console process cannot report clicks back or be withdrawn, so delivery is
// tracked in a registry ledger and only timeout and withdrawal resolve a
// request.
type toastService struct {
	ledger *registry.Ledger

	mu           sync.Mutex
	onActivation func(Activation)
}

func newPlatformService(cfg ServiceConfig) (Service, error) {
	return &toastService{ledger: registry.NewLedger(cfg.StateDir)}, nil
}

func (s *toastService) Name() string { return "Windows toast" }

func (s *toastService) Capabilities() Capabilities {
	return Capabilities{AppIcon: true, Sound: true}
}

func (s *toastService) AuthorizationStatus(context.Context) (AuthStatus, error) {
	return AuthGranted, nil
}

func (s *toastService) RequestAuthorization(context.Context) (bool, error) {
	return true, nil
}

func (s *toastService) Deliver(_ context.Context, req Request) (Handle, error) {
	appID := identity.Current()
	if appID == "" {
		appID = defaultAppID
	}

	message := req.Message
	if req.Subtitle != "" {
		message = req.Subtitle + "\n" + req.Message
	}

	n := toast.Notification{
		AppID:   appID,
		Title:   req.Title,
		Message: message,
	}
	setToastAudio(&n, req.Sound)
	if req.AppIcon != "" {
		if abs, err := filepath.Abs(req.AppIcon); err == nil && fileExists(abs) {
			n.Icon = abs
		}
	}
	if req.Timeout <= 0 || req.Timeout > 25*time.Second {
		n.Duration = toast.Long
	}

	if err := n.Push(); err != nil {
		return Handle{}, fmt.Errorf("%w: %v", ErrServiceRejected, err)
	}

	handle := Handle{Token: req.Token, DeliveredAt: time.Now()}
	if err := s.ledger.Record(registry.Entry{
		Token:       req.Token,
		Group:       req.Group,
		Title:       req.Title,
		Subtitle:    req.Subtitle,
		Message:     req.Message,
		DeliveredAt: handle.DeliveredAt,
	}); err != nil {
		return Handle{}, fmt.Errorf("%w: recording delivery: %v", ErrServiceRejected, err)
	}
	return handle, nil
}

// setToastAudio maps a sound name onto the toast's built-in sounds.
func setToastAudio(n *toast.Notification, sound string) {
	switch strings.ToLower(sound) {
	case "":
		n.Audio = toast.Silent
	case "im":
		n.Audio = toast.IM
	case "mail":
		n.Audio = toast.Mail
	case "reminder":
		n.Audio = toast.Reminder
	case "sms":
		n.Audio = toast.SMS
	default:
		n.Audio = toast.Default
	}
}

func (s *toastService) Delivered(context.Context) ([]Summary, error) {
	entries, err := s.ledger.Entries()
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		out = append(out, Summary{
			Token:       e.Token,
			Group:       e.Group,
			Title:       e.Title,
			Subtitle:    e.Subtitle,
			Message:     e.Message,
			DeliveredAt: e.DeliveredAt,
		})
	}
	return out, nil
}

// Withdraw forgets the toasts; the Action Center copy stays until the user
// clears it.
func (s *toastService) Withdraw(_ context.Context, tokens ...string) error {
	_, err := s.ledger.Drop(tokens...)
	return err
}

func (s *toastService) OnActivation(fn func(Activation)) {
	s.mu.Lock()
	s.onActivation = fn
	s.mu.Unlock()
}

func (s *toastService) Close() error { return nil }
