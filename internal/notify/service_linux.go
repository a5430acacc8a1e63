//go:build linux

package notify

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/ariel-frischer/alerter/internal/identity"
	"github.com/ariel-frischer/alerter/internal/registry"
)

const (
	fdoDest      = "org.freedesktop.Notifications"
	fdoPath      = dbus.ObjectPath("/org/freedesktop/Notifications")
	fdoInterface = "org.freedesktop.Notifications"

	fdoActionDefault = "default"
	fdoActionReply   = "inline-reply"
	fdoActionPrefix  = "action-"

	// NotificationClosed reason for a user dismissal
	fdoClosedDismissed = 2

	// urgency hint values
	fdoUrgencyCritical = byte(2)

	defaultAppName = "alerter"
)

// freedesktopService delivers through the freedesktop notification server on
// the session bus. The server cannot enumerate its notifications, so
// deliveries are tracked in a registry ledger.
type freedesktopService struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	ledger  *registry.Ledger
	caps    Capabilities
	signals chan *dbus.Signal

	mu           sync.Mutex
	onActivation func(Activation)

	done      chan struct{}
	closeOnce sync.Once
}

func newPlatformService(cfg ServiceConfig) (Service, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to the session bus: %v", ErrUnsupportedPlatform, err)
	}
	s, err := newFreedesktopService(conn, registry.NewLedger(cfg.StateDir))
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func newFreedesktopService(conn *dbus.Conn, ledger *registry.Ledger) (*freedesktopService, error) {
	s := &freedesktopService{
		conn:    conn,
		obj:     conn.Object(fdoDest, fdoPath),
		ledger:  ledger,
		signals: make(chan *dbus.Signal, 16),
		done:    make(chan struct{}),
	}

	var serverCaps []string
	if err := s.obj.Call(fdoInterface+".GetCapabilities", 0).Store(&serverCaps); err != nil {
		return nil, fmt.Errorf("%w: no notification server on the session bus: %v", ErrUnsupportedPlatform, err)
	}
	s.caps = capabilitiesFrom(serverCaps)
	log.Printf("[notify] freedesktop server capabilities: %s", strings.Join(serverCaps, ","))

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(fdoPath),
		dbus.WithMatchInterface(fdoInterface),
	); err != nil {
		return nil, fmt.Errorf("subscribing to notification signals: %w", err)
	}
	conn.Signal(s.signals)
	go s.dispatch()
	return s, nil
}

func capabilitiesFrom(serverCaps []string) Capabilities {
	caps := Capabilities{
		AppIcon:      true,
		ContentImage: true,
		IgnoreDnD:    true,
	}
	for _, c := range serverCaps {
		switch c {
		case "actions":
			caps.Actions = true
			caps.MultipleActions = true
		case "inline-reply":
			caps.Reply = true
		case "sound":
			caps.Sound = true
		}
	}
	return caps
}

func (s *freedesktopService) Name() string { return "freedesktop notifications" }

func (s *freedesktopService) Capabilities() Capabilities { return s.caps }

// The freedesktop protocol has no permission model.
func (s *freedesktopService) AuthorizationStatus(context.Context) (AuthStatus, error) {
	return AuthGranted, nil
}

func (s *freedesktopService) RequestAuthorization(context.Context) (bool, error) {
	return true, nil
}

func (s *freedesktopService) Deliver(ctx context.Context, req Request) (Handle, error) {
	appName := identity.Current()
	if appName == "" {
		appName = defaultAppName
	}

	body := req.Message
	if req.Subtitle != "" {
		body = req.Subtitle + "\n" + req.Message
	}

	var id uint32
	call := s.obj.CallWithContext(ctx, fdoInterface+".Notify", 0,
		appName,
		uint32(0),
		iconReference(req.AppIcon),
		req.Title,
		body,
		freedesktopActions(req),
		freedesktopHints(req),
		int32(0), // never expire: dismissal is the user's call
	)
	if err := call.Store(&id); err != nil {
		return Handle{}, fmt.Errorf("%w: %v", ErrServiceRejected, err)
	}

	handle := Handle{Token: req.Token, PlatformID: strconv.FormatUint(uint64(id), 10), DeliveredAt: time.Now()}
	if err := s.ledger.Record(registry.Entry{
		Token:       req.Token,
		PlatformID:  handle.PlatformID,
		Group:       req.Group,
		Title:       req.Title,
		Subtitle:    req.Subtitle,
		Message:     req.Message,
		DeliveredAt: handle.DeliveredAt,
	}); err != nil {
		// Without the entry the poller would report an immediate close.
		s.closeNotification(ctx, handle.PlatformID)
		return Handle{}, fmt.Errorf("%w: recording delivery: %v", ErrServiceRejected, err)
	}
	return handle, nil
}

func freedesktopActions(req Request) []string {
	actions := []string{fdoActionDefault, ""}
	for i, label := range req.Actions {
		actions = append(actions, fdoActionPrefix+strconv.Itoa(i), label)
	}
	if req.ReplyPlaceholder != "" {
		actions = append(actions, fdoActionReply, "Reply")
	}
	return actions
}

func freedesktopHints(req Request) map[string]dbus.Variant {
	hints := map[string]dbus.Variant{}
	if req.IgnoreDnD {
		hints["urgency"] = dbus.MakeVariant(fdoUrgencyCritical)
	}
	switch req.Sound {
	case "":
		hints["suppress-sound"] = dbus.MakeVariant(true)
	case DefaultSound:
		hints["sound-name"] = dbus.MakeVariant("message-new-instant")
	default:
		if fileExists(req.Sound) {
			hints["sound-file"] = dbus.MakeVariant(req.Sound)
		} else {
			hints["sound-name"] = dbus.MakeVariant(req.Sound)
		}
	}
	if req.ContentImage != "" {
		hints["image-path"] = dbus.MakeVariant(iconReference(req.ContentImage))
	}
	if req.ReplyPlaceholder != "" {
		hints["x-kde-reply-placeholder-text"] = dbus.MakeVariant(req.ReplyPlaceholder)
	}
	return hints
}

// iconReference turns a local path into the file URI the server expects;
// URIs and icon names pass through.
func iconReference(ref string) string {
	if ref == "" || strings.Contains(ref, "://") {
		return ref
	}
	if fileExists(ref) {
		if abs, err := filepath.Abs(ref); err == nil {
			return "file://" + abs
		}
	}
	return ref
}

func (s *freedesktopService) Delivered(context.Context) ([]Summary, error) {
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

func (s *freedesktopService) Withdraw(ctx context.Context, tokens ...string) error {
	dropped, err := s.ledger.Drop(tokens...)
	if err != nil {
		return err
	}
	for _, e := range dropped {
		s.closeNotification(ctx, e.PlatformID)
	}
	return nil
}

func (s *freedesktopService) closeNotification(ctx context.Context, platformID string) {
	id, err := strconv.ParseUint(platformID, 10, 32)
	if err != nil {
		return
	}
	call := s.obj.CallWithContext(ctx, fdoInterface+".CloseNotification", 0, uint32(id))
	if call.Err != nil {
		log.Printf("[notify] closing notification %d: %v", id, call.Err)
	}
}

func (s *freedesktopService) OnActivation(fn func(Activation)) {
	s.mu.Lock()
	s.onActivation = fn
	s.mu.Unlock()
}

func (s *freedesktopService) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.RemoveSignal(s.signals)
		err = s.conn.Close()
	})
	return err
}

// dispatch turns server signals into activations and ledger updates.
func (s *freedesktopService) dispatch() {
	for {
		select {
		case <-s.done:
			return
		case sig, ok := <-s.signals:
			if !ok {
				return
			}
			s.handleSignal(sig)
		}
	}
}

func (s *freedesktopService) handleSignal(sig *dbus.Signal) {
	if sig == nil || len(sig.Body) < 2 {
		return
	}
	id, ok := sig.Body[0].(uint32)
	if !ok {
		return
	}
	platformID := strconv.FormatUint(uint64(id), 10)

	switch sig.Name {
	case fdoInterface + ".ActionInvoked":
		key, _ := sig.Body[1].(string)
		kind, index := actionKind(key)
		if key == fdoActionReply {
			// The text follows in NotificationReplied.
			return
		}
		s.emit(platformID, Activation{Kind: kind, ActionIndex: index})

	case fdoInterface + ".NotificationReplied":
		text, _ := sig.Body[1].(string)
		s.emit(platformID, Activation{Kind: KindReplied, ActionIndex: -1, Text: text})

	case fdoInterface + ".NotificationClosed":
		reason, _ := sig.Body[1].(uint32)
		if reason == fdoClosedDismissed {
			s.emit(platformID, Activation{Kind: KindDismissed, ActionIndex: -1})
		}
		if _, err := s.ledger.DropPlatformID(platformID); err != nil {
			log.Printf("[notify] dropping closed notification %s: %v", platformID, err)
		}
	}
}

func actionKind(key string) (ActivationKind, int) {
	switch {
	case key == fdoActionDefault:
		return KindContentsClicked, -1
	case strings.HasPrefix(key, fdoActionPrefix):
		idx, err := strconv.Atoi(strings.TrimPrefix(key, fdoActionPrefix))
		if err != nil {
			return KindUnknown, -1
		}
		return KindActionClicked, idx
	default:
		return KindUnknown, -1
	}
}

// emit resolves the platform id to a token and hands the activation to the
// registered callback. Signals are broadcast on the bus, so notifications
// owned by other alerter processes are skipped here.
func (s *freedesktopService) emit(platformID string, a Activation) {
	entry, ok, err := s.ledger.LookupPlatformID(platformID)
	if err != nil || !ok {
		return
	}
	if entry.PID != os.Getpid() {
		return
	}
	a.Token = entry.Token
	a.DeliveredAt = entry.DeliveredAt

	s.mu.Lock()
	fn := s.onActivation
	s.mu.Unlock()
	if fn != nil {
		fn(a)
	}
}
