//go:build linux

// Package notify tests the freedesktop adapter's request mapping and signal
// handling without a session bus.
// Related: internal/notify/service_linux.go
// Tags: notify, linux, dbus

package notify

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariel-frischer/alerter/internal/registry"
)

func TestCapabilitiesFrom(t *testing.T) {
	t.Parallel()

	caps := capabilitiesFrom([]string{"body", "actions", "sound"})
	assert.True(t, caps.Actions)
	assert.True(t, caps.MultipleActions)
	assert.True(t, caps.Sound)
	assert.False(t, caps.Reply)
	assert.False(t, caps.DropdownLabel)

	assert.True(t, capabilitiesFrom([]string{"inline-reply"}).Reply)
}

func TestFreedesktopActions(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		req  Request
		want []string
	}{
		"body click only": {
			want: []string{"default", ""},
		},
		"actions": {
			req:  Request{Actions: []string{"Snooze", "Dismiss"}},
			want: []string{"default", "", "action-0", "Snooze", "action-1", "Dismiss"},
		},
		"reply": {
			req:  Request{ReplyPlaceholder: "Say hi"},
			want: []string{"default", "", "inline-reply", "Reply"},
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, freedesktopActions(tc.req))
		})
	}
}

func TestFreedesktopHints(t *testing.T) {
	t.Parallel()

	hints := freedesktopHints(Request{IgnoreDnD: true, Sound: DefaultSound, ReplyPlaceholder: "?"})
	assert.Equal(t, dbus.MakeVariant(byte(2)), hints["urgency"])
	assert.Equal(t, dbus.MakeVariant("message-new-instant"), hints["sound-name"])
	assert.Equal(t, dbus.MakeVariant("?"), hints["x-kde-reply-placeholder-text"])

	silent := freedesktopHints(Request{})
	assert.Equal(t, dbus.MakeVariant(true), silent["suppress-sound"])
	assert.NotContains(t, silent, "urgency")
}

func TestIconReference(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	icon := filepath.Join(dir, "icon.png")
	require.NoError(t, os.WriteFile(icon, []byte("png"), 0o644))

	assert.Equal(t, "file://"+icon, iconReference(icon))
	assert.Equal(t, "https://example.com/i.png", iconReference("https://example.com/i.png"))
	assert.Equal(t, "dialog-information", iconReference("dialog-information"))
	assert.Empty(t, iconReference(""))
}

func TestActionKind(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		key       string
		wantKind  ActivationKind
		wantIndex int
	}{
		"default":   {key: "default", wantKind: KindContentsClicked, wantIndex: -1},
		"action":    {key: "action-3", wantKind: KindActionClicked, wantIndex: 3},
		"malformed": {key: "action-x", wantKind: KindUnknown, wantIndex: -1},
		"unknown":   {key: "open-settings", wantKind: KindUnknown, wantIndex: -1},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			kind, idx := actionKind(tc.key)
			assert.Equal(t, tc.wantKind, kind)
			assert.Equal(t, tc.wantIndex, idx)
		})
	}
}

func newSignalTestService(t *testing.T) (*freedesktopService, *[]Activation) {
	t.Helper()

	s := &freedesktopService{ledger: registry.NewLedger(t.TempDir())}
	require.NoError(t, s.ledger.Record(registry.Entry{
		Token: "tok-1", PlatformID: "7", Group: "team-x", DeliveredAt: time.Now(),
	}))
	require.NoError(t, s.ledger.Record(registry.Entry{
		Token: "foreign", PlatformID: "8", PID: 1,
	}))

	var got []Activation
	s.OnActivation(func(a Activation) { got = append(got, a) })
	return s, &got
}

func TestFreedesktopSignals(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		signal   *dbus.Signal
		want     []Activation
		wantLeft []string
	}{
		"action invoked": {
			signal:   &dbus.Signal{Name: fdoInterface + ".ActionInvoked", Body: []interface{}{uint32(7), "action-1"}},
			want:     []Activation{{Token: "tok-1", Kind: KindActionClicked, ActionIndex: 1}},
			wantLeft: []string{"tok-1", "foreign"},
		},
		"body clicked": {
			signal:   &dbus.Signal{Name: fdoInterface + ".ActionInvoked", Body: []interface{}{uint32(7), "default"}},
			want:     []Activation{{Token: "tok-1", Kind: KindContentsClicked, ActionIndex: -1}},
			wantLeft: []string{"tok-1", "foreign"},
		},
		"inline reply action waits for text": {
			signal:   &dbus.Signal{Name: fdoInterface + ".ActionInvoked", Body: []interface{}{uint32(7), "inline-reply"}},
			wantLeft: []string{"tok-1", "foreign"},
		},
		"replied": {
			signal:   &dbus.Signal{Name: fdoInterface + ".NotificationReplied", Body: []interface{}{uint32(7), "ok"}},
			want:     []Activation{{Token: "tok-1", Kind: KindReplied, ActionIndex: -1, Text: "ok"}},
			wantLeft: []string{"tok-1", "foreign"},
		},
		"dismissed by user": {
			signal:   &dbus.Signal{Name: fdoInterface + ".NotificationClosed", Body: []interface{}{uint32(7), uint32(2)}},
			want:     []Activation{{Token: "tok-1", Kind: KindDismissed, ActionIndex: -1}},
			wantLeft: []string{"foreign"},
		},
		"closed by call": {
			signal:   &dbus.Signal{Name: fdoInterface + ".NotificationClosed", Body: []interface{}{uint32(7), uint32(3)}},
			wantLeft: []string{"foreign"},
		},
		"other process's notification": {
			signal:   &dbus.Signal{Name: fdoInterface + ".ActionInvoked", Body: []interface{}{uint32(8), "default"}},
			wantLeft: []string{"tok-1", "foreign"},
		},
		"malformed body": {
			signal:   &dbus.Signal{Name: fdoInterface + ".ActionInvoked", Body: []interface{}{"7"}},
			wantLeft: []string{"tok-1", "foreign"},
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s, got := newSignalTestService(t)
			// PID 1 is alive on every linux system, so the foreign entry survives pruning.
			s.handleSignal(tc.signal)

			require.Len(t, *got, len(tc.want))
			for i, want := range tc.want {
				assert.Equal(t, want.Token, (*got)[i].Token)
				assert.Equal(t, want.Kind, (*got)[i].Kind)
				assert.Equal(t, want.ActionIndex, (*got)[i].ActionIndex)
				assert.Equal(t, want.Text, (*got)[i].Text)
				assert.False(t, (*got)[i].DeliveredAt.IsZero())
			}

			entries, err := s.ledger.Entries()
			require.NoError(t, err)
			var left []string
			for _, e := range entries {
				left = append(left, e.Token)
			}
			assert.Equal(t, tc.wantLeft, left)
		})
	}
}
