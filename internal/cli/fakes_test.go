// Package cli test doubles for the notification service and relaunch protocol.
// Related: internal/cli/run.go
// Tags: cli, fakes, test-doubles
package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ariel-frischer/alerter/internal/config"
	"github.com/ariel-frischer/alerter/internal/launch"
	"github.com/ariel-frischer/alerter/internal/notify"
	"github.com/ariel-frischer/alerter/internal/progress"
)

// fakeService is an in-memory notify.Service.
type fakeService struct {
	mu           sync.Mutex
	caps         notify.Capabilities
	status       notify.AuthStatus
	grant        bool
	deliverErr   error
	delivered    []notify.Summary
	requests     []notify.Request
	withdrawn    []string
	onActivation func(notify.Activation)
	closed       bool

	// react runs on its own goroutine after each successful Deliver.
	react func(s *fakeService, req notify.Request)
}

func newFakeService() *fakeService {
	return &fakeService{
		caps: notify.Capabilities{
			AppIcon: true, ContentImage: true, Actions: true, MultipleActions: true,
			DropdownLabel: true, Reply: true, Sound: true, IgnoreDnD: true,
		},
		status: notify.AuthGranted,
		grant:  true,
	}
}

func (s *fakeService) Name() string                      { return "fake" }
func (s *fakeService) Capabilities() notify.Capabilities { return s.caps }

func (s *fakeService) AuthorizationStatus(context.Context) (notify.AuthStatus, error) {
	return s.status, nil
}

func (s *fakeService) RequestAuthorization(context.Context) (bool, error) {
	return s.grant, nil
}

func (s *fakeService) Deliver(_ context.Context, req notify.Request) (notify.Handle, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	if s.deliverErr != nil {
		s.mu.Unlock()
		return notify.Handle{}, s.deliverErr
	}
	now := time.Now()
	s.delivered = append(s.delivered, notify.Summary{
		Token: req.Token, Group: req.Group, Title: req.Title,
		Subtitle: req.Subtitle, Message: req.Message, DeliveredAt: now,
	})
	react := s.react
	s.mu.Unlock()

	if react != nil {
		go react(s, req)
	}
	return notify.Handle{Token: req.Token, PlatformID: req.Token, DeliveredAt: now}, nil
}

func (s *fakeService) Delivered(context.Context) ([]notify.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Summary(nil), s.delivered...), nil
}

func (s *fakeService) Withdraw(_ context.Context, tokens ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, token := range tokens {
		s.withdrawn = append(s.withdrawn, token)
		s.dropLocked(token)
	}
	return nil
}

func (s *fakeService) OnActivation(fn func(notify.Activation)) {
	s.mu.Lock()
	s.onActivation = fn
	s.mu.Unlock()
}

func (s *fakeService) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeService) activate(a notify.Activation) {
	s.mu.Lock()
	fn := s.onActivation
	s.mu.Unlock()
	if fn != nil {
		fn(a)
	}
}

// dismiss drops token from the delivered set without a callback.
func (s *fakeService) dismiss(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(token)
}

func (s *fakeService) dropLocked(token string) {
	kept := s.delivered[:0]
	for _, d := range s.delivered {
		if d.Token != token {
			kept = append(kept, d)
		}
	}
	s.delivered = kept
}

func (s *fakeService) seed(groups ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, g := range groups {
		s.delivered = append(s.delivered, notify.Summary{
			Token:   notify.NewToken(),
			Group:   g,
			Title:   "Title " + g,
			Message: "Message " + string(rune('a'+i)),
		})
	}
}

func (s *fakeService) groups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, d := range s.delivered {
		out = append(out, d.Group)
	}
	return out
}

func (s *fakeService) lastRequest() notify.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return notify.Request{}
	}
	return s.requests[len(s.requests)-1]
}

func (s *fakeService) withdrawnTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.withdrawn...)
}

// fakeRelauncher records the invocation and answers with a canned result.
type fakeRelauncher struct {
	code    int
	handled bool
	err     error
	calls   []launch.Invocation
}

func (f *fakeRelauncher) Ensure(_ context.Context, inv launch.Invocation) (int, bool, error) {
	f.calls = append(f.calls, inv)
	return f.code, f.handled, f.err
}

// syncBuffer lets spinner goroutines and the test share a buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// harness wires an app to fakes and captures its streams.
type harness struct {
	app        *app
	svc        *fakeService
	relauncher *fakeRelauncher
	cfg        *config.Configuration
	stdout     *bytes.Buffer
	stderr     *bytes.Buffer
	progress   *syncBuffer
	serviceErr error
	services   int
}

func newHarness(t *testing.T, args ...string) *harness {
	t.Helper()
	h := &harness{
		svc:        newFakeService(),
		relauncher: &fakeRelauncher{},
		cfg: &config.Configuration{
			Sender:       "com.example.alerter-test",
			Title:        "Terminal",
			PollInterval: 10 * time.Millisecond,
			StateDir:     t.TempDir(),
			AppDir:       t.TempDir(),
		},
		stdout:   &bytes.Buffer{},
		stderr:   &bytes.Buffer{},
		progress: &syncBuffer{},
	}
	h.app = &app{
		stdin:           strings.NewReader(""),
		stdout:          h.stdout,
		stderr:          h.stderr,
		stdinIsTerminal: func() bool { return true },
		args:            args,
		executable:      func() (string, error) { return "/usr/local/bin/alerter", nil },
		now:             time.Now,
		loadConfig:      func(string) (*config.Configuration, error) { return h.cfg, nil },
		newService: func(notify.ServiceConfig) (notify.Service, error) {
			h.services++
			if h.serviceErr != nil {
				return nil, h.serviceErr
			}
			return h.svc, nil
		},
		newRelauncher: func(*config.Configuration) ensurer { return h.relauncher },
		indicator: func() *progress.Indicator {
			return progress.NewIndicator(io.Discard, progress.TerminalCapabilities{})
		},
	}
	return h
}

func (h *harness) pipe(input string) *harness {
	h.app.stdin = strings.NewReader(input)
	h.app.stdinIsTerminal = func() bool { return false }
	return h
}

// terminal makes waiting indicators behave as on an interactive terminal.
func (h *harness) terminal() *harness {
	h.app.indicator = func() *progress.Indicator {
		return progress.NewIndicator(h.progress, progress.TerminalCapabilities{IsTTY: true})
	}
	return h
}

func (h *harness) run() int {
	return h.app.execute(context.Background())
}
