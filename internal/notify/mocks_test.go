// Package notify provides a mock Service for coordinator and list/remove tests.
// Related: internal/notify/sender.go
// Tags: notify, mocks, testing

package notify

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MockService is an in-memory Service. It records calls and keeps a delivered
// set that Deliver adds to and Withdraw removes from.
type MockService struct {
	mu sync.Mutex

	// Configuration
	caps          Capabilities
	authStatus    AuthStatus
	authStatusErr error
	grant         bool
	requestErr    error
	DeliverError  error
	DeliveredErr  error
	// hidden keeps delivered notifications out of Delivered, like a
	// platform that lists notifications late or never.
	hidden      bool
	DeliverHook func(Request)

	// State
	delivered    []Summary
	onActivation func(Activation)
	nextID       int

	// Call tracking
	Calls         []string
	DeliverCalls  []Request
	WithdrawCalls [][]string
	AuthRequests  int
}

// NewMockService creates a mock with every capability and granted authorization.
func NewMockService() *MockService {
	return &MockService{
		caps: Capabilities{
			AppIcon: true, ContentImage: true, Actions: true, MultipleActions: true,
			DropdownLabel: true, Reply: true, Sound: true, IgnoreDnD: true,
		},
		authStatus: AuthGranted,
		grant:      true,
	}
}

// WithCapabilities replaces the reported capabilities.
func (m *MockService) WithCapabilities(c Capabilities) *MockService {
	m.caps = c
	return m
}

// WithAuthorization configures the status and the answer to a prompt.
func (m *MockService) WithAuthorization(status AuthStatus, statusErr error, grant bool, requestErr error) *MockService {
	m.authStatus = status
	m.authStatusErr = statusErr
	m.grant = grant
	m.requestErr = requestErr
	return m
}

// WithDeliverError makes Deliver fail.
func (m *MockService) WithDeliverError(err error) *MockService {
	m.DeliverError = err
	return m
}

// WithHiddenDeliveries keeps deliveries out of Delivered.
func (m *MockService) WithHiddenDeliveries() *MockService {
	m.hidden = true
	return m
}

// Seed adds already delivered notifications.
func (m *MockService) Seed(items ...Summary) *MockService {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered = append(m.delivered, items...)
	return m
}

func (m *MockService) Name() string { return "mock" }

func (m *MockService) Capabilities() Capabilities { return m.caps }

func (m *MockService) AuthorizationStatus(context.Context) (AuthStatus, error) {
	return m.authStatus, m.authStatusErr
}

func (m *MockService) RequestAuthorization(context.Context) (bool, error) {
	m.mu.Lock()
	m.AuthRequests++
	m.mu.Unlock()
	return m.grant, m.requestErr
}

func (m *MockService) Deliver(_ context.Context, req Request) (Handle, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, "deliver:"+req.Token)
	m.DeliverCalls = append(m.DeliverCalls, req)
	if m.DeliverError != nil {
		m.mu.Unlock()
		return Handle{}, m.DeliverError
	}
	m.nextID++
	now := time.Now()
	if !m.hidden {
		m.delivered = append(m.delivered, Summary{
			Token: req.Token, Group: req.Group, Title: req.Title,
			Subtitle: req.Subtitle, Message: req.Message, DeliveredAt: now,
		})
	}
	hook := m.DeliverHook
	id := strconv.Itoa(m.nextID)
	m.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	return Handle{Token: req.Token, PlatformID: id, DeliveredAt: now}, nil
}

func (m *MockService) Delivered(context.Context) ([]Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeliveredErr != nil {
		return nil, m.DeliveredErr
	}
	return append([]Summary(nil), m.delivered...), nil
}

func (m *MockService) Withdraw(_ context.Context, tokens ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WithdrawCalls = append(m.WithdrawCalls, tokens)
	for _, t := range tokens {
		m.Calls = append(m.Calls, "withdraw:"+t)
	}
	m.removeLocked(tokens...)
	return nil
}

func (m *MockService) OnActivation(fn func(Activation)) {
	m.mu.Lock()
	m.onActivation = fn
	m.mu.Unlock()
}

func (m *MockService) Close() error { return nil }

// Activate simulates a user interaction reported through the callback.
func (m *MockService) Activate(a Activation) {
	m.mu.Lock()
	fn := m.onActivation
	m.mu.Unlock()
	if fn != nil {
		fn(a)
	}
}

// Dismiss simulates a dismissal the platform does not report as a callback.
func (m *MockService) Dismiss(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(token)
}

// DeliveredTokens returns the tokens currently delivered.
func (m *MockService) DeliveredTokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	tokens := make([]string, 0, len(m.delivered))
	for _, s := range m.delivered {
		tokens = append(tokens, s.Token)
	}
	return tokens
}

// WithdrawCount returns how many Withdraw calls were made.
func (m *MockService) WithdrawCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.WithdrawCalls)
}

// CallLog returns a copy of the ordered call log.
func (m *MockService) CallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}

func (m *MockService) removeLocked(tokens ...string) {
	drop := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		drop[t] = true
	}
	kept := m.delivered[:0]
	for _, s := range m.delivered {
		if !drop[s.Token] {
			kept = append(kept, s)
		}
	}
	m.delivered = kept
}

// Ensure MockService implements Service
var _ Service = (*MockService)(nil)
