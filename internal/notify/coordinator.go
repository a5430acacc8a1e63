package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultPollInterval is how often the poller checks the delivered set.
	DefaultPollInterval = 200 * time.Millisecond

	// DefaultPresenceGrace bounds how long the poller tolerates a notification
	// that has not shown up in the delivered set yet. Some platforms list a
	// notification only once it has been presented.
	DefaultPresenceGrace = 2 * time.Second

	withdrawTimeout = 2 * time.Second
)

// State is the coordinator's lifecycle position.
type State int32

const (
	StateIdle State = iota
	StateDelivering
	StateLive
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDelivering:
		return "delivering"
	case StateLive:
		return "live"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrCoordinatorUsed is returned when Deliver is called twice on one Coordinator.
var ErrCoordinatorUsed = errors.New("coordinator already delivered a request")

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPollInterval sets the poller period. Non-positive values are ignored.
func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithPresenceGrace sets how long a never-seen notification is considered
// still pending rather than dismissed.
func WithPresenceGrace(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.presenceGrace = d
		}
	}
}

// WithWarnings routes non-fatal problems (unsupported options) to fn.
func WithWarnings(fn func(error)) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.warn = fn
		}
	}
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// Coordinator delivers one request and resolves it to exactly one Event.
// A Coordinator is single use: construct one per invocation.
type Coordinator struct {
	svc           Service
	pollInterval  time.Duration
	presenceGrace time.Duration
	warn          func(error)
	now           func() time.Time

	// mu guards the request/handle slot and the state.
	mu     sync.Mutex
	state  State
	req    Request
	handle Handle

	// fired is the exit-on-first latch. Only the watcher that flips it may
	// send on result.
	fired  atomic.Bool
	result chan Event

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewCoordinator creates an idle coordinator driving svc.
func NewCoordinator(svc Service, opts ...Option) *Coordinator {
	c := &Coordinator{
		svc:           svc,
		pollInterval:  DefaultPollInterval,
		presenceGrace: DefaultPresenceGrace,
		warn:          func(error) {},
		now:           time.Now,
		result:        make(chan Event, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run delivers req and blocks until its terminal event.
func (c *Coordinator) Run(ctx context.Context, req Request) (Event, error) {
	if err := c.Deliver(ctx, req); err != nil {
		return Event{}, err
	}
	return c.Wait(ctx)
}

// Deliver submits req and arms the completion watchers. Notifications sharing
// req.Group are removed before the new one is submitted. A rejected delivery
// is terminal: the returned error wraps ErrServiceRejected.
func (c *Coordinator) Deliver(ctx context.Context, req Request) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrCoordinatorUsed
	}
	c.state = StateDelivering
	c.req = req
	c.mu.Unlock()

	for _, opt := range unsupportedOptions(req, c.svc.Capabilities()) {
		c.warn(fmt.Errorf("%w: --%s has no effect with %s", ErrUnsupportedFeature, opt, c.svc.Name()))
	}

	// Registered before delivery so an immediate click is not lost.
	c.svc.OnActivation(c.handleActivation)

	if req.Group != "" {
		if n, err := Remove(ctx, c.svc, req.Group); err != nil {
			log.Printf("[notify] replacing group %q: %v", req.Group, err)
		} else if n > 0 {
			log.Printf("[notify] replaced %d notification(s) in group %q", n, req.Group)
		}
	}

	handle, err := c.svc.Deliver(ctx, req)
	if err != nil {
		c.fired.Store(true)
		c.setState(StateCompleted)
		if errors.Is(err, ErrServiceRejected) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrServiceRejected, err)
	}
	log.Printf("[notify] delivered %s (platform id %q)", req.Token, handle.PlatformID)

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)

	c.mu.Lock()
	c.handle = handle
	c.cancel = cancel
	c.group = g
	if c.state == StateDelivering {
		c.state = StateLive
	}
	c.mu.Unlock()

	if c.fired.Load() {
		// A callback beat us here; nothing left to watch.
		return nil
	}

	g.Go(func() error { return c.poll(gctx) })
	if req.Timeout > 0 {
		g.Go(func() error { return c.expire(gctx, req.Timeout) })
	}
	return nil
}

// Wait blocks until the terminal event or until ctx is done, then stops the
// watchers.
func (c *Coordinator) Wait(ctx context.Context) (Event, error) {
	defer c.stop()
	select {
	case ev := <-c.result:
		return ev, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Cleanup withdraws the in-flight notification, if any, closes the latch so
// no event is reported afterwards and stops the watchers. Failures are
// logged and swallowed. It reports whether a withdrawal was attempted.
func (c *Coordinator) Cleanup(ctx context.Context) bool {
	if !c.fired.CompareAndSwap(false, true) {
		return false
	}
	defer c.stop()

	c.mu.Lock()
	prev := c.state
	token := c.req.Token
	c.state = StateCompleted
	c.mu.Unlock()

	if prev != StateDelivering && prev != StateLive {
		return false
	}
	if err := c.svc.Withdraw(ctx, token); err != nil {
		log.Printf("[notify] cleanup of %s: %v", token, err)
	}
	return true
}

func (c *Coordinator) stop() {
	c.mu.Lock()
	cancel, g := c.cancel, c.group
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if g != nil {
		_ = g.Wait()
	}
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// poll reports "closed" once the notification leaves the delivered set
// without a callback having fired.
func (c *Coordinator) poll(ctx context.Context) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	started := time.Now()
	seen := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if c.fired.Load() {
			return nil
		}

		present, err := c.present(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("[notify] poll: %v", err)
			continue
		}
		if present {
			seen = true
			continue
		}
		if !seen && time.Since(started) < c.presenceGrace {
			continue
		}

		c.mu.Lock()
		closeLabel := c.req.CloseLabel
		c.mu.Unlock()
		c.finish(Event{Type: TypeClosed, Value: closeLabel}, false)
		return nil
	}
}

func (c *Coordinator) present(ctx context.Context) (bool, error) {
	delivered, err := c.svc.Delivered(ctx)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	token := c.req.Token
	c.mu.Unlock()
	for _, s := range delivered {
		if s.Token == token {
			return true, nil
		}
	}
	return false, nil
}

// expire withdraws the notification and reports "timeout" after d.
func (c *Coordinator) expire(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil
	case <-timer.C:
	}
	c.finish(Event{Type: TypeTimeout}, true)
	return nil
}

// handleActivation is registered with the service. Callbacks for any token
// other than the in-flight request's are ignored.
func (c *Coordinator) handleActivation(a Activation) {
	c.mu.Lock()
	req, state := c.req, c.state
	c.mu.Unlock()

	if state != StateDelivering && state != StateLive {
		log.Printf("[notify] ignoring activation in state %s", state)
		return
	}
	if a.Token != req.Token {
		log.Printf("[notify] ignoring activation for foreign token %q", a.Token)
		return
	}

	ev := activationEvent(req, a)
	c.finish(ev, true)
}

// activationEvent maps a platform interaction onto the terminal event.
func activationEvent(req Request, a Activation) Event {
	ev := Event{DeliveredAt: a.DeliveredAt}
	switch a.Kind {
	case KindContentsClicked:
		ev.Type = TypeContentsClicked
	case KindActionClicked:
		ev.Type = TypeActionClicked
		if a.ActionIndex >= 0 && a.ActionIndex < len(req.Actions) {
			ev.Value = req.Actions[a.ActionIndex]
			if len(req.Actions) > 1 {
				idx := a.ActionIndex
				ev.ValueIndex = &idx
			}
		}
	case KindReplied:
		ev.Type = TypeReplied
		ev.Value = a.Text
	case KindDismissed:
		ev.Type = TypeClosed
		ev.Value = req.CloseLabel
	default:
		ev.Type = TypeNone
	}
	return ev
}

// finish passes the latch at most once, removes the notification when asked
// and publishes ev. It reports whether ev won.
func (c *Coordinator) finish(ev Event, withdraw bool) bool {
	if !c.fired.CompareAndSwap(false, true) {
		return false
	}

	c.mu.Lock()
	c.state = StateCompleted
	token := c.req.Token
	if ev.DeliveredAt.IsZero() {
		ev.DeliveredAt = c.handle.DeliveredAt
	}
	c.mu.Unlock()
	ev.ActivatedAt = c.now()

	if withdraw {
		ctx, cancel := context.WithTimeout(context.Background(), withdrawTimeout)
		if err := c.svc.Withdraw(ctx, token); err != nil {
			log.Printf("[notify] withdrawing %s: %v", token, err)
		}
		cancel()
	}

	c.result <- ev
	return true
}
