// Package notify delivers a single notification and waits for its outcome.
//
// The package owns the data model (Request, Event, Summary), the Service
// capability interface that platform adapters implement, and the Coordinator:
// the state machine that delivers one request and resolves it to exactly one
// terminal Event.
//
// # Lifecycle
//
//	Idle -> Delivering -> Live -> Completed
//
// Once Live, three watchers race for the single result slot:
//
//   - a poller that checks the platform's delivered set every PollInterval and
//     reports "closed" when the notification disappears without a callback
//   - a timer, armed only when Request.Timeout > 0, that withdraws the
//     notification and reports "timeout"
//   - the Service's activation callback (clicks, actions, replies)
//
// The first event wins; every later one is discarded.
//
// # Platform Support
//
//   - macOS: UserNotifications framework through a cgo bridge (service_darwin.go)
//   - Linux: freedesktop notifications over the D-Bus session bus (service_linux.go)
//   - Windows: toast notifications (service_windows.go)
//
// Adapters whose platform cannot enumerate delivered notifications keep a
// ledger in the state directory (see internal/registry).
//
// # Usage
//
//	svc, err := notify.NewService(notify.ServiceConfig{StateDir: dir})
//	if err != nil {
//		return err
//	}
//	defer svc.Close()
//
//	coord := notify.NewCoordinator(svc)
//	event, err := coord.Run(ctx, req)
package notify
