// Package identity overrides the application identity the platform sees, so
// notifications appear to come from another application.
//
// The override is installed at most once per process and cannot be undone.
// Impersonate must run before the first call into the notification service.
package identity

import "sync"

var (
	once    sync.Once
	current string
	applied bool
)

// Impersonate installs id as the process's application identity. Only the
// first non-empty id is honoured; later calls leave the identity unchanged.
// It reports whether id is now in effect. On platforms or process types
// where the override is not possible it returns false and delivery proceeds
// under the process's real identity.
func Impersonate(id string) bool {
	if id == "" {
		return false
	}
	once.Do(func() {
		current = id
		applied = impersonate(id)
	})
	return applied && current == id
}

// Current returns the identity passed to the first Impersonate call, or ""
// if none was installed.
func Current() string {
	once.Do(func() {})
	return current
}
