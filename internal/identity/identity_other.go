//go:build !darwin || !cgo

package identity

import "runtime"

// impersonate has nothing to patch outside macOS: the linux and windows
// adapters pass the identity to the service explicitly. A darwin build
// without cgo cannot reach the Objective-C runtime.
func impersonate(string) bool {
	return runtime.GOOS != "darwin"
}
