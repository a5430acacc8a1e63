//go:build !linux && !windows && !(darwin && cgo)

package notify

import "fmt"

func newPlatformService(ServiceConfig) (Service, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, Platform())
}
