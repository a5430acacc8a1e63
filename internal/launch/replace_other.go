//go:build !unix

package launch

import "errors"

type noReplacer struct{}

// NewReplacer returns a Replacer that always fails: the platform cannot
// replace a process image.
func NewReplacer() Replacer { return noReplacer{} }

func (noReplacer) Replace(string, []string, []string) error {
	return errors.New("process replacement is not supported on this platform")
}
