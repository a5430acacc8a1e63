//go:build unix

package launch

import "golang.org/x/sys/unix"

type execReplacer struct{}

// NewReplacer returns a Replacer backed by execve(2).
func NewReplacer() Replacer { return execReplacer{} }

func (execReplacer) Replace(path string, argv, env []string) error {
	return unix.Exec(path, argv, env)
}
