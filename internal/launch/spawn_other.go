//go:build !darwin

package launch

// NewSpawner returns the platform spawner.
func NewSpawner() Spawner { return ExecSpawner{} }
