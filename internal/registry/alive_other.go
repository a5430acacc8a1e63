//go:build !unix && !windows

package registry

func processAlive(int) bool { return true }
