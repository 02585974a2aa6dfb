//go:build !windows

package core

import (
	"os"
	"syscall"
)

// isProcessAlive probes pid with signal 0.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}
