// Package handoff transfers control from the supervisor to the target
// server binary. On unix this replaces the process image, so the server
// inherits the supervisor's PID, file descriptors, and signal
// disposition, and an orchestrator's signals reach it directly.
package handoff

import (
	"fmt"
	"os"
	"path/filepath"
)

// Resolve turns a (possibly relative) binary path into an absolute one
// and verifies it names an executable regular file. Failures here are
// packaging defects, not something the gate can wait out.
func Resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("server binary %s: %w", abs, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("server binary %s is a directory", abs)
	}
	if info.Mode()&0111 == 0 {
		return "", fmt.Errorf("server binary %s is not executable", abs)
	}
	return abs, nil
}
