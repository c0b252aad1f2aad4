//go:build unix

package handoff

import (
	"fmt"
	"os"
	"syscall"
)

// Exec replaces the current process image with the server binary, passing
// no arguments and inheriting the environment. On success it does not
// return; any return is an error.
func Exec(path string) error {
	abs, err := Resolve(path)
	if err != nil {
		return err
	}
	if err := syscall.Exec(abs, []string{abs}, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", abs, err)
	}
	// Unreachable: a successful exec never returns
	return nil
}
