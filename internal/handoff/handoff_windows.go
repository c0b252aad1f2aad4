//go:build windows

package handoff

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
)

// Exec approximates process-image replacement on platforms without
// exec(2): the server runs as a child, received termination signals are
// forwarded to it, and the supervisor exits with the child's exit code.
// On success it does not return; any return is an error.
func Exec(path string) error {
	abs, err := Resolve(path)
	if err != nil {
		return err
	}

	cmd := exec.Command(abs)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", abs, err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	go func() {
		for sig := range sigs {
			_ = cmd.Process.Signal(sig)
		}
	}()

	err = cmd.Wait()
	signal.Stop(sigs)
	close(sigs)

	if exitErr, ok := err.(*exec.ExitError); ok {
		os.Exit(exitErr.ExitCode())
	}
	if err != nil {
		return fmt.Errorf("wait %s: %w", abs, err)
	}
	os.Exit(0)
	return nil
}
