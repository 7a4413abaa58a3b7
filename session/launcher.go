package session

import (
	"fmt"
	"os/exec"
)

// launchTerminal starts the terminal executable and leaves it running
// detached. The caller waits LaunchWait before reconnecting; the terminal
// needs a moment before it accepts IPC sessions.
func launchTerminal(path string) error {
	cmd := exec.Command(path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start terminal %s: %w", path, err)
	}
	// Detach: the terminal outlives us and we never wait on it. Release
	// avoids holding the process handle open.
	return cmd.Process.Release()
}
