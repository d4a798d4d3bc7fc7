//go:build !windows

package player

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// ownGroup starts mpv in its own process group so a terminal SIGINT
// reaches vidra first.
func ownGroup() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// killTree kills mpv together with any helper it spawned (yt-dlp).
func killTree(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
