//go:build !unix

package engine

import (
	"os"
	"os/exec"
)

func prepareProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}

func killedBySignal(state *os.ProcessState) bool {
	return state == nil || !state.Success()
}
