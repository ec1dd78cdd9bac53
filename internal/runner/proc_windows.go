//go:build windows

package runner

import (
	"os"
	"os/exec"
)

// ownGroup is a no-op on Windows
func ownGroup(cmd *exec.Cmd) {}

func interruptGroup(p *os.Process) error { return p.Signal(os.Interrupt) }

func killGroup(p *os.Process) { _ = p.Kill() }
