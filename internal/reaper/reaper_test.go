package reaper

import (
	"os/exec"
	"testing"
	"time"
)

func TestStartProcessAndWait(t *testing.T) {
	Start()

	cmd := exec.Command("/bin/sh", "-c", "exit 0")
	pid, err := StartProcess(cmd)
	if err != nil {
		t.Fatalf("StartProcess: %v", err)
	}

	done := make(chan struct{})
	var exitStatus int
	go func() {
		ws := Wait(pid)
		exitStatus = ws.ExitStatus()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for reaped process")
	}
	if exitStatus != 0 {
		t.Fatalf("got exit status %d, want 0", exitStatus)
	}
}

func TestStartProcessAndWaitNonZeroExit(t *testing.T) {
	Start()

	cmd := exec.Command("/bin/sh", "-c", "exit 7")
	pid, err := StartProcess(cmd)
	if err != nil {
		t.Fatalf("StartProcess: %v", err)
	}

	ws := Wait(pid)
	if ws.ExitStatus() != 7 {
		t.Fatalf("got exit status %d, want 7", ws.ExitStatus())
	}
}
