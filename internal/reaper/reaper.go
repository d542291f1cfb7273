// Package reaper centralizes process reaping behind a single wait4
// call site, grounded in the same concern containerd's own process
// reaper addresses: os/exec's Cmd.Wait and a hand-rolled SIGCHLD
// handler both calling wait4 independently race for the same exit
// status, and whichever loses gets ECHILD. ccon starts every child
// (container and hooks alike) through StartProcess instead of calling
// Cmd.Start directly, so registration of interest in a pid's exit
// status is atomic with creating it; one goroutine reacting to
// SIGCHLD collects every exit and dispatches it to whoever is
// waiting for that specific pid.
package reaper

import (
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/google/ccon/internal/ccerr"
)

type entry struct {
	ch chan unix.WaitStatus
}

var (
	mu      sync.Mutex
	waiters = map[int]*entry{}
)

var startOnce sync.Once

// Start installs the SIGCHLD handler and begins the reaping loop. It
// is idempotent; only the first call has an effect. Must be called
// before the first StartProcess.
func Start() {
	startOnce.Do(func() {
		sigCh := make(chan os.Signal, 8)
		signal.Notify(sigCh, syscall.SIGCHLD)
		go func() {
			for range sigCh {
				drain()
			}
		}()
	})
}

// StartProcess starts cmd and atomically registers interest in its
// exit status, so no SIGCHLD delivered immediately after Start can be
// reaped before registration.
func StartProcess(cmd *exec.Cmd) (int, error) {
	mu.Lock()
	defer mu.Unlock()

	if err := cmd.Start(); err != nil {
		return 0, ccerr.Resource("start process", err)
	}
	pid := cmd.Process.Pid
	waiters[pid] = &entry{ch: make(chan unix.WaitStatus, 1)}
	return pid, nil
}

// Wait blocks until pid's exit status has been collected by the
// reaping loop. pid must have been registered via StartProcess.
func Wait(pid int) unix.WaitStatus {
	mu.Lock()
	e := waiters[pid]
	mu.Unlock()
	ws := <-e.ch
	mu.Lock()
	delete(waiters, pid)
	mu.Unlock()
	return ws
}

func drain() {
	mu.Lock()
	defer mu.Unlock()
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		if pid <= 0 || err != nil {
			return
		}
		// The entry stays registered until Wait has received from it, so
		// a Wait called after the exit was collected still finds it.
		e, ok := waiters[pid]
		if ok {
			e.ch <- ws
		}
		// A pid with no registered waiter is a reparented grandchild;
		// the Wait4 call above is itself the reap, which is all that
		// is required to prevent zombie accumulation.
	}
}
