// Package orchestrator owns the bring-up choreography described in
// spec.md §4.1 (parent side) and §4.2 (child side): it clones the
// child, installs signal handlers, drives the handshake, sequences
// hooks, waits and reaps, and propagates the exit code.
//
// The clone itself is realized as a re-exec: the teacher's codebase
// (and the wider pack) show no example of continuing arbitrary Go
// code directly inside a raw clone(2) child, because a forked,
// single-threaded copy of a multi-threaded Go process cannot safely
// run the Go runtime (GC, goroutine scheduler, and any mutex held by
// another OS thread at the moment of the clone are all in a
// potentially inconsistent state). Every container runtime in the
// pack that clones namespaces from Go (libmocktainer's "runc init"
// re-exec, k3s's docker/reexec enter-root helper) instead launches a
// fresh copy of its own binary via os/exec, flagged to create the new
// namespaces at clone time, and recognizes a marker to jump straight
// into the namespace/mount/privilege sequence with a clean runtime.
// ccon follows the same shape: EnvInitMarker selects the Child entry
// point in cmd/ccon's main before flag parsing runs.
package orchestrator

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/google/ccon/internal/ccerr"
	"github.com/google/ccon/internal/cleanup"
	"github.com/google/ccon/internal/config"
	"github.com/google/ccon/internal/hookrunner"
	"github.com/google/ccon/internal/nsspec"
	"github.com/google/ccon/internal/pipechannel"
	"github.com/google/ccon/internal/reaper"
	"github.com/google/ccon/internal/rlog"
	"github.com/google/ccon/internal/usermap"
)

// EnvInitMarker, when set to "1" in the environment, tells cmd/ccon's
// main to run RunChild instead of the ordinary CLI path.
const EnvInitMarker = "_CCON_INIT"

// RunResult carries the final exit status and a short reason, for
// cmd/ccon to log in verbose mode and use as the process exit code.
type RunResult struct {
	ExitCode int
	Reason   string
}

// childPID is the process-wide atomic cell spec.md §9 calls for:
// visible to the signal handler goroutine, written from the main flow.
var childPID atomic.Int64

func init() {
	childPID.Store(-1)
}

// Run implements the Orchestrator algorithm of spec.md §4.1. A
// configuration with no process section still runs the full
// namespace/mount bring-up; the Child Entry Point exits 0 without
// execing anything once it reaches the point of receiving
// exec-process (spec.md §4.2).
func Run(cfg *config.Configuration) (RunResult, error) {
	reaper.Start()

	plan, err := nsspec.Build(cfg.Namespaces)
	if err != nil {
		return RunResult{}, err
	}

	pToC, err := pipechannel.NewPair()
	if err != nil {
		return RunResult{}, err
	}
	cleanupPToC := cleanup.Make(func() { pToC.Read.Close(); pToC.Write.Close() })
	defer cleanupPToC.Clean()

	cToP, err := pipechannel.NewPair()
	if err != nil {
		return RunResult{}, err
	}
	cleanupCToP := cleanup.Make(func() { cToP.Read.Close(); cToP.Write.Close() })
	defer cleanupCToP.Clean()

	cpid, err := startChild(plan, pToC, cToP)
	if err != nil {
		return RunResult{}, err
	}

	// The child owns pToC.Read and cToP.Write (donated via ExtraFiles);
	// the parent's copies of those ends must be closed so EOF behaves
	// correctly and fds aren't leaked (spec.md §4.1 step 6).
	pToC.Read.Close()
	cToP.Write.Close()

	childPID.Store(int64(cpid))
	stopSignals := installSignalHandlers()
	defer stopSignals()

	cleanupKillChild := cleanup.Make(func() {
		killChild()
		reaper.Wait(cpid)
		childPID.Store(-1)
	})
	defer cleanupKillChild.Clean()

	if entry, ok := cfg.Namespaces["user"]; ok {
		if err := usermap.Apply(cpid, entry); err != nil {
			return RunResult{}, err
		}
	}

	if err := pipechannel.WriteMessage(pToC.Write, pipechannel.MsgUserNamespaceMappingComplete); err != nil {
		return RunResult{}, err
	}

	if err := pipechannel.ExpectLine(cToP.Read, pipechannel.MsgContainerSetupComplete); err != nil {
		return RunResult{}, err
	}
	cToP.Read.Close()

	if hooks, ok := cfg.Hooks["pre-start"]; ok && len(hooks) > 0 {
		if err := hookrunner.Run("pre-start", hooks, cpid, hookrunner.FatalOnFailure); err != nil {
			rlog.Warnf("pre-start hooks failed, killing container: %v", err)
			killChild()
			result := reapResult(cpid)
			runPostStop(cfg)
			cleanupKillChild.Release()
			return result, err
		}
	}

	if err := pipechannel.WriteMessage(pToC.Write, pipechannel.MsgExecProcess); err != nil {
		killChild()
		result := reapResult(cpid)
		cleanupKillChild.Release()
		return result, err
	}
	pToC.Write.Close()
	cleanupPToC.Release()
	cleanupCToP.Release()

	result := reapResult(cpid)
	cleanupKillChild.Release()

	runPostStop(cfg)

	childPID.Store(-1)
	return result, nil
}

func runPostStop(cfg *config.Configuration) {
	hooks, ok := cfg.Hooks["post-stop"]
	if !ok || len(hooks) == 0 {
		return
	}
	// Post-stop hooks run with cpid 0: no stdin pipe, no cpid written,
	// matching the original's run_hooks(config, "post-stop", 0) call
	// site (spec.md §4.8).
	if err := hookrunner.Run("post-stop", hooks, 0, hookrunner.BestEffortFailure); err != nil {
		rlog.Warnf("post-stop hooks reported failure: %v", err)
	}
}

// startChild launches the re-exec'd child with the clone flags for
// plan.CreateMask, donating the child's pipe ends as extra files
// (spec.md §4.1 steps 1-4), returning its pid.
func startChild(plan nsspec.Plan, pToC, cToP pipechannel.Pair) (int, error) {
	self, err := os.Executable()
	if err != nil {
		return 0, ccerr.Resource("resolve self executable", err)
	}

	cmd := exec.Command(self, os.Args[1:]...)
	cmd.Env = append(os.Environ(), EnvInitMarker+"=1")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// fd 3 and 4 as seen by the child: P->C read end, C->P write end.
	cmd.ExtraFiles = []*os.File{pToC.Read, cToP.Write}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: uintptr(plan.CreateMask) | unix.SIGCHLD,
	}

	return reaper.StartProcess(cmd)
}

func installSignalHandlers() func() {
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sigCh:
				killChild()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

func killChild() {
	pid := childPID.Load()
	if pid <= 0 {
		return
	}
	_ = unix.Kill(int(pid), unix.SIGKILL)
}

// reapResult blocks for cpid's exit via the shared reaper and
// translates its wait status into a RunResult (spec.md §4.1 step 15).
func reapResult(cpid int) RunResult {
	ws := reaper.Wait(cpid)
	childPID.Store(-1)
	if ws.Signaled() {
		return RunResult{ExitCode: 1, Reason: fmt.Sprintf("terminated by signal %v", ws.Signal())}
	}
	return RunResult{ExitCode: ws.ExitStatus(), Reason: "exited"}
}
