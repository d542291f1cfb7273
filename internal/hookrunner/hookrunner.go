// Package hookrunner runs lifecycle hook lists (pre-start, post-stop),
// piping the container PID to each hook's stdin (spec.md §4.8).
package hookrunner

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/google/ccon/internal/ccerr"
	"github.com/google/ccon/internal/config"
	"github.com/google/ccon/internal/executor"
	"github.com/google/ccon/internal/reaper"
	"github.com/google/ccon/internal/rlog"
)

// Fatal reports whether a failing hook in this list should abort the
// run. pre-start failures are fatal (spec.md §4.8); post-stop failures
// are logged and ignored.
type Fatal bool

const (
	FatalOnFailure    Fatal = true
	BestEffortFailure Fatal = false
)

// Run executes each hook descriptor in order. If cpid is non-zero
// (pre-start semantics), each hook's stdin carries "<cpid>\n"; a
// cpid of 0 (post-stop semantics) runs the hook with no stdin pipe at
// all (spec.md §4.8, matching the original's `if (cpid) {...}` gate
// around the pipe/cpid-write, called with a literal 0 at its
// post-stop call site). If fatal is true, the first failing hook
// stops the sequence and the error is returned; otherwise failures are
// logged and the sequence continues.
func Run(name string, hooks []config.ProcessDescriptor, cpid int, fatal Fatal) error {
	for i, desc := range hooks {
		if err := runOne(desc, cpid); err != nil {
			wrapped := ccerr.Syscall(fmt.Sprintf("hook %s[%d]", name, i), err)
			if bool(fatal) {
				return wrapped
			}
			rlog.Warnf("%s hook failed: %v", name, wrapped)
		}
	}
	return nil
}

func runOne(desc config.ProcessDescriptor, cpid int) error {
	argv0, argv, env, err := executor.BuildArgvEnv(desc)
	if err != nil {
		return err
	}
	var extra []string
	if len(argv) > 1 {
		extra = argv[1:]
	}
	cmd := exec.Command(argv0, extra...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = env
	if desc.HasCwd {
		cmd.Dir = desc.Cwd
	}

	if cpid != 0 {
		r, w, err := os.Pipe()
		if err != nil {
			return ccerr.Resource("hook stdin pipe", err)
		}
		if _, err := w.WriteString(fmt.Sprintf("%d\n", cpid)); err != nil {
			r.Close()
			w.Close()
			return err
		}
		w.Close()
		defer r.Close()
		cmd.Stdin = r
	}

	pid, err := reaper.StartProcess(cmd)
	if err != nil {
		return err
	}
	ws := reaper.Wait(pid)
	if ws.Signaled() {
		return fmt.Errorf("hook terminated by signal %v", ws.Signal())
	}
	if code := ws.ExitStatus(); code != 0 {
		return fmt.Errorf("hook exited with status %d", code)
	}
	return nil
}
