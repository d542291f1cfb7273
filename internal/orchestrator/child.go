package orchestrator

import (
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/google/ccon/internal/capset"
	"github.com/google/ccon/internal/ccerr"
	"github.com/google/ccon/internal/config"
	"github.com/google/ccon/internal/executor"
	"github.com/google/ccon/internal/mountplan"
	"github.com/google/ccon/internal/nsspec"
	"github.com/google/ccon/internal/pipechannel"
)

// childPToCFD and childCToPFD are the fixed fd numbers the parent
// donates via ExtraFiles (spec.md §4.1 step 4): the child's first two
// extra files land at 3 and 4 in a freshly exec'd process.
const (
	childPToCFD = 3
	childCToPFD = 4
)

// RunChild implements the Child Entry Point (spec.md §4.2). It never
// returns on the success path: it ends by transferring control to the
// configured process via executor.Exec, or by calling os.Exit. It only
// returns an error if setup fails before that handoff.
//
// Every namespace, mount, and credential syscall here is
// thread-affine; LockOSThread (grounded in libmocktainer's
// init_linux.go Init) pins this goroutine to a single OS thread so
// namespace membership and privilege changes land on the thread that
// actually execs.
func RunChild(cfg *config.Configuration) error {
	runtime.LockOSThread()

	plan, err := nsspec.Build(cfg.Namespaces)
	if err != nil {
		return err
	}

	pToC := os.NewFile(childPToCFD, "ccon-p-to-c")
	cToP := os.NewFile(childCToPFD, "ccon-c-to-p")

	if err := pipechannel.ExpectLine(pToC, pipechannel.MsgUserNamespaceMappingComplete); err != nil {
		return err
	}

	var hostFD = -1
	if cfg.Process != nil && cfg.Process.Host {
		fd, err := executor.ResolveHostFD(*cfg.Process)
		if err != nil {
			return err
		}
		hostFD = fd
	}

	for _, j := range plan.JoinList {
		if err := joinNamespace(j); err != nil {
			return err
		}
	}

	if entry, ok := cfg.Namespaces["mount"]; ok && entry.HasMounts {
		cwd, err := os.Getwd()
		if err != nil {
			return ccerr.Resource("getwd", err)
		}
		mounts, err := mountplan.Absolutize(cwd, entry.Mounts)
		if err != nil {
			return err
		}
		if err := mountplan.Apply(mounts); err != nil {
			return err
		}
	}

	if err := pipechannel.WriteMessage(cToP, pipechannel.MsgContainerSetupComplete); err != nil {
		return err
	}
	cToP.Close()

	if err := pipechannel.ExpectLine(pToC, pipechannel.MsgExecProcess); err != nil {
		return err
	}
	pToC.Close()

	if cfg.Process == nil {
		os.Exit(0)
	}
	desc := *cfg.Process

	if desc.HasCwd {
		if err := unix.Chdir(desc.Cwd); err != nil {
			return ccerr.Syscall("chdir "+desc.Cwd, err)
		}
	}

	if desc.User != nil {
		if err := applyUser(*desc.User); err != nil {
			return err
		}
	}

	if desc.HasCapabilities {
		caps, err := capset.Resolve(desc.Capabilities)
		if err != nil {
			return err
		}
		if err := capset.Apply(os.Getpid(), caps); err != nil {
			return err
		}
	}

	if err := executor.Exec(desc, hostFD); err != nil {
		return err
	}
	// executor.Exec only returns on failure.
	return fmt.Errorf("exec returned without transferring control")
}

func joinNamespace(j nsspec.JoinSpec) error {
	flag, ok := nsspec.CloneFlag(j.Kind)
	if !ok {
		return ccerr.Configuration("namespaces."+j.Kind, fmt.Errorf("unknown namespace kind %q", j.Kind))
	}

	fd, err := unix.Open(j.Path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return ccerr.Syscall("open "+j.Path, err)
	}
	defer unix.Close(fd)

	if err := unix.Setns(fd, flag); err != nil {
		return ccerr.Syscall("setns "+j.Path, err)
	}
	return nil
}

// applyUser assumes the configured identity in the order spec.md
// §4.2 step 10 requires: setgid before setgroups before setuid, so
// the process never holds a stale supplementary group list under the
// new primary group, and drops group privilege before user privilege.
func applyUser(u config.UserSpec) error {
	if u.HasGID {
		if err := unix.Setgid(int(u.GID)); err != nil {
			return ccerr.Syscall("setgid", err)
		}
	}
	if len(u.AdditionalGIDs) > 0 {
		gids := make([]int, len(u.AdditionalGIDs))
		for i, g := range u.AdditionalGIDs {
			gids[i] = int(g)
		}
		if err := unix.Setgroups(gids); err != nil {
			return ccerr.Syscall("setgroups", err)
		}
	}
	if u.HasUID {
		if err := unix.Setuid(int(u.UID)); err != nil {
			return ccerr.Syscall("setuid", err)
		}
	}
	return nil
}
