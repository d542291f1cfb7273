// Package executor resolves the target executable and transfers
// control to it (spec.md §4.9): either a container-visible path via
// execvpe, or a host-visible executable opened as an O_PATH fd before
// the mount plan runs, execed via execveat/AT_EMPTY_PATH.
package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/google/ccon/internal/ccerr"
	"github.com/google/ccon/internal/config"
)

// ResolveHostFD opens the host-visible executable named by the
// descriptor (descriptor.Path if present, else descriptor.Args[0])
// with O_PATH|O_CLOEXEC, per spec.md §4.9's resolution algorithm:
// absolute paths are opened directly; names containing a slash are
// resolved relative to the current directory; otherwise the host PATH
// is searched.
func ResolveHostFD(desc config.ProcessDescriptor) (int, error) {
	name := desc.Path
	if !desc.HasPath {
		if len(desc.Args) == 0 {
			return -1, ccerr.Configuration("process", fmt.Errorf("host-exec requires a path or a non-empty args list"))
		}
		name = desc.Args[0]
	}

	candidates := []string{name}
	if !filepath.IsAbs(name) && !strings.Contains(name, "/") {
		candidates = pathSearchCandidates(name)
	}

	var lastErr error
	for _, candidate := range candidates {
		fd, err := unix.Open(candidate, unix.O_PATH|unix.O_CLOEXEC, 0)
		if err == nil {
			return fd, nil
		}
		lastErr = err
	}
	return -1, ccerr.Syscall("resolve host executable "+name, lastErr)
}

func pathSearchCandidates(name string) []string {
	pathEnv := os.Getenv("PATH")
	var candidates []string
	for _, dir := range strings.Split(pathEnv, ":") {
		if dir == "" {
			dir = "."
		}
		candidates = append(candidates, filepath.Join(dir, name))
	}
	return candidates
}

// BuildArgvEnv derives (argv0, argv, env) for a process descriptor:
// argv0 is descriptor.Path if present, else argv[0]; env defaults to
// the runtime's environment when descriptor.Env is absent (spec.md
// §4.9). It is an error for desc.Args to be empty when desc.Path is
// also absent, since there is then no argv[0] to derive argv0 from.
func BuildArgvEnv(desc config.ProcessDescriptor) (string, []string, []string, error) {
	if !desc.HasPath && len(desc.Args) == 0 {
		return "", nil, nil, ccerr.Configuration("process.args", fmt.Errorf("must be non-empty when path is not set"))
	}
	argv0 := desc.Path
	if !desc.HasPath {
		argv0 = desc.Args[0]
	}
	env := os.Environ()
	if desc.HasEnv {
		env = desc.Env
	}
	return argv0, desc.Args, env, nil
}

// Exec transfers control to the process described by desc. If fd is
// non-negative, it execs via execveat(fd, "", argv, env,
// AT_EMPTY_PATH); otherwise it execs by path (container-visible),
// using descriptor.Path if present or argv[0] otherwise (spec.md
// §4.9). On success this function does not return.
func Exec(desc config.ProcessDescriptor, fd int) error {
	argv0, argv, env, err := BuildArgvEnv(desc)
	if err != nil {
		return err
	}

	if fd >= 0 {
		return execveat(fd, argv, env)
	}

	path, err := resolveContainerPath(argv0)
	if err != nil {
		return err
	}
	if err := unix.Exec(path, argv, env); err != nil {
		return ccerr.Syscall("execve "+path, err)
	}
	return nil
}

// resolveContainerPath implements execvpe's PATH-search semantics for
// a name with no slash, and passes absolute/relative-with-slash names
// through unchanged.
func resolveContainerPath(name string) (string, error) {
	if filepath.IsAbs(name) || strings.Contains(name, "/") {
		return name, nil
	}
	for _, dir := range strings.Split(os.Getenv("PATH"), ":") {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", ccerr.Syscall("resolve container executable "+name, unix.ENOENT)
}

func execveat(fd int, argv, env []string) error {
	argvPtr, err := unix.SlicePtrFromStrings(argv)
	if err != nil {
		return ccerr.Syscall("execveat argv", err)
	}
	envPtr, err := unix.SlicePtrFromStrings(env)
	if err != nil {
		return ccerr.Syscall("execveat env", err)
	}
	empty := []byte{0}
	_, _, errno := unix.Syscall6(
		unix.SYS_EXECVEAT,
		uintptr(fd),
		uintptr(unsafe.Pointer(&empty[0])),
		uintptr(unsafe.Pointer(&argvPtr[0])),
		uintptr(unsafe.Pointer(&envPtr[0])),
		uintptr(unix.AT_EMPTY_PATH),
		0,
	)
	if errno != 0 {
		return ccerr.Syscall("execveat", errno)
	}
	return nil
}
