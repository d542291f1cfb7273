// Package mountplan resolves, orders, and applies the mount list
// (spec.md §4.6), including the pivot-root pseudo-type.
package mountplan

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/google/ccon/internal/ccerr"
	"github.com/google/ccon/internal/config"
)

const maxPathLen = 1024

// msSync and msVerbose are not exposed by golang.org/x/sys/unix because
// they are not real, independent mount(2) bits on current kernels: the
// C original guards both behind #ifdef, historically aliasing
// MS_SYNCHRONOUS and MS_SILENT respectively on the headers it was
// built against. Kept as the same numeric values here for the same
// reason.
const (
	msSync    = unix.MS_SYNCHRONOUS
	msVerbose = unix.MS_SILENT
)

// mountFlagToUnix maps a config.MountFlag to its unix.MS_* bit.
var mountFlagToUnix = map[config.MountFlag]uintptr{
	config.MountBind:        unix.MS_BIND,
	config.MountDirsync:     unix.MS_DIRSYNC,
	config.MountIVersion:    unix.MS_I_VERSION,
	config.MountLazytime:    unix.MS_LAZYTIME,
	config.MountMandlock:    unix.MS_MANDLOCK,
	config.MountMove:        unix.MS_MOVE,
	config.MountNoatime:     unix.MS_NOATIME,
	config.MountNodev:       unix.MS_NODEV,
	config.MountNodiratime:  unix.MS_NODIRATIME,
	config.MountNoexec:      unix.MS_NOEXEC,
	config.MountNosuid:      unix.MS_NOSUID,
	config.MountPrivate:     unix.MS_PRIVATE,
	config.MountRdonly:      unix.MS_RDONLY,
	config.MountRec:         unix.MS_REC,
	config.MountRelatime:    unix.MS_RELATIME,
	config.MountRemount:     unix.MS_REMOUNT,
	config.MountShared:      unix.MS_SHARED,
	config.MountSilent:      unix.MS_SILENT,
	config.MountSlave:       unix.MS_SLAVE,
	config.MountStrictatime: unix.MS_STRICTATIME,
	config.MountSync:        msSync,
	config.MountSynchronous: unix.MS_SYNCHRONOUS,
	config.MountUnbindable:  unix.MS_UNBINDABLE,
	config.MountVerbose:     msVerbose,
}

func unixFlags(flags config.MountFlag) uintptr {
	var out uintptr
	for flag, bit := range mountFlagToUnix {
		if flags&flag != 0 {
			out |= bit
		}
	}
	return out
}

// Absolutize resolves source/target paths against base (the parent's
// CWD captured at runtime start, spec.md §4.6 step 1) and enforces the
// 1024-byte path ceiling (spec.md §8: 1023 accepted, 1024 rejected).
func Absolutize(base string, entries []config.MountEntry) ([]config.MountEntry, error) {
	out := make([]config.MountEntry, len(entries))
	for i, e := range entries {
		abs, err := absolutizeOne(base, e)
		if err != nil {
			return nil, err
		}
		out[i] = abs
	}
	return out, nil
}

func absolutizeOne(base string, e config.MountEntry) (config.MountEntry, error) {
	source, err := resolvePath(base, e.Source)
	if err != nil {
		return e, err
	}
	e.Source = source

	if e.IsPivotRoot() {
		return e, nil
	}

	target, err := resolvePath(base, e.Target)
	if err != nil {
		return e, err
	}
	e.Target = target
	return e, nil
}

func resolvePath(base, p string) (string, error) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	if len(p) >= maxPathLen {
		return "", ccerr.Configuration("mount path", fmt.Errorf("path %q is %d bytes, exceeds %d-byte limit", p, len(p), maxPathLen))
	}
	return p, nil
}

// Apply runs each mount entry in order (spec.md §4.6).
func Apply(entries []config.MountEntry) error {
	for _, e := range entries {
		if e.IsPivotRoot() {
			if err := pivotRoot(e.Source); err != nil {
				return err
			}
			continue
		}
		flags := unixFlags(e.Flags)
		if err := unix.Mount(e.Source, e.Target, e.Type, flags, e.Data); err != nil {
			return ccerr.Syscall(fmt.Sprintf("mount %q -> %q", e.Source, e.Target), err)
		}
	}
	return nil
}

// pivotRoot performs the new-root swap described in spec.md §4.6 step
// 2: create a unique pivot-root.XXXXXX directory under the new root,
// chdir into the new root, pivot_root, chdir to /, lazily unmount and remove the
// old root exactly once (open question 5).
func pivotRoot(newRoot string) error {
	putOldName := fmt.Sprintf("pivot-root.%06x", rand.Uint32()&0xffffff)
	putOldBeforePivot := filepath.Join(newRoot, putOldName)
	putOldAfterPivot := "/" + putOldName

	if err := os.Mkdir(putOldBeforePivot, 0o700); err != nil {
		return ccerr.Syscall("mkdir "+putOldBeforePivot, err)
	}

	removed := false
	removeOnce := func(path string) {
		if removed {
			return
		}
		removed = true
		os.Remove(path)
	}
	// The directory is reachable at putOldBeforePivot until pivot_root
	// succeeds, and at putOldAfterPivot afterward (the process's root
	// itself has changed); removeOnce is called with whichever path is
	// currently valid, exactly once regardless of which step failed
	// (open question 5).
	putOldCurrent := putOldBeforePivot
	defer func() { removeOnce(putOldCurrent) }()

	if err := unix.Chdir(newRoot); err != nil {
		return ccerr.Syscall("chdir "+newRoot, err)
	}
	if err := unix.PivotRoot(".", putOldName); err != nil {
		return ccerr.Syscall("pivot_root", err)
	}
	putOldCurrent = putOldAfterPivot
	if err := unix.Chdir("/"); err != nil {
		return ccerr.Syscall("chdir /", err)
	}
	if err := unix.Unmount(putOldAfterPivot, unix.MNT_DETACH); err != nil {
		return ccerr.Syscall("umount2 "+putOldName, err)
	}
	removeOnce(putOldAfterPivot)
	return nil
}
