// Package capset translates a list of capability names into the final
// bounding, effective, permitted, and inheritable set (spec.md §4.7),
// built on the same gocapability library the teacher already depends
// on for capability handling.
package capset

import (
	"fmt"
	"strings"

	"github.com/syndtr/gocapability/capability"

	"github.com/google/ccon/internal/ccerr"
)

const capPrefix = "CAP_"

// Resolve validates each requested capability name and returns the
// corresponding capability.Cap values. Names must carry the CAP_
// prefix (stripped here); unrecognized suffixes are a configuration
// error, resolved per spec.md §9 open question 1 (reject at
// configuration time, rather than preserve the original's pass a
// negative index through to the kernel).
func Resolve(names []string) ([]capability.Cap, error) {
	caps := make([]capability.Cap, 0, len(names))
	for _, name := range names {
		if len(name) <= len(capPrefix) || !strings.HasPrefix(name, capPrefix) {
			return nil, ccerr.Configuration("capabilities", fmt.Errorf("capability name %q must have the CAP_ prefix and a suffix", name))
		}
		suffix := name[len(capPrefix):]
		c, ok := byName[suffix]
		if !ok {
			return nil, ccerr.Configuration("capabilities", fmt.Errorf("unknown capability %q", name))
		}
		caps = append(caps, c)
	}
	return caps, nil
}

// Apply clears the bounding and traditional sets, then whitelists
// exactly the given capabilities into effective, permitted,
// inheritable, and bounding (spec.md §4.7).
func Apply(pid int, caps []capability.Cap) error {
	c, err := capability.NewPid2(pid)
	if err != nil {
		return ccerr.Syscall("capability.NewPid2", err)
	}
	if err := c.Load(); err != nil {
		return ccerr.Syscall("capability.Load", err)
	}

	c.Clear(capability.CAPS | capability.BOUNDING)
	for _, cp := range caps {
		c.Set(capability.CAPS|capability.BOUNDING, cp)
	}

	if err := c.Apply(capability.CAPS | capability.BOUNDING); err != nil {
		return ccerr.Syscall("capability.Apply", err)
	}
	return nil
}

// byName maps a capability suffix (post CAP_) to its gocapability
// constant, covering the full Linux capability list.
var byName = map[string]capability.Cap{
	"CHOWN":            capability.CAP_CHOWN,
	"DAC_OVERRIDE":     capability.CAP_DAC_OVERRIDE,
	"DAC_READ_SEARCH":  capability.CAP_DAC_READ_SEARCH,
	"FOWNER":           capability.CAP_FOWNER,
	"FSETID":           capability.CAP_FSETID,
	"KILL":             capability.CAP_KILL,
	"SETGID":           capability.CAP_SETGID,
	"SETUID":           capability.CAP_SETUID,
	"SETPCAP":          capability.CAP_SETPCAP,
	"LINUX_IMMUTABLE":  capability.CAP_LINUX_IMMUTABLE,
	"NET_BIND_SERVICE": capability.CAP_NET_BIND_SERVICE,
	"NET_BROADCAST":    capability.CAP_NET_BROADCAST,
	"NET_ADMIN":        capability.CAP_NET_ADMIN,
	"NET_RAW":          capability.CAP_NET_RAW,
	"IPC_LOCK":         capability.CAP_IPC_LOCK,
	"IPC_OWNER":        capability.CAP_IPC_OWNER,
	"SYS_MODULE":       capability.CAP_SYS_MODULE,
	"SYS_RAWIO":        capability.CAP_SYS_RAWIO,
	"SYS_CHROOT":       capability.CAP_SYS_CHROOT,
	"SYS_PTRACE":       capability.CAP_SYS_PTRACE,
	"SYS_PACCT":        capability.CAP_SYS_PACCT,
	"SYS_ADMIN":        capability.CAP_SYS_ADMIN,
	"SYS_BOOT":         capability.CAP_SYS_BOOT,
	"SYS_NICE":         capability.CAP_SYS_NICE,
	"SYS_RESOURCE":     capability.CAP_SYS_RESOURCE,
	"SYS_TIME":         capability.CAP_SYS_TIME,
	"SYS_TTY_CONFIG":   capability.CAP_SYS_TTY_CONFIG,
	"MKNOD":            capability.CAP_MKNOD,
	"LEASE":            capability.CAP_LEASE,
	"AUDIT_WRITE":      capability.CAP_AUDIT_WRITE,
	"AUDIT_CONTROL":    capability.CAP_AUDIT_CONTROL,
	"SETFCAP":          capability.CAP_SETFCAP,
	"MAC_OVERRIDE":     capability.CAP_MAC_OVERRIDE,
	"MAC_ADMIN":        capability.CAP_MAC_ADMIN,
	"SYSLOG":           capability.CAP_SYSLOG,
	"WAKE_ALARM":       capability.CAP_WAKE_ALARM,
	"BLOCK_SUSPEND":    capability.CAP_BLOCK_SUSPEND,
	"AUDIT_READ":       capability.CAP_AUDIT_READ,
}
