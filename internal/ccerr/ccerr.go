// Package ccerr defines the typed error kinds used across ccon so that
// callers can classify a failure without parsing its message.
package ccerr

import "fmt"

// ConfigurationError wraps a failure to validate or interpret the
// configuration tree: a missing field, an unsupported version, an
// unknown namespace/mount-flag/capability name, or an oversize path.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string { return fmt.Sprintf("configuration: %s: %v", e.Op, e.Err) }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// Configuration constructs a ConfigurationError.
func Configuration(op string, err error) error {
	return &ConfigurationError{Op: op, Err: err}
}

// ProtocolError wraps an unexpected or oversize handshake message, or
// a premature EOF on a pipe.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("protocol: %s: %v", e.Op, e.Err) }
func (e *ProtocolError) Unwrap() error { return e.Err }

// Protocol constructs a ProtocolError.
func Protocol(op string, err error) error {
	return &ProtocolError{Op: op, Err: err}
}

// SyscallError wraps a failed syscall (open/read/write/clone/setns/
// mount/pivot_root/setuid/setgid/setgroups/capset/execve*).
type SyscallError struct {
	Op  string
	Err error
}

func (e *SyscallError) Error() string { return fmt.Sprintf("syscall: %s: %v", e.Op, e.Err) }
func (e *SyscallError) Unwrap() error { return e.Err }

// Syscall constructs a SyscallError.
func Syscall(op string, err error) error {
	return &SyscallError{Op: op, Err: err}
}

// ResourceError wraps a failure to acquire a pipe, fd, or other
// process resource.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string { return fmt.Sprintf("resource: %s: %v", e.Op, e.Err) }
func (e *ResourceError) Unwrap() error { return e.Err }

// Resource constructs a ResourceError.
func Resource(op string, err error) error {
	return &ResourceError{Op: op, Err: err}
}
