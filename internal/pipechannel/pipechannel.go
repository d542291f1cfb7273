// Package pipechannel implements the bidirectional, line-delimited
// handshake channel described in spec.md §4.3: two unidirectional
// pipes carrying three fixed newline-terminated ASCII messages.
package pipechannel

import (
	"io"
	"os"

	"github.com/google/ccon/internal/ccerr"
)

// The three fixed handshake messages (spec.md §6), each sent with a
// trailing newline.
const (
	MsgUserNamespaceMappingComplete = "user-namespace-mapping-complete"
	MsgContainerSetupComplete       = "container-setup-complete"
	MsgExecProcess                  = "exec-process"
)

const (
	readBlock = 512
	maxLine   = 16 * 1024
)

// Pair is one unidirectional pipe: a read end and a write end. Each
// end has exactly one owner, per spec.md §3's invariant.
type Pair struct {
	Read  *os.File
	Write *os.File
}

// NewPair creates an os.Pipe wrapped as a Pair.
func NewPair() (Pair, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return Pair{}, ccerr.Resource("pipe", err)
	}
	return Pair{Read: r, Write: w}, nil
}

// WriteMessage writes one of the fixed protocol messages, followed by
// a newline, to w.
func WriteMessage(w *os.File, msg string) error {
	if _, err := w.Write([]byte(msg + "\n")); err != nil {
		return ccerr.Syscall("write handshake message", err)
	}
	return nil
}

// ReadLine implements the bounded line-reader from spec.md §4.3:
// single-byte reads until '\n', growing a 512-byte-block buffer up to
// a 16 KiB cap. The returned string excludes the trailing newline.
func ReadLine(r *os.File) (string, error) {
	buf := make([]byte, 0, readBlock)
	one := make([]byte, 1)
	for {
		n, err := r.Read(one)
		if n == 0 {
			if err == io.EOF {
				return "", ccerr.Protocol("read handshake message", io.ErrUnexpectedEOF)
			}
			return "", ccerr.Syscall("read handshake message", err)
		}
		// Checked unconditionally, including on the iteration that reads
		// the terminating newline, so a line whose content is exactly
		// maxLine bytes is rejected rather than accepted (spec.md §8:
		// maxLine-1 accepted, maxLine rejected).
		if len(buf) >= maxLine {
			return "", ccerr.Protocol("read handshake message", errLineTooLong)
		}
		if one[0] == '\n' {
			return string(buf), nil
		}
		if len(buf) == cap(buf) {
			grown := make([]byte, len(buf), cap(buf)+readBlock)
			copy(grown, buf)
			buf = grown
		}
		buf = append(buf, one[0])
	}
}

var errLineTooLong = lineTooLongError{}

type lineTooLongError struct{}

func (lineTooLongError) Error() string { return "handshake line exceeds 16 KiB" }

// ExpectLine reads one line and requires it to equal want exactly;
// any deviation is a fatal protocol error (spec.md §6).
func ExpectLine(r *os.File, want string) error {
	got, err := ReadLine(r)
	if err != nil {
		return err
	}
	if got != want {
		return ccerr.Protocol("handshake message", unexpectedMessageError{want: want, got: got})
	}
	return nil
}

type unexpectedMessageError struct {
	want, got string
}

func (e unexpectedMessageError) Error() string {
	return "expected " + quote(e.want) + ", got " + quote(e.got)
}

func quote(s string) string {
	return "\"" + s + "\""
}
