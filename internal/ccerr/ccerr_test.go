package ccerr

import (
	"errors"
	"testing"
)

func TestErrorsAsClassifies(t *testing.T) {
	base := errors.New("boom")
	err := Configuration("parse version", base)

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected errors.As to match *ConfigurationError, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to unwrap to base")
	}

	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		t.Fatalf("ConfigurationError must not match *ProtocolError")
	}
}

func TestEachKindFormats(t *testing.T) {
	cases := []error{
		Configuration("op", errors.New("x")),
		Protocol("op", errors.New("x")),
		Syscall("op", errors.New("x")),
		Resource("op", errors.New("x")),
	}
	for _, err := range cases {
		if err.Error() == "" {
			t.Fatalf("expected non-empty error string")
		}
	}
}
