package orchestrator

import (
	"testing"

	"github.com/google/ccon/internal/config"
)

func TestRunRejectsUnknownNamespaceKind(t *testing.T) {
	cfg := &config.Configuration{
		Version: "0.2.0",
		Namespaces: map[string]config.NamespaceEntry{
			"bogus": {},
		},
	}
	if _, err := Run(cfg); err == nil {
		t.Fatalf("expected an error for an unrecognized namespace kind")
	}
}
