package executor

import (
	"os"
	"testing"

	"github.com/google/ccon/internal/config"
)

func TestBuildArgvEnvDefaultsToArgv0(t *testing.T) {
	desc := config.ProcessDescriptor{Args: []string{"/bin/echo", "hi"}}
	argv0, argv, _, err := BuildArgvEnv(desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if argv0 != "/bin/echo" {
		t.Fatalf("got argv0 %q", argv0)
	}
	if len(argv) != 2 || argv[1] != "hi" {
		t.Fatalf("unexpected argv: %v", argv)
	}
}

func TestBuildArgvEnvUsesExplicitPath(t *testing.T) {
	desc := config.ProcessDescriptor{Args: []string{"echo", "hi"}, Path: "/usr/bin/echo", HasPath: true}
	argv0, _, _, err := BuildArgvEnv(desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if argv0 != "/usr/bin/echo" {
		t.Fatalf("got argv0 %q, want explicit path", argv0)
	}
}

func TestBuildArgvEnvExplicitPathWithNoArgs(t *testing.T) {
	desc := config.ProcessDescriptor{Path: "/usr/bin/echo", HasPath: true}
	argv0, argv, _, err := BuildArgvEnv(desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if argv0 != "/usr/bin/echo" {
		t.Fatalf("got argv0 %q, want explicit path", argv0)
	}
	if len(argv) != 0 {
		t.Fatalf("expected empty argv, got %v", argv)
	}
}

func TestBuildArgvEnvDefaultsEnvToRuntimeEnviron(t *testing.T) {
	os.Setenv("CCON_TEST_EXECUTOR_VAR", "1")
	defer os.Unsetenv("CCON_TEST_EXECUTOR_VAR")

	desc := config.ProcessDescriptor{Args: []string{"/bin/true"}}
	_, _, env, err := BuildArgvEnv(desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, kv := range env {
		if kv == "CCON_TEST_EXECUTOR_VAR=1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected runtime environment to be inherited when descriptor.Env is absent")
	}
}

func TestBuildArgvEnvExplicitEnvOverrides(t *testing.T) {
	desc := config.ProcessDescriptor{Args: []string{"/bin/true"}, Env: []string{"A=B"}, HasEnv: true}
	_, _, env, err := BuildArgvEnv(desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env) != 1 || env[0] != "A=B" {
		t.Fatalf("expected explicit env to replace runtime environment, got %v", env)
	}
}

func TestBuildArgvEnvRejectsEmptyArgsWithoutPath(t *testing.T) {
	desc := config.ProcessDescriptor{}
	if _, _, _, err := BuildArgvEnv(desc); err == nil {
		t.Fatalf("expected error for empty args and no path")
	}
}

func TestResolveContainerPathPassesThroughSlash(t *testing.T) {
	path, err := resolveContainerPath("/bin/true")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/bin/true" {
		t.Fatalf("got %q", path)
	}
}
