package nsspec

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/google/ccon/internal/config"
)

func TestBuildCreateMask(t *testing.T) {
	plan, err := Build(map[string]config.NamespaceEntry{
		"mount": {},
		"uts":   {},
		"pid":   {},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := uintptr(unix.CLONE_NEWNS | unix.CLONE_NEWUTS | unix.CLONE_NEWPID)
	if plan.CreateMask != want {
		t.Fatalf("got mask %x, want %x", plan.CreateMask, want)
	}
	if len(plan.JoinList) != 0 {
		t.Fatalf("expected empty join list, got %+v", plan.JoinList)
	}
}

func TestBuildJoinList(t *testing.T) {
	plan, err := Build(map[string]config.NamespaceEntry{
		"net": {HasPath: true, Path: "/proc/123/ns/net"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.CreateMask != 0 {
		t.Fatalf("expected zero create mask, got %x", plan.CreateMask)
	}
	if len(plan.JoinList) != 1 || plan.JoinList[0].Path != "/proc/123/ns/net" {
		t.Fatalf("unexpected join list: %+v", plan.JoinList)
	}
}

func TestBuildRejectsUnknownKind(t *testing.T) {
	_, err := Build(map[string]config.NamespaceEntry{
		"cgroup": {},
	})
	if err == nil {
		t.Fatalf("expected error for unknown namespace kind")
	}
}
