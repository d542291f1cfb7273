package usermap

import (
	"testing"

	"github.com/google/ccon/internal/config"
)

func TestFormatMapLinesSingleEntry(t *testing.T) {
	// Matches spec.md §8 scenario 3's exact expected byte sequence.
	got := formatMapLines([]config.IDMapping{{ContainerID: 0, HostID: 1000, Size: 1}})
	want := "0 1000 1\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFormatMapLinesPreservesOrder(t *testing.T) {
	got := formatMapLines([]config.IDMapping{
		{ContainerID: 0, HostID: 1000, Size: 1},
		{ContainerID: 1, HostID: 2000, Size: 10},
	})
	want := "0 1000 1\n1 2000 10\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFormatMapLinesEmpty(t *testing.T) {
	if got := formatMapLines(nil); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}
