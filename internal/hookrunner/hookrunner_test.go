package hookrunner

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/google/ccon/internal/config"
	"github.com/google/ccon/internal/reaper"
)

func init() {
	reaper.Start()
}

func TestRunPreStartWritesCpidToStdin(t *testing.T) {
	out, err := os.CreateTemp(t.TempDir(), "hook-out")
	require.NoError(t, err)
	defer out.Close()

	hooks := []config.ProcessDescriptor{
		{Args: []string{"/bin/sh", "-c", "cat > " + out.Name()}},
	}
	require.NoError(t, Run("pre-start", hooks, 4242, FatalOnFailure))

	got, err := os.ReadFile(out.Name())
	require.NoError(t, err)
	require.Equal(t, "4242\n", string(got))
}

func TestRunPostStopGetsNoStdinPipe(t *testing.T) {
	out, err := os.CreateTemp(t.TempDir(), "hook-out")
	require.NoError(t, err)
	defer out.Close()

	// With cpid 0, stdin is not a pipe; cat on a closed/empty stdin
	// should read nothing and exit 0 immediately rather than block.
	hooks := []config.ProcessDescriptor{
		{Args: []string{"/bin/sh", "-c", "cat > " + out.Name()}},
	}
	require.NoError(t, Run("post-stop", hooks, 0, BestEffortFailure))

	got, err := os.ReadFile(out.Name())
	require.NoError(t, err)
	require.Empty(t, strings.TrimSpace(string(got)))
}

func TestRunFatalStopsOnFirstFailure(t *testing.T) {
	ran := t.TempDir() + "/ran"
	hooks := []config.ProcessDescriptor{
		{Args: []string{"/bin/sh", "-c", "exit 1"}},
		{Args: []string{"/bin/sh", "-c", "touch " + ran}},
	}
	err := Run("pre-start", hooks, 1, FatalOnFailure)
	require.Error(t, err)
	_, statErr := os.Stat(ran)
	require.True(t, os.IsNotExist(statErr), "second hook must not run after a fatal failure")
}

func TestRunBestEffortContinuesAfterFailure(t *testing.T) {
	ran := t.TempDir() + "/ran"
	hooks := []config.ProcessDescriptor{
		{Args: []string{"/bin/sh", "-c", "exit 1"}},
		{Args: []string{"/bin/sh", "-c", "touch " + ran}},
	}
	require.NoError(t, Run("post-stop", hooks, 0, BestEffortFailure))
	_, statErr := os.Stat(ran)
	require.NoError(t, statErr, "best-effort hooks must keep running after a failure")
}

func TestRunRejectsHookWithEmptyArgsAndNoPath(t *testing.T) {
	hooks := []config.ProcessDescriptor{{}}
	err := Run("pre-start", hooks, 1, FatalOnFailure)
	require.Error(t, err)
}
