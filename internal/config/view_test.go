package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/google/ccon/internal/jsonconfig"
)

func parseJSON(t *testing.T, doc string) *Configuration {
	t.Helper()
	tree, err := jsonconfig.Decode(strings.NewReader(doc))
	require.NoError(t, err)
	cfg, err := Parse(tree)
	require.NoError(t, err)
	return cfg
}

func TestParseMinimalExec(t *testing.T) {
	cfg := parseJSON(t, `{"version":"0.2.0","process":{"args":["/bin/true"]}}`)
	require.Equal(t, "0.2.0", cfg.Version)
	require.NotNil(t, cfg.Process)
	require.Equal(t, []string{"/bin/true"}, cfg.Process.Args)
}

func TestParseRejectsUnsupportedVersion(t *testing.T) {
	_, err := Parse(treeFrom(t, `{"version":"0.2.0-pre"}`))
	require.Error(t, err, "prefix-matched version must be rejected")
}

func TestParseRejectsMissingVersion(t *testing.T) {
	_, err := Parse(treeFrom(t, `{"process":{"args":["x"]}}`))
	require.Error(t, err)
}

func TestParseUserNamespaceMappings(t *testing.T) {
	cfg := parseJSON(t, `{
		"version":"0.2.0",
		"namespaces":{"user":{
			"uidMappings":[{"containerID":0,"hostID":1000,"size":1}],
			"setgroups":false,
			"gidMappings":[{"containerID":0,"hostID":1000,"size":1}]
		}},
		"process":{"args":["/bin/true"]}
	}`)
	entry, ok := cfg.Namespaces["user"]
	require.True(t, ok, "expected user namespace entry")
	require.Equal(t, []IDMapping{{0, 1000, 1}}, entry.UIDMappings)
	require.Equal(t, SetgroupsDeny, entry.Setgroups)
}

func TestParseUnknownMountFlagRejected(t *testing.T) {
	_, err := Parse(treeFrom(t, `{
		"version":"0.2.0",
		"namespaces":{"mount":{"mounts":[{"source":"/a","target":"/b","type":"none","flags":["BOGUS"]}]}}
	}`))
	require.Error(t, err)
}

func TestParsePivotRootMountSkipsTarget(t *testing.T) {
	cfg := parseJSON(t, `{
		"version":"0.2.0",
		"namespaces":{"mount":{"mounts":[{"source":"/tmp/newroot","type":"pivot-root"}]}},
		"process":{"args":["/bin/true"]}
	}`)
	mounts := cfg.Namespaces["mount"].Mounts
	require.Len(t, mounts, 1)
	require.True(t, mounts[0].IsPivotRoot())
	require.Equal(t, "/tmp/newroot", mounts[0].Source)
}

func TestParseHooks(t *testing.T) {
	cfg := parseJSON(t, `{
		"version":"0.2.0",
		"hooks":{"pre-start":[{"args":["/bin/hook"],"env":["A=B"]}]},
		"process":{"args":["/bin/true"]}
	}`)
	hooks := cfg.Hooks["pre-start"]
	require.Len(t, hooks, 1)
	require.Equal(t, "/bin/hook", hooks[0].Args[0])
	require.Equal(t, "A=B", hooks[0].Env[0])
}

func TestParseCapabilitiesAbsentLeavesHasCapabilitiesFalse(t *testing.T) {
	cfg := parseJSON(t, `{"version":"0.2.0","process":{"args":["/bin/true"]}}`)
	require.False(t, cfg.Process.HasCapabilities, "absent capabilities key must not set HasCapabilities")
	require.Empty(t, cfg.Process.Capabilities)
}

func TestParseCapabilitiesExplicitEmptySetsHasCapabilitiesTrue(t *testing.T) {
	cfg := parseJSON(t, `{"version":"0.2.0","process":{"args":["/bin/true"],"capabilities":[]}}`)
	require.True(t, cfg.Process.HasCapabilities, "explicit empty capabilities array must be distinguishable from an absent key")
	require.Empty(t, cfg.Process.Capabilities)
}

func TestParseCapabilitiesNonEmpty(t *testing.T) {
	cfg := parseJSON(t, `{"version":"0.2.0","process":{"args":["/bin/true"],"capabilities":["CAP_CHOWN"]}}`)
	require.True(t, cfg.Process.HasCapabilities)
	require.Equal(t, []string{"CAP_CHOWN"}, cfg.Process.Capabilities)
}

func TestParseHookWithNoArgsSucceeds(t *testing.T) {
	cfg := parseJSON(t, `{
		"version":"0.2.0",
		"hooks":{"post-stop":[{"path":"/bin/hook"}]},
		"process":{"args":["/bin/true"]}
	}`)
	hooks := cfg.Hooks["post-stop"]
	require.Len(t, hooks, 1)
	require.Empty(t, hooks[0].Args)
	require.True(t, hooks[0].HasPath)
}

func treeFrom(t *testing.T, doc string) map[string]any {
	t.Helper()
	tree, err := jsonconfig.Decode(strings.NewReader(doc))
	require.NoError(t, err)
	return tree
}
