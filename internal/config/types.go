// Package config implements ConfigView (spec.md §4/§3): a read-only,
// typed accessor over the decoded configuration tree, plus the data
// model types every other package consumes.
package config

// Configuration is the fully-parsed top-level document (spec.md §3).
type Configuration struct {
	Version    string
	Namespaces map[string]NamespaceEntry
	Process    *ProcessDescriptor
	Hooks      map[string][]ProcessDescriptor
}

// NamespaceEntry describes one entry under the namespaces section. An
// entry with a "path" key (HasPath) means "join"; without one, "create".
type NamespaceEntry struct {
	Path        string
	HasPath     bool
	UIDMappings []IDMapping
	GIDMappings []IDMapping
	Setgroups   SetgroupsMode
	HasMounts   bool
	Mounts      []MountEntry
}

// IDMapping is one line of a uid_map/gid_map (spec.md §3, §4.5).
type IDMapping struct {
	ContainerID int64
	HostID      int64
	Size        int64
}

// SetgroupsMode is the tri-state described in spec.md §3.
type SetgroupsMode int

const (
	SetgroupsUnspecified SetgroupsMode = iota
	SetgroupsAllow
	SetgroupsDeny
)

// MountFlag is one bit of the mount flag set (spec.md §4.6).
type MountFlag uint64

const (
	MountBind MountFlag = 1 << iota
	MountDirsync
	MountIVersion
	MountLazytime
	MountMandlock
	MountMove
	MountNoatime
	MountNodev
	MountNodiratime
	MountNoexec
	MountNosuid
	MountPrivate
	MountRdonly
	MountRec
	MountRelatime
	MountRemount
	MountShared
	MountSilent
	MountSlave
	MountStrictatime
	MountSync
	MountSynchronous
	MountUnbindable
	MountVerbose
)

// mountFlagNames maps the spec's unprefixed flag names to their bit,
// per spec.md §4.6.
var mountFlagNames = map[string]MountFlag{
	"BIND":         MountBind,
	"DIRSYNC":      MountDirsync,
	"I_VERSION":    MountIVersion,
	"LAZYTIME":     MountLazytime,
	"MANDLOCK":     MountMandlock,
	"MOVE":         MountMove,
	"NOATIME":      MountNoatime,
	"NODEV":        MountNodev,
	"NODIRATIME":   MountNodiratime,
	"NOEXEC":       MountNoexec,
	"NOSUID":       MountNosuid,
	"PRIVATE":      MountPrivate,
	"RDONLY":       MountRdonly,
	"REC":          MountRec,
	"RELATIME":     MountRelatime,
	"REMOUNT":      MountRemount,
	"SHARED":       MountShared,
	"SILENT":       MountSilent,
	"SLAVE":        MountSlave,
	"STRICTATIME":  MountStrictatime,
	"SYNC":         MountSync,
	"SYNCHRONOUS":  MountSynchronous,
	"UNBINDABLE":   MountUnbindable,
	"VERBOSE":      MountVerbose,
}

// MountFlagByName looks up a mount flag by its spec.md name. The bool
// result is false for unrecognized names (a fatal configuration error
// at the caller).
func MountFlagByName(name string) (MountFlag, bool) {
	f, ok := mountFlagNames[name]
	return f, ok
}

// MountEntry describes one mount operation, or (when Type is
// "pivot-root") a pivot-root operation (spec.md §3, §4.6).
type MountEntry struct {
	Source string
	Target string
	Type   string
	Data   string
	Flags  MountFlag
}

// IsPivotRoot reports whether this entry is the pivot-root pseudo-type.
func (m MountEntry) IsPivotRoot() bool { return m.Type == "pivot-root" }

// ProcessDescriptor describes a process to run: the container's target
// process, or a hook (spec.md §3).
type ProcessDescriptor struct {
	Args         []string
	Env          []string
	Path         string
	Host         bool
	Cwd          string
	User         *UserSpec
	Capabilities []string

	HasEnv          bool
	HasPath         bool
	HasCwd          bool
	HasCapabilities bool
}

// UserSpec is the optional process.user section (spec.md §3): the
// identity to assume before exec, applied in the order setgid →
// setgroups(additionalGids) → setuid (spec.md §4.2 step 10).
type UserSpec struct {
	HasUID         bool
	UID            int64
	HasGID         bool
	GID            int64
	AdditionalGIDs []int64
}
