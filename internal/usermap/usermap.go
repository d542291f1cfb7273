// Package usermap writes /proc/<cpid>/{uid_map,gid_map,setgroups} for
// a child process, in the order spec.md §4.5 requires: uid_map,
// setgroups, then gid_map — setgroups must be written before gid_map
// when mapping as an unprivileged user (the "deny" path).
package usermap

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/ccon/internal/ccerr"
	"github.com/google/ccon/internal/config"
)

// Apply writes the uid/gid mapping files for the child process with
// pid cpid, per the entry's UIDMappings, Setgroups, and GIDMappings
// (spec.md §4.5). Any failure is fatal (spec.md §4.5).
func Apply(cpid int, entry config.NamespaceEntry) error {
	if len(entry.UIDMappings) > 0 {
		if err := writeMapFile(fmt.Sprintf("/proc/%d/uid_map", cpid), entry.UIDMappings); err != nil {
			return err
		}
	}

	if entry.Setgroups != config.SetgroupsUnspecified {
		value := "allow"
		if entry.Setgroups == config.SetgroupsDeny {
			value = "deny"
		}
		path := fmt.Sprintf("/proc/%d/setgroups", cpid)
		if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
			return ccerr.Syscall("write "+path, err)
		}
	}

	if len(entry.GIDMappings) > 0 {
		if err := writeMapFile(fmt.Sprintf("/proc/%d/gid_map", cpid), entry.GIDMappings); err != nil {
			return err
		}
	}

	return nil
}

// writeMapFile performs a single write() of the whole mapping table,
// as the kernel requires for unprivileged mappers (spec.md §4.5).
func writeMapFile(path string, mappings []config.IDMapping) error {
	buf := formatMapLines(mappings)
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return ccerr.Syscall("open "+path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(buf); err != nil {
		return ccerr.Syscall("write "+path, err)
	}
	return nil
}

// formatMapLines renders the mapping table as the concatenation of
// "<container> <host> <size>\n" lines in configuration order (spec.md
// §8's round-trip property).
func formatMapLines(mappings []config.IDMapping) string {
	var buf []byte
	for _, m := range mappings {
		buf = append(buf, []byte(
			strconv.FormatInt(m.ContainerID, 10)+" "+
				strconv.FormatInt(m.HostID, 10)+" "+
				strconv.FormatInt(m.Size, 10)+"\n",
		)...)
	}
	return string(buf)
}
