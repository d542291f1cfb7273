// Package nsspec decodes the namespaces section of the configuration
// into a create mask and a join list (spec.md §4.4).
package nsspec

import (
	"fmt"
	"sort"

	"golang.org/x/sys/unix"

	"github.com/google/ccon/internal/ccerr"
	"github.com/google/ccon/internal/config"
)

// cloneFlags maps the recognized namespace kinds to their clone flag
// (spec.md §4.4). Any other key is a fatal configuration error.
var cloneFlags = map[string]uintptr{
	"mount": unix.CLONE_NEWNS,
	"uts":   unix.CLONE_NEWUTS,
	"ipc":   unix.CLONE_NEWIPC,
	"net":   unix.CLONE_NEWNET,
	"pid":   unix.CLONE_NEWPID,
	"user":  unix.CLONE_NEWUSER,
}

// JoinSpec is one (kind, path) pair to setns into. The namespaces
// section is a map, so its key order is not significant; Build orders
// the join list by kind name for determinism.
type JoinSpec struct {
	Kind string
	Path string
}

// Plan is the decoded NamespaceSelection (spec.md §3).
type Plan struct {
	CreateMask uintptr
	JoinList   []JoinSpec
}

// CloneFlag returns the clone(2)/setns(2) flag for a recognized
// namespace kind, for use by the Child Entry Point when joining the
// namespaces in a Plan's JoinList.
func CloneFlag(kind string) (int, bool) {
	flag, ok := cloneFlags[kind]
	return int(flag), ok
}

// Build decodes the namespaces section of cfg into a Plan.
func Build(namespaces map[string]config.NamespaceEntry) (Plan, error) {
	var plan Plan

	kinds := make([]string, 0, len(namespaces))
	for kind := range namespaces {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	for _, kind := range kinds {
		flag, ok := cloneFlags[kind]
		if !ok {
			return Plan{}, ccerr.Configuration("namespaces."+kind, fmt.Errorf("unknown namespace kind %q", kind))
		}
		entry := namespaces[kind]
		if entry.HasPath {
			plan.JoinList = append(plan.JoinList, JoinSpec{Kind: kind, Path: entry.Path})
			continue
		}
		plan.CreateMask |= flag
	}

	return plan, nil
}
