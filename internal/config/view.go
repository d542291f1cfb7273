package config

import (
	"encoding/json"
	"fmt"

	"github.com/google/ccon/internal/ccerr"
)

// SupportedVersions lists the exact version strings accepted (spec.md
// §6; open question 3: exact match, not a prefix match).
var SupportedVersions = map[string]bool{
	"0.1.0": true,
	"0.2.0": true,
}

// Parse validates and converts a generic decoded tree (as produced by
// internal/jsonconfig) into a Configuration.
func Parse(tree map[string]any) (*Configuration, error) {
	v := &view{tree: tree}

	version, err := v.requireString("version")
	if err != nil {
		return nil, err
	}
	if !SupportedVersions[version] {
		return nil, ccerr.Configuration("version", fmt.Errorf("unsupported version %q", version))
	}

	cfg := &Configuration{Version: version}

	if raw, ok := tree["namespaces"]; ok {
		nsTree, ok := raw.(map[string]any)
		if !ok {
			return nil, ccerr.Configuration("namespaces", fmt.Errorf("must be an object"))
		}
		cfg.Namespaces, err = parseNamespaces(nsTree)
		if err != nil {
			return nil, err
		}
	}

	if raw, ok := tree["process"]; ok {
		procTree, ok := raw.(map[string]any)
		if !ok {
			return nil, ccerr.Configuration("process", fmt.Errorf("must be an object"))
		}
		cfg.Process, err = parseProcessDescriptor(procTree, true)
		if err != nil {
			return nil, err
		}
	}

	if raw, ok := tree["hooks"]; ok {
		hooksTree, ok := raw.(map[string]any)
		if !ok {
			return nil, ccerr.Configuration("hooks", fmt.Errorf("must be an object"))
		}
		cfg.Hooks = make(map[string][]ProcessDescriptor, len(hooksTree))
		for name, rawList := range hooksTree {
			list, ok := rawList.([]any)
			if !ok {
				return nil, ccerr.Configuration("hooks."+name, fmt.Errorf("must be an array"))
			}
			for i, rawDesc := range list {
				descTree, ok := rawDesc.(map[string]any)
				if !ok {
					return nil, ccerr.Configuration(fmt.Sprintf("hooks.%s[%d]", name, i), fmt.Errorf("must be an object"))
				}
				desc, err := parseProcessDescriptor(descTree, false)
				if err != nil {
					return nil, err
				}
				cfg.Hooks[name] = append(cfg.Hooks[name], *desc)
			}
		}
	}

	return cfg, nil
}

func parseNamespaces(tree map[string]any) (map[string]NamespaceEntry, error) {
	out := make(map[string]NamespaceEntry, len(tree))
	for name, raw := range tree {
		entryTree, ok := raw.(map[string]any)
		if !ok {
			return nil, ccerr.Configuration("namespaces."+name, fmt.Errorf("must be an object"))
		}
		entry := NamespaceEntry{}
		v := &view{tree: entryTree}

		if path, ok, err := v.optionalString("path"); err != nil {
			return nil, err
		} else if ok {
			entry.Path = path
			entry.HasPath = true
		}

		if raw, ok := entryTree["uidMappings"]; ok {
			mappings, err := parseIDMappings(name, "uidMappings", raw)
			if err != nil {
				return nil, err
			}
			entry.UIDMappings = mappings
		}
		if raw, ok := entryTree["gidMappings"]; ok {
			mappings, err := parseIDMappings(name, "gidMappings", raw)
			if err != nil {
				return nil, err
			}
			entry.GIDMappings = mappings
		}
		if raw, ok := entryTree["setgroups"]; ok {
			b, ok := raw.(bool)
			if !ok {
				return nil, ccerr.Configuration("namespaces."+name+".setgroups", fmt.Errorf("must be a boolean"))
			}
			if b {
				entry.Setgroups = SetgroupsAllow
			} else {
				entry.Setgroups = SetgroupsDeny
			}
		}
		if raw, ok := entryTree["mounts"]; ok {
			list, ok := raw.([]any)
			if !ok {
				return nil, ccerr.Configuration("namespaces."+name+".mounts", fmt.Errorf("must be an array"))
			}
			entry.HasMounts = true
			for i, rawMount := range list {
				mountTree, ok := rawMount.(map[string]any)
				if !ok {
					return nil, ccerr.Configuration(fmt.Sprintf("namespaces.%s.mounts[%d]", name, i), fmt.Errorf("must be an object"))
				}
				m, err := parseMountEntry(mountTree)
				if err != nil {
					return nil, err
				}
				entry.Mounts = append(entry.Mounts, m)
			}
		}

		out[name] = entry
	}
	return out, nil
}

func parseIDMappings(nsName, field string, raw any) ([]IDMapping, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, ccerr.Configuration("namespaces."+nsName+"."+field, fmt.Errorf("must be an array"))
	}
	mappings := make([]IDMapping, 0, len(list))
	for i, rawEntry := range list {
		entryTree, ok := rawEntry.(map[string]any)
		if !ok {
			return nil, ccerr.Configuration(fmt.Sprintf("namespaces.%s.%s[%d]", nsName, field, i), fmt.Errorf("must be an object"))
		}
		v := &view{tree: entryTree}
		containerID, err := v.requireInt("containerID")
		if err != nil {
			return nil, err
		}
		hostID, err := v.requireInt("hostID")
		if err != nil {
			return nil, err
		}
		size, err := v.requireInt("size")
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, IDMapping{ContainerID: containerID, HostID: hostID, Size: size})
	}
	return mappings, nil
}

func parseMountEntry(tree map[string]any) (MountEntry, error) {
	v := &view{tree: tree}
	m := MountEntry{}

	source, err := v.requireString("source")
	if err != nil {
		return m, err
	}
	m.Source = source

	if mtype, ok, err := v.optionalString("type"); err != nil {
		return m, err
	} else if ok {
		m.Type = mtype
	}

	if m.Type == "pivot-root" {
		return m, nil
	}

	target, err := v.requireString("target")
	if err != nil {
		return m, err
	}
	m.Target = target

	if data, ok, err := v.optionalString("data"); err != nil {
		return m, err
	} else if ok {
		m.Data = data
	}

	if raw, ok := tree["flags"]; ok {
		names, ok := raw.([]any)
		if !ok {
			return m, ccerr.Configuration("mount.flags", fmt.Errorf("must be an array"))
		}
		for _, rawName := range names {
			name, ok := rawName.(string)
			if !ok {
				return m, ccerr.Configuration("mount.flags", fmt.Errorf("flag name must be a string"))
			}
			flag, ok := MountFlagByName(name)
			if !ok {
				return m, ccerr.Configuration("mount.flags", fmt.Errorf("unknown mount flag %q", name))
			}
			m.Flags |= flag
		}
	}

	return m, nil
}

func parseProcessDescriptor(tree map[string]any, requireArgs bool) (*ProcessDescriptor, error) {
	v := &view{tree: tree}
	d := &ProcessDescriptor{}

	args, err := v.stringArray("args", requireArgs)
	if err != nil {
		return nil, err
	}
	if requireArgs && len(args) == 0 {
		return nil, ccerr.Configuration("process.args", fmt.Errorf("must be non-empty"))
	}
	d.Args = args

	if env, ok, err := v.optionalStringArray("env"); err != nil {
		return nil, err
	} else if ok {
		d.Env = env
		d.HasEnv = true
	}

	if path, ok, err := v.optionalString("path"); err != nil {
		return nil, err
	} else if ok {
		d.Path = path
		d.HasPath = true
	}

	if host, ok := tree["host"]; ok {
		b, ok := host.(bool)
		if !ok {
			return nil, ccerr.Configuration("process.host", fmt.Errorf("must be a boolean"))
		}
		d.Host = b
	}

	if cwd, ok, err := v.optionalString("cwd"); err != nil {
		return nil, err
	} else if ok {
		d.Cwd = cwd
		d.HasCwd = true
	}

	if caps, ok, err := v.optionalStringArray("capabilities"); err != nil {
		return nil, err
	} else if ok {
		d.Capabilities = caps
		d.HasCapabilities = true
	}

	if raw, ok := tree["user"]; ok {
		userTree, ok := raw.(map[string]any)
		if !ok {
			return nil, ccerr.Configuration("process.user", fmt.Errorf("must be an object"))
		}
		u := &UserSpec{}
		uv := &view{tree: userTree}
		if uid, ok, err := uv.optionalInt("uid"); err != nil {
			return nil, err
		} else if ok {
			u.UID = uid
			u.HasUID = true
		}
		if gid, ok, err := uv.optionalInt("gid"); err != nil {
			return nil, err
		} else if ok {
			u.GID = gid
			u.HasGID = true
		}
		if raw, ok := userTree["additionalGids"]; ok {
			list, ok := raw.([]any)
			if !ok {
				return nil, ccerr.Configuration("process.user.additionalGids", fmt.Errorf("must be an array"))
			}
			for _, rawGID := range list {
				n, ok := rawGID.(json.Number)
				if !ok {
					return nil, ccerr.Configuration("process.user.additionalGids", fmt.Errorf("must contain integers"))
				}
				i, err := n.Int64()
				if err != nil {
					return nil, ccerr.Configuration("process.user.additionalGids", err)
				}
				u.AdditionalGIDs = append(u.AdditionalGIDs, i)
			}
		}
		d.User = u
	}

	return d, nil
}

// view is an internal typed-lookup helper over one JSON-object level.
type view struct {
	tree map[string]any
}

func (v *view) requireString(key string) (string, error) {
	s, ok, err := v.optionalString(key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ccerr.Configuration(key, fmt.Errorf("required field missing"))
	}
	return s, nil
}

func (v *view) optionalString(key string) (string, bool, error) {
	raw, ok := v.tree[key]
	if !ok {
		return "", false, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", false, ccerr.Configuration(key, fmt.Errorf("must be a string"))
	}
	return s, true, nil
}

func (v *view) requireInt(key string) (int64, error) {
	i, ok, err := v.optionalInt(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ccerr.Configuration(key, fmt.Errorf("required field missing"))
	}
	return i, nil
}

func (v *view) optionalInt(key string) (int64, bool, error) {
	raw, ok := v.tree[key]
	if !ok {
		return 0, false, nil
	}
	n, ok := raw.(json.Number)
	if !ok {
		return 0, false, ccerr.Configuration(key, fmt.Errorf("must be an integer"))
	}
	i, err := n.Int64()
	if err != nil {
		return 0, false, ccerr.Configuration(key, err)
	}
	return i, true, nil
}

func (v *view) stringArray(key string, required bool) ([]string, error) {
	s, ok, err := v.optionalStringArray(key)
	if err != nil {
		return nil, err
	}
	if !ok && required {
		return nil, ccerr.Configuration(key, fmt.Errorf("required field missing"))
	}
	return s, nil
}

func (v *view) optionalStringArray(key string) ([]string, bool, error) {
	raw, ok := v.tree[key]
	if !ok {
		return nil, false, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, false, ccerr.Configuration(key, fmt.Errorf("must be an array"))
	}
	out := make([]string, 0, len(list))
	for _, rawItem := range list {
		s, ok := rawItem.(string)
		if !ok {
			return nil, false, ccerr.Configuration(key, fmt.Errorf("elements must be strings"))
		}
		out = append(out, s)
	}
	return out, true, nil
}
