package model

import (
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseProfiles decodes a YAML document holding either a list of profiles
// or a single profile mapping.
func ParseProfiles(raw []byte) ([]Profile, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(trimmed, &node); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	switch node.Content[0].Kind {
	case yaml.SequenceNode:
		var profiles []Profile
		if err := node.Content[0].Decode(&profiles); err != nil {
			return nil, fmt.Errorf("decode profile list: %w", err)
		}
		return profiles, nil
	case yaml.MappingNode:
		var p Profile
		if err := node.Content[0].Decode(&p); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
		return []Profile{p}, nil
	default:
		return nil, fmt.Errorf("decode profiles: expected a list or a mapping")
	}
}

// LoadProfilesFromFS reads every *.yaml and *.yml file under dir. Files that
// cannot be read or parsed, and entries that fail Validate, are skipped with
// a warning rather than aborting the load. Profiles are returned in walk
// order, which is lexical.
func LoadProfilesFromFS(fsys fs.FS, dir string) ([]Profile, error) {
	var profiles []Profile

	err := fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAML(d.Name()) {
			return nil
		}

		raw, readErr := fs.ReadFile(fsys, path)
		if readErr != nil {
			slog.Warn("skipping unreadable catalog file", "path", path, "error", readErr)
			return nil
		}

		parsed, parseErr := ParseProfiles(raw)
		if parseErr != nil {
			slog.Warn("skipping unparsable catalog file", "path", path, "error", parseErr)
			return nil
		}

		for i := range parsed {
			if vErr := Validate(&parsed[i]); vErr != nil {
				slog.Warn("skipping invalid catalog entry", "path", path, "index", i, "error", vErr)
				continue
			}
			profiles = append(profiles, parsed[i])
		}
		return nil
	})
	if err != nil {
		return nil, ErrCatalogLoadFailed.WithDetails("dir", dir).WithCause(err)
	}

	return profiles, nil
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
