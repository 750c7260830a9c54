package model

import (
	"io/fs"
	"log/slog"
	"strings"

	catalogdata "github.com/jguan/llmfit/catalog"
	"github.com/jguan/llmfit/pkg/unit/device"
)

// embeddedModelDir is the directory inside catalogdata.ModelFS holding the
// built-in profiles.
const embeddedModelDir = "models"

// Database is an ordered, read-only set of model profiles. Names are unique;
// later additions replace earlier ones in place.
type Database struct {
	profiles []Profile
	byName   map[string]int
}

// NewDatabase builds a Database from profiles, keeping the first position
// of any repeated name and the last definition of it.
func NewDatabase(profiles ...Profile) *Database {
	db := &Database{byName: make(map[string]int, len(profiles))}
	db.add(profiles)
	return db
}

// LoadDatabase reads a Database from the YAML files under dir in fsys.
func LoadDatabase(fsys fs.FS, dir string) (*Database, error) {
	profiles, err := LoadProfilesFromFS(fsys, dir)
	if err != nil {
		return nil, err
	}
	return NewDatabase(profiles...), nil
}

// EmbeddedDatabase returns the catalog compiled into the binary.
func EmbeddedDatabase() (*Database, error) {
	return LoadDatabase(catalogdata.ModelFS, embeddedModelDir)
}

func (db *Database) add(profiles []Profile) {
	for _, p := range profiles {
		key := strings.ToLower(p.Name)
		if i, ok := db.byName[key]; ok {
			db.profiles[i] = p.Clone()
			continue
		}
		db.byName[key] = len(db.profiles)
		db.profiles = append(db.profiles, p.Clone())
	}
}

// Merge returns a new Database in which profiles override built-in entries
// of the same name and new names are appended.
func (db *Database) Merge(profiles ...Profile) *Database {
	merged := NewDatabase(db.profiles...)
	for _, p := range profiles {
		if _, ok := merged.byName[strings.ToLower(p.Name)]; ok {
			slog.Debug("custom profile overrides catalog entry", "model", p.Name)
		}
	}
	merged.add(profiles)
	return merged
}

// Len returns the number of profiles.
func (db *Database) Len() int {
	return len(db.profiles)
}

// All returns copies of every profile in catalog order.
func (db *Database) All() []Profile {
	out := make([]Profile, len(db.profiles))
	for i, p := range db.profiles {
		out[i] = p.Clone()
	}
	return out
}

// Find returns profiles whose name, provider or parameter count contains
// query, ignoring case. An empty query matches everything.
func (db *Database) Find(query string) []Profile {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []Profile
	for _, p := range db.profiles {
		if q == "" ||
			strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Provider), q) ||
			strings.Contains(strings.ToLower(p.ParameterCount), q) {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Lookup resolves query to exactly one profile. An exact name match wins
// over substring matches; otherwise the query must match a single name.
func (db *Database) Lookup(query string) (*Profile, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, ErrInvalidInput.WithDetails("field", "model")
	}

	if i, ok := db.byName[strings.ToLower(q)]; ok {
		p := db.profiles[i].Clone()
		return &p, nil
	}

	lower := strings.ToLower(q)
	var matches []Profile
	for _, p := range db.profiles {
		if strings.Contains(strings.ToLower(p.Name), lower) {
			matches = append(matches, p)
		}
	}

	switch len(matches) {
	case 0:
		return nil, ErrModelNotFound.WithDetails("query", q)
	case 1:
		p := matches[0].Clone()
		return &p, nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name
		}
		return nil, ErrModelAmbiguous.WithDetails("query", q).WithDetails("candidates", names)
	}
}

// FittingSystem is a coarse pre-filter: it keeps profiles whose minimum RAM
// fits available memory and, when both sides state VRAM, whose minimum
// VRAM fits the GPU. A VRAM-stating model on a GPU-less machine must meet
// its recommended RAM instead.
func (db *Database) FittingSystem(specs *device.SystemSpecs) []Profile {
	var out []Profile
	for _, p := range db.profiles {
		if fitsSystem(&p, specs) {
			out = append(out, p.Clone())
		}
	}
	return out
}

func fitsSystem(p *Profile, specs *device.SystemSpecs) bool {
	ramOK := p.MinRAMGB <= specs.AvailableRAMGB
	if p.MinVRAMGB == nil {
		return ramOK
	}
	if !specs.HasGPU {
		return ramOK && specs.AvailableRAMGB >= p.RecommendedRAMGB
	}
	if v, ok := specs.VRAM(); ok {
		return ramOK && *p.MinVRAMGB <= v
	}
	return ramOK
}
