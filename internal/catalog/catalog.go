// Package catalog loads and serves zone definitions.
//
// The catalog is immutable per load: readers always see a complete set of
// zones, and a reload swaps the whole set atomically. A missing or corrupt
// definitions file yields the built-in defaults, which are written back so
// subsequent loads are stable.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/pscheid92/zonewarden/internal/domain"
)

type zoneFile struct {
	Zones []domain.ZoneDefinition `json:"zones"`
}

// Catalog is the process-wide zone registry.
type Catalog struct {
	path  string
	zones atomic.Pointer[map[int]domain.ZoneDefinition]
}

// Load reads zone definitions from path. A missing or unparseable file is
// replaced by the default catalog, which is persisted back to path.
func Load(path string) (*Catalog, error) {
	c := &Catalog{path: path}

	zones, err := readFile(path)
	if err != nil {
		slog.Warn("Zone catalog unreadable, using defaults", "path", path, "error", err)
		zones = Defaults()
		if werr := writeFile(path, zones); werr != nil {
			slog.Error("Failed to persist default zone catalog", "path", path, "error", werr)
		}
	}

	c.zones.Store(&zones)
	slog.Info("Zone catalog loaded", "path", path, "zones", len(zones))
	return c, nil
}

// Get returns the definition for id.
func (c *Catalog) Get(id int) (domain.ZoneDefinition, bool) {
	z, ok := (*c.zones.Load())[id]
	return z, ok
}

// All returns a copy of the current zone set.
func (c *Catalog) All() map[int]domain.ZoneDefinition {
	cur := *c.zones.Load()
	out := make(map[int]domain.ZoneDefinition, len(cur))
	for id, z := range cur {
		out[id] = z
	}
	return out
}

// Replace swaps in a new zone set. Readers see either the old set or the new
// one, never a partial merge.
func (c *Catalog) Replace(zones map[int]domain.ZoneDefinition) {
	copied := make(map[int]domain.ZoneDefinition, len(zones))
	for id, z := range zones {
		copied[id] = z
	}
	c.zones.Store(&copied)
}

// Reload re-reads the definitions file and swaps the result in. The current
// set stays in place when the file cannot be read.
func (c *Catalog) Reload() error {
	zones, err := readFile(c.path)
	if err != nil {
		return fmt.Errorf("reload zone catalog: %w", err)
	}
	c.zones.Store(&zones)
	slog.Info("Zone catalog reloaded", "path", c.path, "zones", len(zones))
	return nil
}

func readFile(path string) (map[int]domain.ZoneDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f zoneFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse zone catalog: %w", err)
	}

	zones := make(map[int]domain.ZoneDefinition, len(f.Zones))
	for _, z := range f.Zones {
		if _, dup := zones[z.ID]; dup {
			return nil, fmt.Errorf("parse zone catalog: duplicate zone id %d", z.ID)
		}
		zones[z.ID] = z
	}
	return zones, nil
}

func writeFile(path string, zones map[int]domain.ZoneDefinition) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f := zoneFile{Zones: make([]domain.ZoneDefinition, 0, len(zones))}
	for _, z := range zones {
		f.Zones = append(f.Zones, z)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Defaults returns the built-in two-zone catalog used when no definitions
// file exists.
func Defaults() map[int]domain.ZoneDefinition {
	return map[int]domain.ZoneDefinition{
		1: {
			ID:              1,
			Destination:     domain.Point3{X: 100, Y: 70, Z: 100},
			Bounds:          domain.AABB{MinX: 90, MaxX: 110, MinY: 65, MaxY: 75, MinZ: 90, MaxZ: 110},
			DurationMinutes: 1,
			Cost:            100,
			RegionID:        "safari:zone1",
		},
		2: {
			ID:              2,
			Destination:     domain.Point3{X: -100, Y: 70, Z: -100},
			Bounds:          domain.AABB{MinX: -110, MaxX: -90, MinY: 65, MaxY: 75, MinZ: -110, MaxZ: -90},
			DurationMinutes: 20,
			Cost:            250,
			RegionID:        "safari:zone2",
		},
	}
}
