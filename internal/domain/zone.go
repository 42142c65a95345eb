package domain

import "time"

// DefaultRegionID is the well-known fallback region used when a session's
// origin region can no longer be resolved by the host.
const DefaultRegionID = "overworld"

// Point3 is a position inside a region.
type Point3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// AABB is an axis-aligned bounding box describing a zone's extent.
type AABB struct {
	MinX float64 `json:"minX"`
	MaxX float64 `json:"maxX"`
	MinY float64 `json:"minY"`
	MaxY float64 `json:"maxY"`
	MinZ float64 `json:"minZ"`
	MaxZ float64 `json:"maxZ"`
}

// Contains reports whether p lies inside the box (inclusive on all faces).
func (b AABB) Contains(p Point3) bool {
	return p.X >= b.MinX && p.X <= b.MaxX &&
		p.Y >= b.MinY && p.Y <= b.MaxY &&
		p.Z >= b.MinZ && p.Z <= b.MaxZ
}

// ZoneDefinition describes one paid, timed zone. Definitions are immutable
// once loaded; the catalog is only ever replaced wholesale.
type ZoneDefinition struct {
	ID              int     `json:"id"`
	Destination     Point3  `json:"spawnPosition"`
	Bounds          AABB    `json:"bounds"`
	DurationMinutes int     `json:"durationMinutes"`
	Cost            float64 `json:"cost"`
	RegionID        string  `json:"regionId"`
}

// Duration returns the zone's visit duration.
func (z ZoneDefinition) Duration() time.Duration {
	return time.Duration(z.DurationMinutes) * time.Minute
}
