// Package roi manages region-of-interest polygons and containment queries.
package roi

import (
	"fmt"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"

	"github.com/dragonzzuny/cctv-monitoring-system/internal/detection"
)

// Zone types
const (
	ZoneWarning = "warning"
	ZoneDanger  = "danger"
)

// Default detection frame resolution used when the caller does not supply
// canvas dimensions. Detector output is standardized to this size.
const (
	defaultCanvasWidth  = 640.0
	defaultCanvasHeight = 360.0
)

// Point is a polygon vertex in normalized [0,1] space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Info is the public view of a stored ROI (without the polygon)
type Info struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Color    string  `json:"color"`
	ZoneType string  `json:"zone_type"`
	Points   []Point `json:"points"`
}

type entry struct {
	Info
	polygon orb.Polygon
}

// Store holds the active ROIs for one camera. Pure geometry, no I/O.
type Store struct {
	mu   sync.RWMutex
	rois map[int]*entry
}

// NewStore creates an empty ROI store
func NewStore() *Store {
	return &Store{rois: make(map[int]*entry)}
}

// Upsert validates and inserts or replaces a ROI. Points may arrive
// normalized to [0,1] or in pixel coordinates of an unknown source
// resolution; see normalizePoints for the heuristic.
func (s *Store) Upsert(id int, points []Point, name, color, zoneType string) error {
	if len(points) < 3 {
		return fmt.Errorf("ROI %d has less than 3 points", id)
	}

	normalized := normalizePoints(points)

	ring := make(orb.Ring, 0, len(normalized)+1)
	for _, p := range normalized {
		ring = append(ring, orb.Point{p.X, p.Y})
	}
	// Close the ring and normalize winding. Self-intersecting input is
	// tolerated: containment below uses ray casting, which handles it.
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	if ring.Orientation() == orb.CW {
		ring.Reverse()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rois[id] = &entry{
		Info: Info{
			ID:       id,
			Name:     name,
			Color:    color,
			ZoneType: zoneType,
			Points:   normalized,
		},
		polygon: orb.Polygon{ring},
	}
	return nil
}

// normalizePoints applies the coordinate-space heuristic: max x ≤1.1
// means already normalized; otherwise infer the source resolution per
// axis and divide through. The x axis defaults to 1280 (1920 when max x
// exceeds 1300); the y axis is scaled only when its own max exceeds 1.1,
// by 720 (1080 when max y exceeds 800). The thresholds are guesses about
// caller resolution; callers from other resolutions may be misnormalized.
func normalizePoints(points []Point) []Point {
	maxX, maxY := 0.0, 0.0
	for _, p := range points {
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	scaleX, scaleY := 1.0, 1.0
	if maxX > 1.1 {
		scaleX = 1280.0
		if maxY > 1.1 {
			scaleY = 720.0
		}
		if maxX > 1300 {
			scaleX = 1920.0
		}
		if maxY > 800 {
			scaleY = 1080.0
		}
	}

	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Point{X: p.X / scaleX, Y: p.Y / scaleY}
	}
	return out
}

// Remove deletes a ROI from the store
func (s *Store) Remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rois, id)
}

// Clear removes all ROIs
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rois = make(map[int]*entry)
}

// Get returns ROI data by ID
func (s *Store) Get(id int) (Info, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.rois[id]; ok {
		return e.Info, true
	}
	return Info{}, false
}

// List returns all ROIs sorted by ID
func (s *Store) List() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Info, 0, len(s.rois))
	for _, e := range s.rois {
		out = append(out, e.Info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ZoneType returns the zone type for a ROI, defaulting to warning
func (s *Store) ZoneType(id int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.rois[id]; ok {
		return e.ZoneType
	}
	return ZoneWarning
}

// ContainsPoint checks whether a detector-space point lies inside a ROI.
// x and y are pixel coordinates; they are normalized against the supplied
// canvas size, falling back to the standard 640x360 detection frame.
func (s *Store) ContainsPoint(id int, x, y, canvasW, canvasH float64) bool {
	s.mu.RLock()
	e, ok := s.rois[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	effW, effH := canvasW, canvasH
	if effW <= 0 {
		effW = defaultCanvasWidth
	}
	if effH <= 0 {
		effH = defaultCanvasHeight
	}

	return planar.PolygonContains(e.polygon, orb.Point{x / effW, y / effH})
}

// ContainsFoot checks whether a detection's bottom-center ("feet") point
// lies inside a ROI.
func (s *Store) ContainsFoot(id int, det detection.Box, canvasW, canvasH float64) bool {
	return s.ContainsPoint(id, det.CenterX, det.Y2, canvasW, canvasH)
}

// BoxOverlap checks whether the ROI polygon covers at least threshold of
// the detection box's area. Box coordinates are detector-space pixels and
// are normalized against the canvas before clipping.
func (s *Store) BoxOverlap(id int, det detection.Box, threshold, canvasW, canvasH float64) bool {
	s.mu.RLock()
	e, ok := s.rois[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	effW, effH := canvasW, canvasH
	if effW <= 0 {
		effW = defaultCanvasWidth
	}
	if effH <= 0 {
		effH = defaultCanvasHeight
	}

	bound := orb.Bound{
		Min: orb.Point{det.X1 / effW, det.Y1 / effH},
		Max: orb.Point{det.X2 / effW, det.Y2 / effH},
	}
	boxArea := (det.X2 - det.X1) / effW * ((det.Y2 - det.Y1) / effH)
	if boxArea <= 0 {
		return false
	}

	clipped := clip.Polygon(bound, e.polygon.Clone())
	if len(clipped) == 0 {
		return false
	}

	return planar.Area(clipped)/boxArea >= threshold
}
