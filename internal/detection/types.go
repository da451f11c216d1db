// Package detection defines detection batch types and the model-server client.
package detection

import (
	"github.com/samber/lo"
)

// Detection class names standardized across models
const (
	ClassHelmet           = "helmet"
	ClassGloves           = "gloves"
	ClassVest             = "vest"
	ClassBoots            = "boots"
	ClassGoggles          = "goggles"
	ClassMask             = "mask"
	ClassPerson           = "person"
	ClassMachinery        = "machinery"
	ClassVehicle          = "vehicle"
	ClassSafetyCone       = "safety_cone"
	ClassFireExtinguisher = "fire_extinguisher"
)

// Box is a single detection bounding box
type Box struct {
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	CenterX    float64 `json:"center_x"`
	CenterY    float64 `json:"center_y"`
	// TrackID is set only when the upstream tracker maintains identity
	// across frames; -1 means untracked.
	TrackID *int `json:"track_id,omitempty"`
}

// Tracked reports whether the box carries a stable track identity
func (b Box) Tracked() bool {
	return b.TrackID != nil
}

// Result is the detection batch for a single frame
type Result struct {
	FrameNumber int     `json:"frame_number"`
	Timestamp   float64 `json:"timestamp"`
	Detections  []Box   `json:"detections"`

	PersonsCount           int `json:"persons_count"`
	HelmetsCount           int `json:"helmets_count"`
	MasksCount             int `json:"masks_count"`
	FireExtinguishersCount int `json:"fire_extinguishers_count"`
}

// ByClass returns all detections of the given class
func (r *Result) ByClass(className string) []Box {
	return lo.Filter(r.Detections, func(b Box, _ int) bool {
		return b.ClassName == className
	})
}

// FillCounts recomputes the per-class convenience counts and box centers.
// Detectors that only send corners leave center fields zeroed.
func (r *Result) FillCounts() {
	for i := range r.Detections {
		d := &r.Detections[i]
		if d.CenterX == 0 && d.CenterY == 0 {
			d.CenterX = (d.X1 + d.X2) / 2
			d.CenterY = (d.Y1 + d.Y2) / 2
		}
	}
	r.PersonsCount = len(r.ByClass(ClassPerson))
	r.HelmetsCount = len(r.ByClass(ClassHelmet))
	r.MasksCount = len(r.ByClass(ClassMask))
	r.FireExtinguishersCount = len(r.ByClass(ClassFireExtinguisher))
}

// Detector produces a detection batch for a frame. Implementations must be
// safe to call once per frame; track IDs, when present, are stable across
// frames per the backend's own tracking contract.
type Detector interface {
	Detect(frame []byte, frameNumber int, timestamp float64) (*Result, error)
}
