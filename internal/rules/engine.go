// Package rules evaluates safety rules over per-frame detection batches,
// debouncing noisy signals into discrete safety events.
package rules

import (
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"

	"github.com/dragonzzuny/cctv-monitoring-system/internal/detection"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/roi"
)

// EventType identifies a safety rule kind
type EventType string

const (
	EventWarningZoneIntrusion    EventType = "WARNING_ZONE_INTRUSION"
	EventDangerZoneIntrusion     EventType = "DANGER_ZONE_INTRUSION"
	EventPPEHelmetMissing        EventType = "PPE_HELMET_MISSING"
	EventPPEMaskMissing          EventType = "PPE_MASK_MISSING"
	EventFireExtinguisherMissing EventType = "FIRE_EXTINGUISHER_MISSING"
)

// Severity levels
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Event is a debounced safety event produced by the engine
type Event struct {
	Type      EventType              `json:"event_type"`
	Severity  Severity               `json:"severity"`
	Message   string                 `json:"message"`
	ROIID     *int                   `json:"roi_id,omitempty"`
	CameraID  int                    `json:"camera_id"`
	Detail    map[string]interface{} `json:"detection_data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Config holds the false-positive prevention tuning
type Config struct {
	Persistence    time.Duration // signal must hold this long
	Cooldown       time.Duration // minimum gap between fires of one key
	FrameWindow    int           // rolling window capacity
	FrameThreshold int           // minimum true frames in the window
}

// DefaultConfig matches the production tuning: 2s persistence, 30s
// cooldown, 20 of the last 30 frames.
func DefaultConfig() Config {
	return Config{
		Persistence:    2 * time.Second,
		Cooldown:       30 * time.Second,
		FrameWindow:    30,
		FrameThreshold: 20,
	}
}

// stayGracePeriod is how long a tracked person may be unseen before their
// stay state is pruned.
const stayGracePeriod = 5 * time.Second

// ppeProximity is the vertical slack, in detector pixels, above a person's
// box top within which a PPE item still counts as worn.
const ppeProximity = 100.0

type stateKey struct {
	kind  EventType
	roiID int
}

// detState tracks one debounced signal
type detState struct {
	firstDetected time.Time
	lastDetected  time.Time
	window        *Window
	fired         bool
	lastFire      time.Time
}

type personKey struct {
	roiID   int
	trackID int
}

// personState tracks one person's dwell inside one ROI
type personState struct {
	trackID   int
	roiID     int
	firstSeen time.Time
	lastSeen  time.Time
	stay      time.Duration
}

// ROIMetrics is a live occupancy read for one ROI
type ROIMetrics struct {
	Count    int          `json:"count"`
	ZoneType string       `json:"zone_type"`
	People   []PersonStay `json:"people"`
}

// PersonStay reports one tracked person's dwell time
type PersonStay struct {
	TrackID  int     `json:"track_id"`
	StayTime float64 `json:"stay_time"`
}

// Engine evaluates safety rules for exactly one camera's pipeline. It is
// not safe for concurrent use; the owning session serializes evaluate,
// metrics and reset calls, so no internal locking is needed.
type Engine struct {
	rois        *roi.Store
	cfg         Config
	states      map[stateKey]*detState
	persons     map[personKey]*personState
	requiresExt map[int]bool

	// now is injectable for tests
	now func() time.Time
}

// NewEngine creates a rule engine bound to one camera's ROI store
func NewEngine(rois *roi.Store, cfg Config) *Engine {
	if cfg.FrameWindow <= 0 {
		cfg = DefaultConfig()
	}
	return &Engine{
		rois:        rois,
		cfg:         cfg,
		states:      make(map[stateKey]*detState),
		persons:     make(map[personKey]*personState),
		requiresExt: make(map[int]bool),
		now:         time.Now,
	}
}

// SetRequiresExtinguisher flags whether a ROI must contain a fire
// extinguisher for the equipment-presence rule.
func (e *Engine) SetRequiresExtinguisher(roiID int, required bool) {
	if required {
		e.requiresExt[roiID] = true
	} else {
		delete(e.requiresExt, roiID)
	}
}

// Evaluate runs all safety rules against one detection batch and returns
// the events that cleared their debounce gates this tick.
func (e *Engine) Evaluate(batch *detection.Result, cameraID int, activeROIs []int) []Event {
	if batch == nil {
		return nil
	}
	now := e.now()

	persons := batch.ByClass(detection.ClassPerson)
	helmets := batch.ByClass(detection.ClassHelmet)
	masks := batch.ByClass(detection.ClassMask)
	extinguishers := batch.ByClass(detection.ClassFireExtinguisher)

	var events []Event
	for _, roiID := range activeROIs {
		events = append(events, e.evaluateROI(roiID, cameraID, persons, helmets, masks, extinguishers, now)...)
	}
	return events
}

func (e *Engine) evaluateROI(roiID, cameraID int, persons, helmets, masks, extinguishers []detection.Box, now time.Time) []Event {
	var events []Event

	zoneType := e.rois.ZoneType(roiID)

	personsInROI := lo.Filter(persons, func(p detection.Box, _ int) bool {
		return e.rois.ContainsFoot(roiID, p, 0, 0)
	})

	// Update per-track stay state
	for _, p := range personsInROI {
		if !p.Tracked() {
			continue
		}
		key := personKey{roiID: roiID, trackID: *p.TrackID}
		if st, ok := e.persons[key]; ok {
			st.lastSeen = now
			st.stay = now.Sub(st.firstSeen)
		} else {
			e.persons[key] = &personState{
				trackID:   *p.TrackID,
				roiID:     roiID,
				firstSeen: now,
				lastSeen:  now,
			}
		}
	}

	// Rule 1: zone intrusion
	eventType := EventWarningZoneIntrusion
	severity := SeverityWarning
	zoneWord := "Warning"
	if zoneType == roi.ZoneDanger {
		eventType = EventDangerZoneIntrusion
		severity = SeverityCritical
		zoneWord = "Danger"
	}

	intrusionState := e.state(eventType, roiID)
	hasPerson := len(personsInROI) > 0

	if e.checkPersistence(intrusionState, now, hasPerson) {
		if !intrusionState.fired && e.checkCooldown(intrusionState, now) {
			intrusionState.fired = true
			intrusionState.lastFire = now

			stayTimes := make(map[string]float64)
			for _, p := range personsInROI {
				if !p.Tracked() {
					continue
				}
				if st, ok := e.persons[personKey{roiID: roiID, trackID: *p.TrackID}]; ok {
					stayTimes[fmt.Sprintf("%d", st.trackID)] = roundStay(now.Sub(st.firstSeen))
				}
			}

			rid := roiID
			events = append(events, Event{
				Type:     eventType,
				Severity: severity,
				Message:  fmt.Sprintf("%s zone intrusion detected (ROI #%d, persons: %d)", zoneWord, roiID, len(personsInROI)),
				ROIID:    &rid,
				CameraID: cameraID,
				Detail: map[string]interface{}{
					"persons_count": len(personsInROI),
					"zone_type":     zoneType,
					"stay_times":    stayTimes,
				},
				Timestamp: now,
			})
		}
	} else {
		intrusionState.fired = false
	}

	// Prune stay state for people gone longer than the grace period
	currentTracks := make(map[int]bool, len(personsInROI))
	for _, p := range personsInROI {
		if p.Tracked() {
			currentTracks[*p.TrackID] = true
		}
	}
	for key, st := range e.persons {
		if key.roiID != roiID || currentTracks[key.trackID] {
			continue
		}
		if now.Sub(st.lastSeen) > stayGracePeriod {
			delete(e.persons, key)
		}
	}

	// PPE and equipment rules only apply while someone is present
	if !hasPerson {
		return events
	}

	events = append(events, e.evaluatePPE(EventPPEHelmetMissing, roiID, cameraID, personsInROI, helmets,
		fmt.Sprintf("Helmet not worn in zone (ROI #%d)", roiID), now)...)
	events = append(events, e.evaluatePPE(EventPPEMaskMissing, roiID, cameraID, personsInROI, masks,
		fmt.Sprintf("Mask not worn in zone (ROI #%d)", roiID), now)...)

	// Rule 4: fire extinguisher presence, only for flagged ROIs
	if e.requiresExt[roiID] {
		extState := e.state(EventFireExtinguisherMissing, roiID)
		extInROI := lo.SomeBy(extinguishers, func(b detection.Box) bool {
			return e.rois.ContainsFoot(roiID, b, 0, 0)
		})

		if e.checkPersistence(extState, now, !extInROI) {
			if !extState.fired && e.checkCooldown(extState, now) {
				extState.fired = true
				extState.lastFire = now
				rid := roiID
				events = append(events, Event{
					Type:      EventFireExtinguisherMissing,
					Severity:  SeverityWarning,
					Message:   fmt.Sprintf("Fire extinguisher missing (ROI #%d)", roiID),
					ROIID:     &rid,
					CameraID:  cameraID,
					Detail:    map[string]interface{}{"has_person": true},
					Timestamp: now,
				})
			}
		} else {
			extState.fired = false
		}
	}

	return events
}

// evaluatePPE runs one missing-equipment rule: the debounced signal is
// "no qualifying item found near any in-ROI person".
func (e *Engine) evaluatePPE(kind EventType, roiID, cameraID int, personsInROI, items []detection.Box, message string, now time.Time) []Event {
	st := e.state(kind, roiID)
	missing := !ppeNearPersons(personsInROI, items)

	if e.checkPersistence(st, now, missing) {
		if !st.fired && e.checkCooldown(st, now) {
			st.fired = true
			st.lastFire = now
			rid := roiID
			return []Event{{
				Type:      kind,
				Severity:  SeverityWarning,
				Message:   message,
				ROIID:     &rid,
				CameraID:  cameraID,
				Detail:    map[string]interface{}{"persons_count": len(personsInROI)},
				Timestamp: now,
			}}
		}
		return nil
	}
	st.fired = false
	return nil
}

// ppeNearPersons checks whether any item sits near a person's head: its
// center x within the person box horizontally, its center y between the
// box top minus the proximity slack and 40% down the box.
func ppeNearPersons(persons, items []detection.Box) bool {
	if len(persons) == 0 {
		return true
	}
	if len(items) == 0 {
		return false
	}

	for _, person := range persons {
		for _, item := range items {
			if person.X1 <= item.CenterX && item.CenterX <= person.X2 &&
				person.Y1-ppeProximity <= item.CenterY &&
				item.CenterY <= person.Y1+(person.Y2-person.Y1)*0.4 {
				return true
			}
		}
	}
	return false
}

func (e *Engine) state(kind EventType, roiID int) *detState {
	key := stateKey{kind: kind, roiID: roiID}
	st, ok := e.states[key]
	if !ok {
		st = &detState{window: NewWindow(e.cfg.FrameWindow)}
		e.states[key] = st
	}
	return st
}

// checkPersistence updates the debounce state with this tick's observation
// and reports whether both gates (minimum duration and frame fraction)
// have been met.
func (e *Engine) checkPersistence(st *detState, now time.Time, detected bool) bool {
	if detected {
		if st.firstDetected.IsZero() {
			st.firstDetected = now
		}
		st.lastDetected = now
		st.window.Push(true)

		if now.Sub(st.firstDetected) < e.cfg.Persistence {
			return false
		}
		return st.window.Trues() >= e.cfg.FrameThreshold
	}

	st.window.Push(false)

	// Mostly absent: restart the persistence countdown so a later
	// re-intrusion is measured from scratch.
	if float64(st.window.Falses()) > float64(st.window.Cap())*0.7 {
		st.firstDetected = time.Time{}
	}
	return false
}

func (e *Engine) checkCooldown(st *detState, now time.Time) bool {
	if st.lastFire.IsZero() {
		return true
	}
	return now.Sub(st.lastFire) >= e.cfg.Cooldown
}

// Metrics returns current occupancy per active ROI without mutating state
func (e *Engine) Metrics(activeROIs []int) map[int]ROIMetrics {
	metrics := make(map[int]ROIMetrics, len(activeROIs))
	for _, roiID := range activeROIs {
		var people []PersonStay
		for key, st := range e.persons {
			if key.roiID != roiID {
				continue
			}
			people = append(people, PersonStay{
				TrackID:  st.trackID,
				StayTime: roundStay(st.stay),
			})
		}
		metrics[roiID] = ROIMetrics{
			Count:    len(people),
			ZoneType: e.rois.ZoneType(roiID),
			People:   people,
		}
	}
	return metrics
}

// Reset clears debounce state for one ROI (used when its configuration
// changes).
func (e *Engine) Reset(roiID int) {
	for key := range e.states {
		if key.roiID == roiID {
			delete(e.states, key)
		}
	}
	for key := range e.persons {
		if key.roiID == roiID {
			delete(e.persons, key)
		}
	}
}

// ResetAll clears all debounce and stay state
func (e *Engine) ResetAll() {
	e.states = make(map[stateKey]*detState)
	e.persons = make(map[personKey]*personState)
}

// SetNow overrides the engine clock; tests use this to control time
func (e *Engine) SetNow(now func() time.Time) {
	e.now = now
}

func roundStay(d time.Duration) float64 {
	return math.Round(d.Seconds()*10) / 10
}
