package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragonzzuny/cctv-monitoring-system/internal/detection"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/roi"
)

const testROI = 1

// fullCanvasStore returns a store with one ROI covering the whole frame
func fullCanvasStore(t *testing.T, zoneType string) *roi.Store {
	t.Helper()
	store := roi.NewStore()
	err := store.Upsert(testROI, []roi.Point{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
	}, "test zone", "#FF0000", zoneType)
	require.NoError(t, err)
	return store
}

func trackedPerson(trackID int) detection.Box {
	return detection.Box{
		ClassName:  detection.ClassPerson,
		Confidence: 0.9,
		X1:         300, Y1: 100, X2: 340, Y2: 180,
		CenterX: 320, CenterY: 140,
		TrackID: &trackID,
	}
}

func helmetOnHead() detection.Box {
	// Centered over the test person's head
	return detection.Box{
		ClassName:  detection.ClassHelmet,
		Confidence: 0.85,
		X1:         310, Y1: 85, X2: 330, Y2: 105,
		CenterX: 320, CenterY: 95,
	}
}

func extinguisherInZone() detection.Box {
	return detection.Box{
		ClassName:  detection.ClassFireExtinguisher,
		Confidence: 0.8,
		X1:         100, Y1: 200, X2: 130, Y2: 280,
		CenterX: 115, CenterY: 240,
	}
}

func batchOf(boxes ...detection.Box) *detection.Result {
	return &detection.Result{Detections: boxes}
}

type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEngine(store *roi.Store, clock *testClock) *Engine {
	eng := NewEngine(store, DefaultConfig())
	eng.SetNow(func() time.Time { return clock.now })
	return eng
}

// runTicks evaluates the same batch repeatedly, advancing the clock by
// step between ticks, and collects all emitted events.
func runTicks(eng *Engine, batch *detection.Result, ticks int, step time.Duration, clock *testClock) []Event {
	var events []Event
	for i := 0; i < ticks; i++ {
		events = append(events, eng.Evaluate(batch, 1, []int{testROI})...)
		clock.advance(step)
	}
	return events
}

func eventsOfType(events []Event, kind EventType) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Type == kind {
			out = append(out, ev)
		}
	}
	return out
}

func TestWarningIntrusionFiresOnce(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(fullCanvasStore(t, roi.ZoneWarning), clock)

	events := runTicks(eng, batchOf(trackedPerson(7)), 40, 100*time.Millisecond, clock)

	intrusions := eventsOfType(events, EventWarningZoneIntrusion)
	require.Len(t, intrusions, 1, "debounced intrusion must fire exactly once")

	ev := intrusions[0]
	assert.Equal(t, SeverityWarning, ev.Severity)
	assert.Equal(t, 1, ev.CameraID)
	require.NotNil(t, ev.ROIID)
	assert.Equal(t, testROI, *ev.ROIID)
	assert.Equal(t, 1, ev.Detail["persons_count"])
	assert.Contains(t, ev.Detail["stay_times"].(map[string]float64), "7")
}

func TestDangerZoneIntrusionIsCritical(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(fullCanvasStore(t, roi.ZoneDanger), clock)

	events := runTicks(eng, batchOf(trackedPerson(3)), 40, 100*time.Millisecond, clock)

	intrusions := eventsOfType(events, EventDangerZoneIntrusion)
	require.Len(t, intrusions, 1)
	assert.Equal(t, SeverityCritical, intrusions[0].Severity)
	assert.Empty(t, eventsOfType(events, EventWarningZoneIntrusion))
}

func TestIntrusionBeforePersistenceIsSilent(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(fullCanvasStore(t, roi.ZoneWarning), clock)

	// 15 ticks over 1.5s: not enough duration, not enough frames
	events := runTicks(eng, batchOf(trackedPerson(7)), 15, 100*time.Millisecond, clock)
	assert.Empty(t, eventsOfType(events, EventWarningZoneIntrusion))
}

func TestIntrusionRefiresAfterCooldown(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(fullCanvasStore(t, roi.ZoneWarning), clock)

	first := runTicks(eng, batchOf(trackedPerson(7)), 40, 100*time.Millisecond, clock)
	require.Len(t, eventsOfType(first, EventWarningZoneIntrusion), 1)

	// The zone empties for over 30 seconds; absence drops the fired gate
	// and resets the persistence countdown
	empty := runTicks(eng, batchOf(), 30, 1200*time.Millisecond, clock)
	assert.Empty(t, empty)

	second := runTicks(eng, batchOf(trackedPerson(7)), 40, 100*time.Millisecond, clock)
	require.Len(t, eventsOfType(second, EventWarningZoneIntrusion), 1, "re-entry after cooldown must fire again")
}

func TestStayTimeTracking(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(fullCanvasStore(t, roi.ZoneWarning), clock)

	eng.Evaluate(batchOf(trackedPerson(42)), 1, []int{testROI})

	clock.advance(5500 * time.Millisecond)
	eng.Evaluate(batchOf(trackedPerson(42)), 1, []int{testROI})

	metrics := eng.Metrics([]int{testROI})
	m := metrics[testROI]
	require.Equal(t, 1, m.Count)
	assert.Equal(t, 42, m.People[0].TrackID)
	assert.Equal(t, 5.5, m.People[0].StayTime)
	assert.Equal(t, roi.ZoneWarning, m.ZoneType)
}

func TestStayStatePrunedAfterGrace(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(fullCanvasStore(t, roi.ZoneWarning), clock)

	eng.Evaluate(batchOf(trackedPerson(42)), 1, []int{testROI})
	require.Equal(t, 1, eng.Metrics([]int{testROI})[testROI].Count)

	// Gone for 6 seconds, past the 5s grace period
	clock.advance(6 * time.Second)
	eng.Evaluate(batchOf(), 1, []int{testROI})

	assert.Equal(t, 0, eng.Metrics([]int{testROI})[testROI].Count)
}

func TestHelmetMissingFires(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(fullCanvasStore(t, roi.ZoneWarning), clock)

	events := runTicks(eng, batchOf(trackedPerson(7)), 40, 100*time.Millisecond, clock)

	helmet := eventsOfType(events, EventPPEHelmetMissing)
	require.Len(t, helmet, 1)
	assert.Equal(t, SeverityWarning, helmet[0].Severity)
	require.Len(t, eventsOfType(events, EventPPEMaskMissing), 1)

	// Intrusion and missing helmet clear their gates on the same tick
	intrusion := eventsOfType(events, EventWarningZoneIntrusion)
	require.Len(t, intrusion, 1)
	assert.Equal(t, intrusion[0].Timestamp, helmet[0].Timestamp)
}

func TestHelmetWornSuppressesEvent(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(fullCanvasStore(t, roi.ZoneWarning), clock)

	events := runTicks(eng, batchOf(trackedPerson(7), helmetOnHead()), 40, 100*time.Millisecond, clock)

	assert.Empty(t, eventsOfType(events, EventPPEHelmetMissing))
	// Mask is still missing
	assert.Len(t, eventsOfType(events, EventPPEMaskMissing), 1)
}

func TestNoPersonsNoPPEEvents(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(fullCanvasStore(t, roi.ZoneWarning), clock)

	// Only a helmet lying around, nobody present
	events := runTicks(eng, batchOf(helmetOnHead()), 40, 100*time.Millisecond, clock)
	assert.Empty(t, events)
}

func TestExtinguisherMissingOnlyForFlaggedROI(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(fullCanvasStore(t, roi.ZoneWarning), clock)

	events := runTicks(eng, batchOf(trackedPerson(7)), 40, 100*time.Millisecond, clock)
	assert.Empty(t, eventsOfType(events, EventFireExtinguisherMissing), "rule must not apply to unflagged zones")

	eng.SetRequiresExtinguisher(testROI, true)
	eng.ResetAll()
	clock.advance(time.Minute)

	events = runTicks(eng, batchOf(trackedPerson(7)), 40, 100*time.Millisecond, clock)
	require.Len(t, eventsOfType(events, EventFireExtinguisherMissing), 1)
}

func TestExtinguisherPresentSuppressesEvent(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(fullCanvasStore(t, roi.ZoneWarning), clock)
	eng.SetRequiresExtinguisher(testROI, true)

	events := runTicks(eng, batchOf(trackedPerson(7), extinguisherInZone()), 40, 100*time.Millisecond, clock)
	assert.Empty(t, eventsOfType(events, EventFireExtinguisherMissing))
}

func TestPPEProximityGeometry(t *testing.T) {
	person := trackedPerson(1)

	// Directly over the head
	assert.True(t, ppeNearPersons([]detection.Box{person}, []detection.Box{helmetOnHead()}))

	// Horizontally outside the person box
	offside := helmetOnHead()
	offside.CenterX = 500
	assert.False(t, ppeNearPersons([]detection.Box{person}, []detection.Box{offside}))

	// Below 40% of the body height
	low := helmetOnHead()
	low.CenterY = person.Y1 + (person.Y2-person.Y1)*0.5
	assert.False(t, ppeNearPersons([]detection.Box{person}, []detection.Box{low}))

	// No persons trivially passes, no items fails
	assert.True(t, ppeNearPersons(nil, []detection.Box{helmetOnHead()}))
	assert.False(t, ppeNearPersons([]detection.Box{person}, nil))
}

func TestResetClearsROIState(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(fullCanvasStore(t, roi.ZoneWarning), clock)

	runTicks(eng, batchOf(trackedPerson(7)), 40, 100*time.Millisecond, clock)
	require.Equal(t, 1, eng.Metrics([]int{testROI})[testROI].Count)

	eng.Reset(testROI)
	assert.Equal(t, 0, eng.Metrics([]int{testROI})[testROI].Count)
}
