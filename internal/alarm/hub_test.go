package alarm

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragonzzuny/cctv-monitoring-system/internal/rules"
)

func warningEvent() rules.Event {
	roiID := 1
	return rules.Event{
		Type:     rules.EventWarningZoneIntrusion,
		Severity: rules.SeverityWarning,
		Message:  "Warning zone intrusion detected (ROI #1, persons: 1)",
		ROIID:    &roiID,
		CameraID: 1,
	}
}

func infoEvent() rules.Event {
	return rules.Event{
		Type:     rules.EventWarningZoneIntrusion,
		Severity: rules.SeverityInfo,
		Message:  "info only",
		CameraID: 1,
	}
}

type stubSaver struct {
	err   error
	calls int
}

func (s *stubSaver) Save(eventID int64, ev rules.Event, frame []byte) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "/snapshots/20260801/event_1_test.jpg", nil
}

type recordingSubscriber struct {
	mu   sync.Mutex
	recs []Record
}

func (r *recordingSubscriber) Notify(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func (r *recordingSubscriber) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recs)
}

func TestProcessAssignsMonotonicIDs(t *testing.T) {
	h := NewHub(nil, nil)

	first := h.Process(warningEvent(), nil, false, 1000)
	second := h.Process(warningEvent(), nil, false, 2000)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, 1000.0, first.PositionMS)
}

func TestUnacknowledgedTracksOnlyWarningsAndCritical(t *testing.T) {
	h := NewHub(nil, nil)

	h.Process(warningEvent(), nil, false, 0)
	h.Process(infoEvent(), nil, false, 0)

	assert.Equal(t, 1, h.UnacknowledgedCount())
}

func TestAcknowledgeIsIdempotent(t *testing.T) {
	h := NewHub(nil, nil)
	rec := h.Process(warningEvent(), nil, false, 0)

	assert.True(t, h.Acknowledge(rec.ID))
	assert.False(t, h.Acknowledge(rec.ID), "second acknowledge must be a no-op")
	assert.False(t, h.Acknowledge(999), "unknown id must not be an error")
	assert.Equal(t, 0, h.UnacknowledgedCount())
}

func TestSnapshotFailureIsNonFatal(t *testing.T) {
	saver := &stubSaver{err: errors.New("disk full")}
	h := NewHub(saver, nil)

	rec := h.Process(warningEvent(), []byte{0xFF, 0xD8, 0xFF, 0xD9}, false, 0)

	assert.Equal(t, 1, saver.calls)
	assert.Nil(t, rec.SnapshotPath)
	assert.Equal(t, 1, h.UnacknowledgedCount(), "alarm must still be recorded")
}

func TestSnapshotPathAttachedOnSuccess(t *testing.T) {
	h := NewHub(&stubSaver{}, nil)

	rec := h.Process(warningEvent(), []byte{0xFF, 0xD8, 0xFF, 0xD9}, false, 0)
	require.NotNil(t, rec.SnapshotPath)
	assert.Equal(t, "/snapshots/20260801/event_1_test.jpg", *rec.SnapshotPath)

	// No frame, no snapshot attempt
	rec = h.Process(warningEvent(), nil, false, 0)
	assert.Nil(t, rec.SnapshotPath)
}

func TestPanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	h := NewHub(nil, nil)

	good := &recordingSubscriber{}
	h.Subscribe("bad", SubscriberFunc(func(rec Record) error {
		panic("boom")
	}))
	h.Subscribe("good", good)

	h.Process(warningEvent(), nil, false, 0)
	assert.Equal(t, 1, good.count())
}

func TestFailingSubscriberDoesNotBlockOthers(t *testing.T) {
	h := NewHub(nil, nil)

	good := &recordingSubscriber{}
	h.Subscribe("flaky", SubscriberFunc(func(rec Record) error {
		return errors.New("connection reset")
	}))
	h.Subscribe("good", good)

	h.Process(warningEvent(), nil, false, 0)
	h.Process(warningEvent(), nil, false, 0)
	assert.Equal(t, 2, good.count())
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub(nil, nil)
	sub := &recordingSubscriber{}

	h.Subscribe("s", sub)
	h.Process(warningEvent(), nil, false, 0)
	h.Unsubscribe("s")
	h.Process(warningEvent(), nil, false, 0)

	assert.Equal(t, 1, sub.count())
}

func TestNextQueuedReturnsInOrder(t *testing.T) {
	h := NewHub(nil, nil)

	h.Process(warningEvent(), nil, false, 100)
	h.Process(warningEvent(), nil, false, 200)

	first, ok := h.NextQueued(time.Second)
	require.True(t, ok)
	second, ok := h.NextQueued(time.Second)
	require.True(t, ok)

	assert.Equal(t, 100.0, first.PositionMS)
	assert.Equal(t, 200.0, second.PositionMS)
}

func TestNextQueuedTimesOutWhenEmpty(t *testing.T) {
	h := NewHub(nil, nil)

	start := time.Now()
	_, ok := h.NextQueued(50 * time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestNextQueuedWakesOnProcess(t *testing.T) {
	h := NewHub(nil, nil)

	done := make(chan Record, 1)
	go func() {
		rec, ok := h.NextQueued(2 * time.Second)
		if ok {
			done <- rec
		}
	}()

	time.Sleep(20 * time.Millisecond)
	h.Process(warningEvent(), nil, false, 300)

	select {
	case rec := <-done:
		assert.Equal(t, 300.0, rec.PositionMS)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by Process")
	}
}

// rebindingStore rebinds saved records to its own id sequence, the way
// the database store adopts the inserted row id.
type rebindingStore struct {
	nextID int64
	saved  []Record
}

func (s *rebindingStore) Save(rec *Record) error {
	s.nextID++
	rec.ID = s.nextID
	s.saved = append(s.saved, *rec)
	return nil
}

func TestPersistedIDBecomesRecordIdentity(t *testing.T) {
	store := &rebindingStore{nextID: 100}
	h := NewHub(nil, store)

	rec := h.Process(warningEvent(), nil, true, 0)
	require.Len(t, store.saved, 1)
	assert.Equal(t, int64(101), rec.ID)

	// Acknowledgment must key off the durable id, not the provisional one
	assert.Equal(t, 1, h.UnacknowledgedCount())
	assert.False(t, h.Acknowledge(1))
	assert.True(t, h.Acknowledge(101))
	assert.Equal(t, 0, h.UnacknowledgedCount())
}

func TestUnpersistedRecordKeepsHubIdentity(t *testing.T) {
	store := &rebindingStore{nextID: 100}
	h := NewHub(nil, store)

	rec := h.Process(warningEvent(), nil, false, 0)
	assert.Empty(t, store.saved)
	assert.Equal(t, int64(1), rec.ID)
	assert.True(t, h.Acknowledge(rec.ID))
}
