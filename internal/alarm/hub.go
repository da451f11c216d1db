// Package alarm turns safety events into identity-bearing alarm records
// and distributes them to subscribers.
package alarm

import (
	"log"
	"sync"
	"time"

	"github.com/dragonzzuny/cctv-monitoring-system/internal/rules"
)

// Record is the durable, identity-bearing form of a safety event
type Record struct {
	ID             int64                  `json:"id"`
	EventType      string                 `json:"event_type"`
	Severity       rules.Severity         `json:"severity"`
	Message        string                 `json:"message"`
	CameraID       int                    `json:"camera_id"`
	ROIID          *int                   `json:"roi_id,omitempty"`
	SnapshotPath   *string                `json:"snapshot_path,omitempty"`
	Detail         map[string]interface{} `json:"detection_data,omitempty"`
	PositionMS     float64                `json:"position_ms"`
	IsAcknowledged bool                   `json:"is_acknowledged"`
	CreatedAt      time.Time              `json:"created_at"`
}

// Subscriber receives finished alarm records. A failing subscriber never
// blocks or fails delivery to the others.
type Subscriber interface {
	Notify(rec Record) error
}

// SubscriberFunc adapts a plain function to the Subscriber interface
type SubscriberFunc func(rec Record) error

func (f SubscriberFunc) Notify(rec Record) error {
	return f(rec)
}

// SnapshotSaver persists an annotated still for an event. Failures are
// non-fatal to alarm processing.
type SnapshotSaver interface {
	Save(eventID int64, ev rules.Event, frame []byte) (string, error)
}

// RecordStore persists alarm records durably. Failures are logged, not
// retried; the in-memory record remains authoritative.
type RecordStore interface {
	Save(rec *Record) error
}

// Hub assigns identities to safety events, tracks unacknowledged alarms
// and notifies subscribers. One instance is shared by all camera sessions,
// so all mutable state is mutex-guarded.
type Hub struct {
	mu          sync.Mutex
	nextID      int64
	unacked     map[int64]Record
	subscribers map[string]Subscriber
	queue       []Record
	wake        chan struct{}

	snapshots SnapshotSaver
	store     RecordStore
}

// NewHub creates an alarm hub with optional snapshot and persistence
// collaborators (either may be nil).
func NewHub(snapshots SnapshotSaver, store RecordStore) *Hub {
	return &Hub{
		nextID:      1,
		unacked:     make(map[int64]Record),
		subscribers: make(map[string]Subscriber),
		wake:        make(chan struct{}, 1),
		snapshots:   snapshots,
		store:       store,
	}
}

// Process assigns an identity to the event, snapshots the frame when one
// is supplied, optionally persists the record, and fans it out. A store
// may rebind the record to its durable id on save; the unacknowledged set
// and all deliveries carry that final id.
func (h *Hub) Process(ev rules.Event, frame []byte, persist bool, positionMS float64) Record {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.mu.Unlock()

	rec := Record{
		ID:         id,
		EventType:  string(ev.Type),
		Severity:   ev.Severity,
		Message:    ev.Message,
		CameraID:   ev.CameraID,
		ROIID:      ev.ROIID,
		Detail:     ev.Detail,
		PositionMS: positionMS,
		CreatedAt:  time.Now().UTC(),
	}

	if frame != nil && h.snapshots != nil {
		if path, err := h.snapshots.Save(id, ev, frame); err != nil {
			log.Printf("⚠️ Failed to save snapshot for event %d: %v", id, err)
		} else {
			rec.SnapshotPath = &path
		}
	}

	if persist && h.store != nil {
		if err := h.store.Save(&rec); err != nil {
			log.Printf("⚠️ Failed to persist event %d: %v", id, err)
		}
	}

	if ev.Severity == rules.SeverityWarning || ev.Severity == rules.SeverityCritical {
		h.mu.Lock()
		h.unacked[rec.ID] = rec
		h.mu.Unlock()
	}

	h.notifySubscribers(rec)

	h.mu.Lock()
	h.queue = append(h.queue, rec)
	h.mu.Unlock()
	select {
	case h.wake <- struct{}{}:
	default:
	}

	log.Printf("🚨 Event processed: [%s] %s - %s", rec.Severity, rec.EventType, rec.Message)
	return rec
}

// notifySubscribers delivers the record to every subscriber, isolating
// failures and panics so one bad callback cannot starve the rest.
func (h *Hub) notifySubscribers(rec Record) {
	h.mu.Lock()
	subs := make(map[string]Subscriber, len(h.subscribers))
	for id, s := range h.subscribers {
		subs[id] = s
	}
	h.mu.Unlock()

	for id, s := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("⚠️ Subscriber %s panicked: %v", id, r)
				}
			}()
			if err := s.Notify(rec); err != nil {
				log.Printf("⚠️ Error notifying subscriber %s: %v", id, err)
			}
		}()
	}
}

// Subscribe registers a subscriber under the given identity
func (h *Hub) Subscribe(id string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[id] = s
}

// Unsubscribe removes a subscriber
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, id)
}

// Acknowledge removes an alarm from the unacknowledged set. Acknowledging
// an unknown or already-acknowledged id is a no-op and returns false.
func (h *Hub) Acknowledge(id int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.unacked[id]; !ok {
		return false
	}
	delete(h.unacked, id)
	return true
}

// Unacknowledged returns all unacknowledged alarm records
func (h *Hub) Unacknowledged() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Record, 0, len(h.unacked))
	for _, rec := range h.unacked {
		out = append(out, rec)
	}
	return out
}

// UnacknowledgedCount returns the number of unacknowledged alarms
func (h *Hub) UnacknowledgedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.unacked)
}

// NextQueued pops the next record from the pull queue, waiting up to
// timeout for one to arrive. A zero timeout polls without waiting.
func (h *Hub) NextQueued(timeout time.Duration) (Record, bool) {
	deadline := time.Now().Add(timeout)
	for {
		h.mu.Lock()
		if len(h.queue) > 0 {
			rec := h.queue[0]
			h.queue = h.queue[1:]
			h.mu.Unlock()
			return rec, true
		}
		h.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Record{}, false
		}

		timer := time.NewTimer(remaining)
		select {
		case <-h.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}
