package stream

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/dragonzzuny/cctv-monitoring-system/internal/alarm"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/detection"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/natsserver"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/rules"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/video"
)

// Hub owns the per-camera sessions and the event-subscriber pool. Exactly
// one pipeline runs per camera no matter how many viewers watch it.
type Hub struct {
	alarms   *alarm.Hub
	bus      *natsserver.EmbeddedNATS
	detector detection.Detector
	loadROIs ROILoader
	ruleCfg  rules.Config

	videoFPS     float64
	videoQuality int

	mu       sync.Mutex
	sessions map[int]*Session

	eventsMu     sync.Mutex
	eventClients map[string]Viewer

	eventSub *nats.Subscription
}

// NewHub wires the alarm hub to the event bus and prepares the session
// registry. Alarm records published by any camera pipeline reach every
// connected event subscriber through NATS.
func NewHub(alarms *alarm.Hub, bus *natsserver.EmbeddedNATS, detector detection.Detector, loadROIs ROILoader, ruleCfg rules.Config, videoFPS, videoQuality int) (*Hub, error) {
	h := &Hub{
		alarms:       alarms,
		bus:          bus,
		detector:     detector,
		loadROIs:     loadROIs,
		ruleCfg:      ruleCfg,
		videoFPS:     float64(videoFPS),
		videoQuality: videoQuality,
		sessions:     make(map[int]*Session),
		eventClients: make(map[string]Viewer),
	}

	// Alarm records flow over the bus, then out to event subscribers
	alarms.Subscribe("event-bus", alarm.SubscriberFunc(func(rec alarm.Record) error {
		data, err := json.Marshal(map[string]interface{}{
			"type":  "event",
			"event": rec,
		})
		if err != nil {
			return err
		}
		return bus.Publish(natsserver.SubjectEvents, data)
	}))

	sub, err := bus.Subscribe(natsserver.SubjectEvents, func(msg *nats.Msg) {
		h.broadcastEvent(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to event bus: %w", err)
	}
	h.eventSub = sub

	log.Println("📺 Stream hub started")
	return h, nil
}

// Attach connects a viewer to a camera, creating and starting the
// pipeline if this is the first viewer.
func (h *Hub) Attach(cameraID int, source, sourceType, viewerID string, v Viewer) *Session {
	h.mu.Lock()
	session, exists := h.sessions[cameraID]
	if !exists {
		src := video.NewSource(source, sourceType, h.videoFPS, h.videoQuality)
		session = NewSession(cameraID, src, h.detector, h.alarms, h.loadROIs, h.ruleCfg)
		h.sessions[cameraID] = session
		log.Printf("📺 Created session for camera %d", cameraID)
	}
	h.mu.Unlock()

	session.AddViewer(viewerID, v)
	if !exists {
		session.Start()
	}
	return session
}

// Detach removes a viewer; the pipeline shuts down when the last viewer
// leaves.
func (h *Hub) Detach(cameraID int, viewerID string) {
	h.mu.Lock()
	session, exists := h.sessions[cameraID]
	h.mu.Unlock()
	if !exists {
		return
	}

	session.RemoveViewer(viewerID)
	if session.ViewerCount() == 0 {
		h.mu.Lock()
		delete(h.sessions, cameraID)
		h.mu.Unlock()
		session.Close()
		log.Printf("📺 Removed session for camera %d (no viewers)", cameraID)
	}
}

// Session returns the running session for a camera, if any
func (h *Hub) Session(cameraID int) (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[cameraID]
	return s, ok
}

// ReloadROIs pushes a zone-configuration reload into a running pipeline.
// Cameras without a running session pick the change up on next start.
func (h *Hub) ReloadROIs(cameraID int) {
	if s, ok := h.Session(cameraID); ok {
		s.ReloadROIs()
	}
}

// RegisterEventClient adds a subscriber to the event broadcast pool
func (h *Hub) RegisterEventClient(id string, v Viewer) {
	h.eventsMu.Lock()
	h.eventClients[id] = v
	n := len(h.eventClients)
	h.eventsMu.Unlock()
	log.Printf("🔔 Event subscriber %s connected (%d total)", id, n)
}

// UnregisterEventClient removes a subscriber from the pool
func (h *Hub) UnregisterEventClient(id string) {
	h.eventsMu.Lock()
	delete(h.eventClients, id)
	h.eventsMu.Unlock()
	log.Printf("🔔 Event subscriber %s disconnected", id)
}

func (h *Hub) broadcastEvent(data []byte) {
	h.eventsMu.Lock()
	targets := make(map[string]Viewer, len(h.eventClients))
	for id, v := range h.eventClients {
		targets[id] = v
	}
	h.eventsMu.Unlock()

	for id, v := range targets {
		if err := v.Send(data); err != nil {
			h.eventsMu.Lock()
			delete(h.eventClients, id)
			h.eventsMu.Unlock()
			log.Printf("🧹 Dropped unresponsive event subscriber %s", id)
		}
	}
}

// Shutdown stops every running session and detaches from the bus
func (h *Hub) Shutdown() {
	if h.eventSub != nil {
		h.eventSub.Unsubscribe()
	}

	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.sessions = make(map[int]*Session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	log.Println("📺 Stream hub shut down")
}

// Stats reports the hub's live state
type HubStats struct {
	Sessions         int   `json:"sessions"`
	EventSubscribers int   `json:"eventSubscribers"`
	ActiveCameras    []int `json:"activeCameras"`
}

func (h *Hub) Stats() HubStats {
	h.mu.Lock()
	cameras := make([]int, 0, len(h.sessions))
	for id := range h.sessions {
		cameras = append(cameras, id)
	}
	h.mu.Unlock()

	h.eventsMu.Lock()
	subs := len(h.eventClients)
	h.eventsMu.Unlock()

	return HubStats{
		Sessions:         len(cameras),
		EventSubscribers: subs,
		ActiveCameras:    cameras,
	}
}
