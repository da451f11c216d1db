package handlers

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragonzzuny/cctv-monitoring-system/internal/alarm"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/rules"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/stream"
)

// stubSource is an in-memory video source for exercising control commands
type stubSource struct {
	mu    sync.Mutex
	seeks []float64
}

func (s *stubSource) Open() error { return nil }

func (s *stubSource) ReadFrame() ([]byte, error) {
	return []byte{0xFF, 0xD8, 0xFF, 0xD9}, nil
}

func (s *stubSource) Seek(positionMS float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeks = append(s.seeks, positionMS)
	return nil
}

func (s *stubSource) seekHistory() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.seeks...)
}

func (s *stubSource) PositionMS() float64 { return 0 }
func (s *stubSource) DurationMS() float64 { return 10000 }
func (s *stubSource) FPS() float64        { return 100 }
func (s *stubSource) Live() bool          { return false }
func (s *stubSource) Close() error        { return nil }

// replyRecorder captures messages sent back over the control connection
type replyRecorder struct {
	mu       sync.Mutex
	messages [][]byte
}

func (r *replyRecorder) Send(message []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, append([]byte(nil), message...))
	return nil
}

func (r *replyRecorder) lastOfType(kind string) (map[string]interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		var decoded map[string]interface{}
		if json.Unmarshal(r.messages[i], &decoded) != nil {
			continue
		}
		if decoded["type"] == kind {
			return decoded, true
		}
	}
	return nil, false
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestViewerCommandsUseActionKey(t *testing.T) {
	src := &stubSource{}
	var reloads int32
	loader := func(cameraID int) ([]stream.ROIConfig, error) {
		atomic.AddInt32(&reloads, 1)
		return nil, nil
	}
	session := stream.NewSession(1, src, nil, alarm.NewHub(nil, nil), loader, rules.DefaultConfig())
	defer session.Close()

	reply := &replyRecorder{}

	// start loads zones once
	handleViewerCommand(session, reply, []byte(`{"action":"start"}`))
	waitFor(t, func() bool { return atomic.LoadInt32(&reloads) == 1 })

	handleViewerCommand(session, reply, []byte(`{"action":"seek","position_ms":5000}`))
	waitFor(t, func() bool { return len(src.seekHistory()) == 1 })
	assert.Equal(t, 5000.0, src.seekHistory()[0])

	handleViewerCommand(session, reply, []byte(`{"action":"reload_rois"}`))
	waitFor(t, func() bool { return atomic.LoadInt32(&reloads) == 2 })

	handleViewerCommand(session, reply, []byte(`{"action":"ping"}`))
	_, ok := reply.lastOfType("pong")
	assert.True(t, ok)
}

func TestEventCommandAcknowledgesAlarm(t *testing.T) {
	hub := alarm.NewHub(nil, nil)
	Init(nil, hub, "test-secret")

	rec := hub.Process(rules.Event{
		Type:     rules.EventWarningZoneIntrusion,
		Severity: rules.SeverityWarning,
		Message:  "Warning zone intrusion detected",
		CameraID: 1,
	}, nil, false, 0)
	require.Equal(t, 1, hub.UnacknowledgedCount())

	reply := &replyRecorder{}
	handleEventCommand(reply, []byte(fmt.Sprintf(`{"action":"acknowledge","event_id":%d}`, rec.ID)))

	assert.Equal(t, 0, hub.UnacknowledgedCount())
	ack, ok := reply.lastOfType("acknowledged")
	require.True(t, ok)
	assert.Equal(t, true, ack["acknowledged"])
	assert.Equal(t, float64(rec.ID), ack["event_id"])
}

func TestEventCommandUnknownIDIsNoOp(t *testing.T) {
	hub := alarm.NewHub(nil, nil)
	Init(nil, hub, "test-secret")

	reply := &replyRecorder{}
	handleEventCommand(reply, []byte(`{"action":"acknowledge","event_id":999}`))

	ack, ok := reply.lastOfType("acknowledged")
	require.True(t, ok)
	assert.Equal(t, false, ack["acknowledged"])
}
