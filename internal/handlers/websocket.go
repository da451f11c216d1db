package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dragonzzuny/cctv-monitoring-system/internal/alarm"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/database"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/models"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/stream"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced at the HTTP layer
	},
}

type controlMessage struct {
	Action     string  `json:"action"`
	PositionMS float64 `json:"position_ms"`
	EventID    int64   `json:"event_id"`
}

// handleViewerCommand applies one control message from a stream viewer
// to its camera session. Commands take effect at tick boundaries.
func handleViewerCommand(session *stream.Session, reply stream.Viewer, message []byte) {
	var msg controlMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("⚠️ Invalid control message: %v", err)
		return
	}

	switch msg.Action {
	case "start":
		session.Start()
	case "stop":
		session.Stop()
	case "seek":
		session.Seek(msg.PositionMS)
	case "reload_rois":
		session.ReloadROIs()
	case "ping":
		pong, _ := json.Marshal(map[string]string{"type": "pong"})
		reply.Send(pong)
	default:
		log.Printf("⚠️ Unknown control action: %s", msg.Action)
	}
}

// handleEventCommand applies one control message from an alarm subscriber
func handleEventCommand(reply stream.Viewer, message []byte) {
	var msg controlMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	switch msg.Action {
	case "acknowledge":
		acked := alarmHub.Acknowledge(msg.EventID)
		if err := alarm.AcknowledgeEvent(msg.EventID); err != nil {
			log.Printf("⚠️ Failed to persist acknowledgment for event %d: %v", msg.EventID, err)
		}
		ack, _ := json.Marshal(map[string]interface{}{
			"type":         "acknowledged",
			"event_id":     msg.EventID,
			"acknowledged": acked,
		})
		reply.Send(ack)
	case "ping":
		pong, _ := json.Marshal(map[string]string{"type": "pong"})
		reply.Send(pong)
	}
}

// StreamWS upgrades a viewer connection for one camera's live feed.
// Control messages (start, stop, seek, reload_rois) are applied to the
// shared pipeline at tick boundaries.
func StreamWS(c *gin.Context) {
	cameraID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid camera ID"})
		return
	}

	var camera models.Camera
	if err := database.DB.First(&camera, cameraID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Camera not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️ WebSocket upgrade failed: %v", err)
		return
	}

	viewerID := uuid.NewString()
	client := stream.NewWSClient(viewerID, conn)
	session := streamHub.Attach(cameraID, camera.Source, string(camera.SourceType), viewerID, client)

	go client.WritePump()
	client.ReadPump(func(message []byte) {
		handleViewerCommand(session, client, message)
	})

	streamHub.Detach(cameraID, viewerID)
}

// EventsWS upgrades an alarm-subscriber connection. The current
// unacknowledged backlog is sent first, then live events as they fire.
// Subscribers may acknowledge alarms over the socket.
func EventsWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️ WebSocket upgrade failed: %v", err)
		return
	}

	clientID := uuid.NewString()
	client := stream.NewWSClient(clientID, conn)
	streamHub.RegisterEventClient(clientID, client)

	go client.WritePump()

	backlog, _ := json.Marshal(map[string]interface{}{
		"type":   "backlog",
		"events": alarmHub.Unacknowledged(),
	})
	client.Send(backlog)

	client.ReadPump(func(message []byte) {
		handleEventCommand(client, message)
	})

	streamHub.UnregisterEventClient(clientID)
}
