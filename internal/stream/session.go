// Package stream orchestrates per-camera monitoring pipelines and fans
// processed frames out to websocket viewers.
package stream

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dragonzzuny/cctv-monitoring-system/internal/alarm"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/detection"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/roi"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/rules"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/video"
)

// maxFrameSkip bounds how many frames a lagging pipeline may drop per
// tick to catch up with real time.
const maxFrameSkip = 5

// idlePollInterval is how often an idle session wakes to check for
// shutdown while waiting for commands.
const idlePollInterval = 500 * time.Millisecond

// Viewer receives serialized frame messages. A Send error removes the
// viewer from the session.
type Viewer interface {
	Send(message []byte) error
}

// ROIConfig is the stored configuration of one detection zone
type ROIConfig struct {
	ID                   int
	Name                 string
	Color                string
	ZoneType             string
	Points               []roi.Point
	RequiresExtinguisher bool
}

// ROILoader fetches the active zones for a camera from storage
type ROILoader func(cameraID int) ([]ROIConfig, error)

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdSeek
	cmdReloadROIs
)

type command struct {
	kind       commandKind
	positionMS float64
}

// Session runs the monitoring pipeline for exactly one camera: read a
// frame, detect, evaluate rules, dispatch alarms, broadcast to viewers.
// All pipeline state is owned by the run goroutine; control arrives as
// commands applied at tick boundaries.
type Session struct {
	CameraID int

	source   video.Source
	detector detection.Detector
	rois     *roi.Store
	engine   *rules.Engine
	hub      *alarm.Hub
	loadROIs ROILoader

	commands chan command
	done     chan struct{}
	closed   sync.Once

	mu      sync.Mutex
	viewers map[string]Viewer

	frameNumber int
	opened      bool
}

// NewSession creates a pipeline for one camera. The session owns the
// source and closes it on shutdown.
func NewSession(cameraID int, source video.Source, detector detection.Detector, hub *alarm.Hub, loadROIs ROILoader, ruleCfg rules.Config) *Session {
	rois := roi.NewStore()
	s := &Session{
		CameraID: cameraID,
		source:   source,
		detector: detector,
		rois:     rois,
		engine:   rules.NewEngine(rois, ruleCfg),
		hub:      hub,
		loadROIs: loadROIs,
		commands: make(chan command, 16),
		done:     make(chan struct{}),
		viewers:  make(map[string]Viewer),
	}
	go s.run()
	return s
}

// Start begins streaming at the next tick boundary
func (s *Session) Start() {
	s.send(command{kind: cmdStart})
}

// Stop pauses streaming and releases the video pipeline
func (s *Session) Stop() {
	s.send(command{kind: cmdStop})
}

// Seek repositions playback; applied at the next tick boundary
func (s *Session) Seek(positionMS float64) {
	s.send(command{kind: cmdSeek, positionMS: positionMS})
}

// ReloadROIs re-reads zone configuration from storage at the next tick
func (s *Session) ReloadROIs() {
	s.send(command{kind: cmdReloadROIs})
}

func (s *Session) send(cmd command) {
	select {
	case s.commands <- cmd:
	case <-s.done:
	}
}

// AddViewer attaches a viewer; it starts receiving frames on the next tick
func (s *Session) AddViewer(id string, v Viewer) {
	s.mu.Lock()
	s.viewers[id] = v
	n := len(s.viewers)
	s.mu.Unlock()
	log.Printf("👤 Viewer %s joined camera %d (%d total)", id, s.CameraID, n)
}

// RemoveViewer detaches a viewer
func (s *Session) RemoveViewer(id string) {
	s.mu.Lock()
	delete(s.viewers, id)
	n := len(s.viewers)
	s.mu.Unlock()
	log.Printf("👤 Viewer %s left camera %d (%d remain)", id, s.CameraID, n)
}

// ViewerCount returns the number of attached viewers
func (s *Session) ViewerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.viewers)
}

// Close shuts the session down and releases the video source
func (s *Session) Close() {
	s.closed.Do(func() { close(s.done) })
}

func (s *Session) run() {
	defer func() {
		if s.opened {
			s.source.Close()
		}
		log.Printf("🛑 Session for camera %d stopped", s.CameraID)
	}()

	streaming := false
	interval := time.Second / 15
	if fps := s.source.FPS(); fps > 0 {
		interval = time.Duration(float64(time.Second) / fps)
	}

	for {
		if !streaming {
			select {
			case <-s.done:
				return
			case cmd := <-s.commands:
				streaming = s.apply(cmd, streaming)
			case <-time.After(idlePollInterval):
			}
			continue
		}

		select {
		case <-s.done:
			return
		case cmd := <-s.commands:
			streaming = s.apply(cmd, streaming)
			continue
		default:
		}

		started := time.Now()
		if err := s.tick(); err != nil {
			log.Printf("⚠️ Camera %d pipeline error: %v", s.CameraID, err)
			streaming = false
			s.closeSource()
			continue
		}

		// Fixed-rate pacing with bounded catch-up when a tick overruns
		elapsed := time.Since(started)
		if elapsed < interval {
			time.Sleep(interval - elapsed)
		} else {
			behind := int(elapsed/interval) - 1
			if behind > maxFrameSkip {
				behind = maxFrameSkip
			}
			for i := 0; i < behind; i++ {
				if _, err := s.source.ReadFrame(); err != nil {
					break
				}
				s.frameNumber++
			}
		}
	}
}

// apply executes one control command and returns the new streaming state
func (s *Session) apply(cmd command, streaming bool) bool {
	switch cmd.kind {
	case cmdStart:
		if streaming {
			return true
		}
		if !s.opened {
			if err := s.source.Open(); err != nil {
				log.Printf("⚠️ Failed to open source for camera %d: %v", s.CameraID, err)
				return false
			}
			s.opened = true
		}
		s.reloadROIs()
		s.broadcast(s.metadataMessage())
		log.Printf("▶️ Camera %d streaming started", s.CameraID)
		return true

	case cmdStop:
		s.closeSource()
		s.engine.ResetAll()
		log.Printf("⏸️ Camera %d streaming stopped", s.CameraID)
		return false

	case cmdSeek:
		if !s.opened {
			return streaming
		}
		if err := s.source.Seek(cmd.positionMS); err != nil {
			log.Printf("⚠️ Seek failed for camera %d: %v", s.CameraID, err)
			return streaming
		}
		// Debounce state refers to the old timeline, discard it
		s.engine.ResetAll()
		log.Printf("⏩ Camera %d seeked to %.0fms", s.CameraID, cmd.positionMS)
		return streaming

	case cmdReloadROIs:
		s.reloadROIs()
		return streaming
	}
	return streaming
}

func (s *Session) closeSource() {
	if s.opened {
		s.source.Close()
		s.opened = false
	}
}

// reloadROIs replaces the zone set from storage and resyncs engine state
func (s *Session) reloadROIs() {
	if s.loadROIs == nil {
		return
	}
	configs, err := s.loadROIs(s.CameraID)
	if err != nil {
		log.Printf("⚠️ Failed to load ROIs for camera %d: %v", s.CameraID, err)
		return
	}

	s.rois.Clear()
	for _, c := range configs {
		if err := s.rois.Upsert(c.ID, c.Points, c.Name, c.Color, c.ZoneType); err != nil {
			log.Printf("⚠️ Skipping invalid ROI %d: %v", c.ID, err)
			continue
		}
		s.engine.SetRequiresExtinguisher(c.ID, c.RequiresExtinguisher)
	}
	s.engine.ResetAll()
	log.Printf("🔄 Camera %d loaded %d ROIs", s.CameraID, len(s.rois.List()))
}

// tick processes exactly one frame through the full pipeline
func (s *Session) tick() error {
	frame, err := s.source.ReadFrame()
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	s.frameNumber++
	positionMS := s.source.PositionMS()

	// Detection failures degrade to a raw frame, they never kill the stream
	var batch *detection.Result
	if s.detector != nil {
		batch, err = s.detector.Detect(frame, s.frameNumber, positionMS/1000)
		if err != nil {
			log.Printf("⚠️ Detection failed for camera %d frame %d: %v", s.CameraID, s.frameNumber, err)
			batch = nil
		}
	}

	activeROIs := s.activeROIIDs()

	var records []alarm.Record
	if batch != nil {
		for _, ev := range s.engine.Evaluate(batch, s.CameraID, activeROIs) {
			records = append(records, s.hub.Process(ev, frame, true, positionMS))
		}
	}

	payload := map[string]interface{}{
		"type":        "frame",
		"camera_id":   s.CameraID,
		"frame":       base64.StdEncoding.EncodeToString(frame),
		"current_ms":  positionMS,
		"total_ms":    s.source.DurationMS(),
		"detection":   batch,
		"events":      records,
		"rois":        s.rois.List(),
		"roi_metrics": s.engine.Metrics(activeROIs),
	}

	msg, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal frame message: %w", err)
	}
	s.broadcast(msg)
	return nil
}

func (s *Session) activeROIIDs() []int {
	infos := s.rois.List()
	ids := make([]int, 0, len(infos))
	for _, info := range infos {
		ids = append(ids, info.ID)
	}
	return ids
}

func (s *Session) metadataMessage() []byte {
	msg, _ := json.Marshal(map[string]interface{}{
		"type":      "stream_info",
		"camera_id": s.CameraID,
		"total_ms":  s.source.DurationMS(),
		"fps":       s.source.FPS(),
		"is_live":   s.source.Live(),
	})
	return msg
}

// broadcast sends a message to every viewer, dropping viewers whose
// send fails. The viewer set is snapshotted so sends happen unlocked.
func (s *Session) broadcast(msg []byte) {
	s.mu.Lock()
	targets := make(map[string]Viewer, len(s.viewers))
	for id, v := range s.viewers {
		targets[id] = v
	}
	s.mu.Unlock()

	var failed []string
	for id, v := range targets {
		if err := v.Send(msg); err != nil {
			failed = append(failed, id)
		}
	}

	if len(failed) > 0 {
		s.mu.Lock()
		for _, id := range failed {
			delete(s.viewers, id)
		}
		s.mu.Unlock()
		log.Printf("🧹 Camera %d dropped %d unresponsive viewers", s.CameraID, len(failed))
	}
}
