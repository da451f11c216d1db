package alarm

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dragonzzuny/cctv-monitoring-system/internal/rules"
)

// FileSnapshotSaver writes event snapshots under a local directory,
// partitioned by date. The returned path is the public URL path the
// static file server exposes.
type FileSnapshotSaver struct {
	Dir string
}

// NewFileSnapshotSaver creates a saver rooted at dir
func NewFileSnapshotSaver(dir string) *FileSnapshotSaver {
	return &FileSnapshotSaver{Dir: dir}
}

// Save writes the JPEG frame to <dir>/<yyyymmdd>/event_<id>_<type>_<hhmmss>.jpg
func (s *FileSnapshotSaver) Save(eventID int64, ev rules.Event, frame []byte) (string, error) {
	now := time.Now()
	dateDir := now.Format("20060102")
	dir := filepath.Join(s.Dir, dateDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("event_%d_%s_%s.jpg", eventID, ev.Type, now.Format("150405"))
	if err := os.WriteFile(filepath.Join(dir, name), frame, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return "/snapshots/" + dateDir + "/" + name, nil
}
