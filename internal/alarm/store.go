package alarm

import (
	"time"

	"github.com/dragonzzuny/cctv-monitoring-system/internal/database"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/models"
)

// DBRecordStore persists alarm records as Event rows.
type DBRecordStore struct{}

// Save inserts the record into the events table and rebinds the record's
// identity to the durable row id, so acknowledgments address the same row
// across restarts.
func (DBRecordStore) Save(rec *Record) error {
	event := models.Event{
		CameraID:      rec.CameraID,
		ROIID:         rec.ROIID,
		EventType:     rec.EventType,
		Severity:      models.Severity(rec.Severity),
		Message:       rec.Message,
		SnapshotPath:  rec.SnapshotPath,
		DetectionData: models.NewJSONB(rec.Detail),
		PositionMS:    rec.PositionMS,
		CreatedAt:     rec.CreatedAt,
	}
	if err := database.DB.Create(&event).Error; err != nil {
		return err
	}
	rec.ID = event.ID
	return nil
}

// AcknowledgeEvent marks a persisted event acknowledged. Without a
// database connection the in-memory hub state is authoritative and there
// is nothing to update.
func AcknowledgeEvent(id int64) error {
	if database.DB == nil {
		return nil
	}
	now := time.Now().UTC()
	return database.DB.Model(&models.Event{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_acknowledged": true,
			"acknowledged_at": now,
		}).Error
}
