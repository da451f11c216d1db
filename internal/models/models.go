// Package models defines the GORM database models.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// SourceType enum for camera sources
type SourceType string

const (
	SourceTypeFile SourceType = "file"
	SourceTypeRTSP SourceType = "rtsp"
)

// ZoneType enum for ROI zones
type ZoneType string

const (
	ZoneTypeWarning ZoneType = "warning"
	ZoneTypeDanger  ZoneType = "danger"
)

// Severity enum for events
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// JSONB type for GORM - can handle both objects and arrays
type JSONB struct {
	Data interface{} `json:"-"`
}

// NewJSONB creates a new JSONB from any value
func NewJSONB(v interface{}) JSONB {
	return JSONB{Data: v}
}

// UnmarshalJSON implements json.Unmarshaler
func (j *JSONB) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &j.Data)
}

// MarshalJSON implements json.Marshaler
func (j JSONB) MarshalJSON() ([]byte, error) {
	if j.Data == nil {
		return []byte("null"), nil
	}
	return json.Marshal(j.Data)
}

func (j JSONB) Value() (driver.Value, error) {
	if j.Data == nil {
		return nil, nil
	}
	return json.Marshal(j.Data)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		j.Data = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, &j.Data)
}

// Camera model - video source configuration
type Camera struct {
	ID         int        `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Name       string     `gorm:"column:name;not null" json:"name"`
	Source     string     `gorm:"column:source;not null" json:"source"` // File path or RTSP URL
	SourceType SourceType `gorm:"column:source_type;default:file" json:"sourceType"`
	IsActive   bool       `gorm:"column:is_active;default:true" json:"isActive"`

	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`

	ROIs       []ROI       `gorm:"foreignKey:CameraID;constraint:OnDelete:CASCADE" json:"rois,omitempty"`
	Events     []Event     `gorm:"foreignKey:CameraID;constraint:OnDelete:CASCADE" json:"events,omitempty"`
	Checklists []Checklist `gorm:"foreignKey:CameraID;constraint:OnDelete:CASCADE" json:"checklists,omitempty"`
}

func (Camera) TableName() string {
	return "cameras"
}

// ROI model - detection zone polygon for a camera
type ROI struct {
	ID       int      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	CameraID int      `gorm:"column:camera_id;index;not null" json:"cameraId"`
	Camera   *Camera  `gorm:"foreignKey:CameraID" json:"camera,omitempty"`
	Name     string   `gorm:"column:name;not null" json:"name"`
	Points   JSONB    `gorm:"type:jsonb;column:points;not null" json:"points"` // Array of {x, y}
	Color    string   `gorm:"column:color;default:#FF0000" json:"color"`
	ZoneType ZoneType `gorm:"column:zone_type;default:warning" json:"zoneType"`
	IsActive bool     `gorm:"column:is_active;default:true" json:"isActive"`

	// Equipment-presence rule opt-in
	RequiresExtinguisher bool `gorm:"column:requires_extinguisher;default:false" json:"requiresExtinguisher"`

	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (ROI) TableName() string {
	return "rois"
}

// Event model - safety events/alarms
type Event struct {
	ID             int64      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	CameraID       int        `gorm:"column:camera_id;index:ix_events_camera_created;not null" json:"cameraId"`
	Camera         *Camera    `gorm:"foreignKey:CameraID" json:"camera,omitempty"`
	EventType      string     `gorm:"column:event_type;not null" json:"eventType"`
	Severity       Severity   `gorm:"column:severity;index;not null" json:"severity"`
	Message        string     `gorm:"column:message;not null" json:"message"`
	SnapshotPath   *string    `gorm:"column:snapshot_path" json:"snapshotPath,omitempty"`
	ROIID          *int       `gorm:"column:roi_id" json:"roiId,omitempty"`
	DetectionData  JSONB      `gorm:"type:jsonb;column:detection_data" json:"detectionData,omitempty"`
	PositionMS     float64    `gorm:"column:position_ms;default:0" json:"positionMs"`
	IsAcknowledged bool       `gorm:"column:is_acknowledged;default:false;index" json:"isAcknowledged"`
	AcknowledgedAt *time.Time `gorm:"column:acknowledged_at" json:"acknowledgedAt,omitempty"`
	CreatedAt      time.Time  `gorm:"column:created_at;index:ix_events_camera_created;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

func (Event) TableName() string {
	return "events"
}

// Checklist model - safety checklist for camera monitoring
type Checklist struct {
	ID       int     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	CameraID int     `gorm:"column:camera_id;index;not null" json:"cameraId"`
	Camera   *Camera `gorm:"foreignKey:CameraID" json:"camera,omitempty"`
	Name     string  `gorm:"column:name;not null" json:"name"`
	IsActive bool    `gorm:"column:is_active;default:true" json:"isActive"`

	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`

	Items []ChecklistItem `gorm:"foreignKey:ChecklistID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (Checklist) TableName() string {
	return "checklists"
}

// ChecklistItem model - individual checklist items
type ChecklistItem struct {
	ID          int        `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	ChecklistID int        `gorm:"column:checklist_id;index;not null" json:"checklistId"`
	ItemType    string     `gorm:"column:item_type;not null" json:"itemType"` // PPE_HELMET, PPE_MASK, FIRE_EXTINGUISHER
	Description string     `gorm:"column:description;not null" json:"description"`
	IsChecked   bool       `gorm:"column:is_checked;default:false" json:"isChecked"`
	AutoChecked bool       `gorm:"column:auto_checked;default:false" json:"autoChecked"`
	CheckedAt   *time.Time `gorm:"column:checked_at" json:"checkedAt,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

func (ChecklistItem) TableName() string {
	return "checklist_items"
}

// SafetyRegulation model - reference text of an industrial safety rule,
// grouped by category for the console's regulation browser
type SafetyRegulation struct {
	ID        int       `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Category  string    `gorm:"column:category;size:100;index;not null" json:"category"`
	Title     string    `gorm:"column:title;size:200;not null" json:"title"`
	Content   string    `gorm:"column:content;type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

func (SafetyRegulation) TableName() string {
	return "safety_regulations"
}

// User model - operator account for the monitoring console
type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Username     string    `gorm:"column:username;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"column:password_hash;not null" json:"-"`
	Role         string    `gorm:"column:role;default:user" json:"role"`
	CreatedAt    time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}
