package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dragonzzuny/cctv-monitoring-system/internal/database"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/models"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/roi"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/stream"
)

type ROIRequest struct {
	Name                 string          `json:"name" binding:"required"`
	Points               []roi.Point     `json:"points" binding:"required"`
	Color                string          `json:"color"`
	ZoneType             models.ZoneType `json:"zoneType"`
	RequiresExtinguisher *bool           `json:"requiresExtinguisher"`
	IsActive             *bool           `json:"isActive"`
}

// LoadROIConfigs fetches the active zones for a camera; camera sessions
// use this to (re)build their geometry stores.
func LoadROIConfigs(cameraID int) ([]stream.ROIConfig, error) {
	var rois []models.ROI
	if err := database.DB.Where("camera_id = ? AND is_active = ?", cameraID, true).Order("id").Find(&rois).Error; err != nil {
		return nil, err
	}

	configs := make([]stream.ROIConfig, 0, len(rois))
	for _, r := range rois {
		points, err := decodePoints(r.Points)
		if err != nil {
			continue
		}
		configs = append(configs, stream.ROIConfig{
			ID:                   r.ID,
			Name:                 r.Name,
			Color:                r.Color,
			ZoneType:             string(r.ZoneType),
			Points:               points,
			RequiresExtinguisher: r.RequiresExtinguisher,
		})
	}
	return configs, nil
}

func decodePoints(data models.JSONB) ([]roi.Point, error) {
	raw, err := json.Marshal(data.Data)
	if err != nil {
		return nil, err
	}
	var points []roi.Point
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil, err
	}
	return points, nil
}

// ListROIs returns all zones for a camera
func ListROIs(c *gin.Context) {
	cameraID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid camera ID"})
		return
	}

	var rois []models.ROI
	if err := database.DB.Where("camera_id = ?", cameraID).Order("id").Find(&rois).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch ROIs"})
		return
	}
	c.JSON(http.StatusOK, rois)
}

// CreateROI adds a zone to a camera and pushes it into the live pipeline
func CreateROI(c *gin.Context) {
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

	var req ROIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if len(req.Points) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ROI must have at least 3 points"})
		return
	}

	zoneType := req.ZoneType
	if zoneType == "" {
		zoneType = models.ZoneTypeWarning
	}
	color := req.Color
	if color == "" {
		color = "#FF0000"
	}

	r := models.ROI{
		CameraID: cameraID,
		Name:     req.Name,
		Points:   models.NewJSONB(req.Points),
		Color:    color,
		ZoneType: zoneType,
		IsActive: true,
	}
	if req.RequiresExtinguisher != nil {
		r.RequiresExtinguisher = *req.RequiresExtinguisher
	}
	if req.IsActive != nil {
		r.IsActive = *req.IsActive
	}

	if err := database.DB.Create(&r).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create ROI"})
		return
	}

	streamHub.ReloadROIs(cameraID)
	c.JSON(http.StatusCreated, r)
}

// UpdateROI modifies a zone and pushes the change into the live pipeline
func UpdateROI(c *gin.Context) {
	roiID, err := strconv.Atoi(c.Param("roiId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ROI ID"})
		return
	}

	var r models.ROI
	if err := database.DB.First(&r, roiID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ROI not found"})
		return
	}

	var req ROIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if len(req.Points) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ROI must have at least 3 points"})
		return
	}

	r.Name = req.Name
	r.Points = models.NewJSONB(req.Points)
	if req.Color != "" {
		r.Color = req.Color
	}
	if req.ZoneType != "" {
		r.ZoneType = req.ZoneType
	}
	if req.RequiresExtinguisher != nil {
		r.RequiresExtinguisher = *req.RequiresExtinguisher
	}
	if req.IsActive != nil {
		r.IsActive = *req.IsActive
	}

	if err := database.DB.Save(&r).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update ROI"})
		return
	}

	streamHub.ReloadROIs(r.CameraID)
	c.JSON(http.StatusOK, r)
}

// DeleteROI removes a zone and pushes the change into the live pipeline
func DeleteROI(c *gin.Context) {
	roiID, err := strconv.Atoi(c.Param("roiId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ROI ID"})
		return
	}

	var r models.ROI
	if err := database.DB.First(&r, roiID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ROI not found"})
		return
	}

	if err := database.DB.Delete(&r).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete ROI"})
		return
	}

	streamHub.ReloadROIs(r.CameraID)
	c.JSON(http.StatusOK, gin.H{"message": "ROI deleted"})
}
