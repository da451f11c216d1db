package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dragonzzuny/cctv-monitoring-system/internal/database"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/models"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/video"
)

// GetStreamInfo returns playback metadata for a camera without starting
// a pipeline. File sources are probed; live sources report no duration.
func GetStreamInfo(c *gin.Context) {
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

	info := gin.H{
		"camera_id": camera.ID,
		"name":      camera.Name,
		"is_live":   camera.SourceType == models.SourceTypeRTSP,
		"total_ms":  0,
	}

	if camera.SourceType == models.SourceTypeFile {
		meta, err := video.Probe(camera.Source)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to probe video file"})
			return
		}
		info["total_ms"] = meta.DurationMS
		info["fps"] = meta.FPS
		info["total_frames"] = meta.TotalFrames
		info["width"] = meta.Width
		info["height"] = meta.Height
	}

	c.JSON(http.StatusOK, info)
}

// GetSnapshot captures one frame from the camera's source and returns it
// as a JPEG, without touching any running pipeline.
func GetSnapshot(c *gin.Context) {
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

	src := video.NewSource(camera.Source, string(camera.SourceType), 0, 0)
	if err := src.Open(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open video source"})
		return
	}
	defer src.Close()

	frame, err := src.ReadFrame()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to capture snapshot"})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", frame)
}

// GetStats reports live hub and session state
func GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, streamHub.Stats())
}
