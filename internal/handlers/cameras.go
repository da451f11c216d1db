package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dragonzzuny/cctv-monitoring-system/internal/database"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/models"
)

type CameraRequest struct {
	Name       string            `json:"name" binding:"required"`
	Source     string            `json:"source" binding:"required"`
	SourceType models.SourceType `json:"sourceType"`
	IsActive   *bool             `json:"isActive"`
}

// ListCameras returns all configured cameras
func ListCameras(c *gin.Context) {
	var cameras []models.Camera
	if err := database.DB.Order("id").Find(&cameras).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cameras"})
		return
	}
	c.JSON(http.StatusOK, cameras)
}

// GetCamera returns one camera with its ROIs
func GetCamera(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid camera ID"})
		return
	}

	var camera models.Camera
	if err := database.DB.Preload("ROIs").First(&camera, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Camera not found"})
		return
	}
	c.JSON(http.StatusOK, camera)
}

// CreateCamera registers a new camera
func CreateCamera(c *gin.Context) {
	var req CameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	sourceType := req.SourceType
	if sourceType == "" {
		sourceType = models.SourceTypeFile
	}

	camera := models.Camera{
		Name:       req.Name,
		Source:     req.Source,
		SourceType: sourceType,
		IsActive:   true,
	}
	if req.IsActive != nil {
		camera.IsActive = *req.IsActive
	}

	if err := database.DB.Create(&camera).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create camera"})
		return
	}
	c.JSON(http.StatusCreated, camera)
}

// UpdateCamera modifies an existing camera
func UpdateCamera(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid camera ID"})
		return
	}

	var camera models.Camera
	if err := database.DB.First(&camera, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Camera not found"})
		return
	}

	var req CameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	camera.Name = req.Name
	camera.Source = req.Source
	if req.SourceType != "" {
		camera.SourceType = req.SourceType
	}
	if req.IsActive != nil {
		camera.IsActive = *req.IsActive
	}

	if err := database.DB.Save(&camera).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update camera"})
		return
	}
	c.JSON(http.StatusOK, camera)
}

// DeleteCamera removes a camera and its dependent rows
func DeleteCamera(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid camera ID"})
		return
	}

	if err := database.DB.Delete(&models.Camera{}, id).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete camera"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Camera deleted"})
}
