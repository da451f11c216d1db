package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dragonzzuny/cctv-monitoring-system/internal/database"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/models"
)

type ChecklistRequest struct {
	Name  string                 `json:"name" binding:"required"`
	Items []ChecklistItemRequest `json:"items"`
}

type ChecklistItemRequest struct {
	ItemType    string `json:"itemType" binding:"required"`
	Description string `json:"description" binding:"required"`
}

// ListChecklists returns all checklists for a camera with their items
func ListChecklists(c *gin.Context) {
	cameraID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid camera ID"})
		return
	}

	var checklists []models.Checklist
	if err := database.DB.Preload("Items").Where("camera_id = ?", cameraID).Order("id").Find(&checklists).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch checklists"})
		return
	}
	c.JSON(http.StatusOK, checklists)
}

// CreateChecklist adds a checklist with optional items
func CreateChecklist(c *gin.Context) {
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

	var req ChecklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	checklist := models.Checklist{
		CameraID: cameraID,
		Name:     req.Name,
		IsActive: true,
	}
	for _, item := range req.Items {
		checklist.Items = append(checklist.Items, models.ChecklistItem{
			ItemType:    item.ItemType,
			Description: item.Description,
		})
	}

	if err := database.DB.Create(&checklist).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create checklist"})
		return
	}
	c.JSON(http.StatusCreated, checklist)
}

// CheckItem toggles a checklist item's checked state
func CheckItem(c *gin.Context) {
	itemID, err := strconv.Atoi(c.Param("itemId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}

	var item models.ChecklistItem
	if err := database.DB.First(&item, itemID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Checklist item not found"})
		return
	}

	var req struct {
		IsChecked bool `json:"isChecked"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	item.IsChecked = req.IsChecked
	item.AutoChecked = false
	if req.IsChecked {
		now := time.Now().UTC()
		item.CheckedAt = &now
	} else {
		item.CheckedAt = nil
	}

	if err := database.DB.Save(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update checklist item"})
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteChecklist removes a checklist and its items
func DeleteChecklist(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("checklistId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid checklist ID"})
		return
	}

	if err := database.DB.Delete(&models.Checklist{}, id).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete checklist"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Checklist deleted"})
}
