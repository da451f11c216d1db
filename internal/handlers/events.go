package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dragonzzuny/cctv-monitoring-system/internal/alarm"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/database"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/models"
)

// ListEvents returns persisted events, newest first, with optional
// camera_id, severity and acknowledged filters.
func ListEvents(c *gin.Context) {
	query := database.DB.Model(&models.Event{})

	if v := c.Query("camera_id"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			query = query.Where("camera_id = ?", id)
		}
	}
	if v := c.Query("severity"); v != "" {
		query = query.Where("severity = ?", v)
	}
	if v := c.Query("acknowledged"); v != "" {
		if acked, err := strconv.ParseBool(v); err == nil {
			query = query.Where("is_acknowledged = ?", acked)
		}
	}

	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	var events []models.Event
	if err := query.Order("created_at DESC").Limit(limit).Find(&events).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch events"})
		return
	}
	c.JSON(http.StatusOK, events)
}

// ListUnacknowledged returns the live unacknowledged alarm set
func ListUnacknowledged(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"count":  alarmHub.UnacknowledgedCount(),
		"events": alarmHub.Unacknowledged(),
	})
}

// AcknowledgeEvent marks an alarm acknowledged in the hub and in storage
func AcknowledgeEvent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return
	}

	acked := alarmHub.Acknowledge(id)
	if err := alarm.AcknowledgeEvent(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to acknowledge event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"acknowledged": acked,
		"id":           id,
	})
}
