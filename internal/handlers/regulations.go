package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dragonzzuny/cctv-monitoring-system/internal/database"
	"github.com/dragonzzuny/cctv-monitoring-system/internal/models"
)

// ListRegulations returns all safety regulation texts
func ListRegulations(c *gin.Context) {
	var regulations []models.SafetyRegulation
	if err := database.DB.Order("category, id").Find(&regulations).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch regulations"})
		return
	}
	c.JSON(http.StatusOK, regulations)
}

// ListRegulationsByCategory returns the regulation texts of one category
func ListRegulationsByCategory(c *gin.Context) {
	var regulations []models.SafetyRegulation
	err := database.DB.
		Where("category = ?", c.Param("category")).
		Order("id").
		Find(&regulations).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch regulations"})
		return
	}
	c.JSON(http.StatusOK, regulations)
}
