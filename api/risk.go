package api

import (
	"errors"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/changes_backend/models"
	"bitbucket.org/mmdatafocus/changes_backend/risk"
	"bitbucket.org/mmdatafocus/changes_backend/utils"
	"github.com/gin-gonic/gin"
)

type riskPreviewRequest struct {
	Impact     int `json:"impact" binding:"required"`
	Likelihood int `json:"likelihood" binding:"required"`
	Exposure   int `json:"exposure" binding:"required"`
}

// RiskPreviewHandler scores a what-if matrix without touching any change
// request. Used by clients to show the band as the assessor drags sliders.
func RiskPreviewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req riskPreviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		score, band, err := risk.Score(req.Impact, req.Likelihood, req.Exposure)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"raw_score": score,
			"band":      band,
		})
	}
}

func ReplaceRiskAssessmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		var input models.NewRiskAssessment
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		assessment, err := models.ReplaceRiskAssessment(c.Request.Context(), id, &input)
		if err != nil {
			if errors.Is(err, risk.ErrInvalidInput) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, assessment)
	}
}

func GetRiskAssessmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		assessment, err := models.GetRiskAssessment(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, assessment)
	}
}
