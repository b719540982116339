package api

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/changes_backend/models"
	"github.com/gin-gonic/gin"
)

func ListNotificationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		unreadOnly := c.Query("unread") == "true"

		notifications, err := models.ListNotifications(c.Request.Context(), unreadOnly)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": notifications})
	}
}

func MarkNotificationReadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		notification, err := models.MarkNotificationRead(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, notification)
	}
}
