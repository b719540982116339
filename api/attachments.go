package api

import (
	"bytes"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/changes_backend/config"
	"bitbucket.org/mmdatafocus/changes_backend/models"
	"bitbucket.org/mmdatafocus/changes_backend/utils"
	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
)

const maxAttachmentSizeBytes int64 = 10 * 1024 * 1024

// UploadAttachmentHandler accepts a multipart file, stores it in cloud
// storage under the change's folder, and records its metadata. Images also
// get a 200px thumbnail.
func UploadAttachmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fileHeader.Size > maxAttachmentSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 10MB limit"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxAttachmentSizeBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
			return
		}
		if int64(len(data)) > maxAttachmentSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 10MB limit"})
			return
		}

		objectName := path.Join("changes", strconv.Itoa(id), utils.GenerateUniqueFilename(fileHeader.Filename))

		mimeType, err := utils.UploadFileToGCS(c.Request.Context(), objectName, bytes.NewReader(data))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		thumbnailObject := ""
		if strings.HasPrefix(mimeType, "image/") {
			if key, err := createThumbnail(c, objectName, data); err == nil {
				thumbnailObject = key
			} else {
				config.LogError(config.GetLogger(), "attachments.go", "UploadAttachmentHandler", "createThumbnail", objectName, err)
			}
		}

		attachment, err := models.CreateAttachment(c.Request.Context(), &models.NewAttachment{
			ChangeRequestId: id,
			FileName:        fileHeader.Filename,
			ObjectName:      objectName,
			ContentType:     mimeType,
			SizeBytes:       int64(len(data)),
			ThumbnailObject: thumbnailObject,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"attachment": attachment,
			"url":        utils.ObjectPublicURL(objectName),
		})
	}
}

func createThumbnail(c *gin.Context, objectName string, data []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	thumbnail := imaging.Resize(img, 200, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
		return "", err
	}

	dir := path.Dir(objectName)
	thumbnailKey := path.Join(dir, "thumbnails", path.Base(objectName))
	if err := utils.UploadBytesToGCS(c.Request.Context(), thumbnailKey, buf.Bytes(), "image/jpeg"); err != nil {
		return "", err
	}
	return thumbnailKey, nil
}

func ListAttachmentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		attachments, err := models.GetAttachments(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": attachments})
	}
}

func DeleteAttachmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		attachmentId, err := strconv.Atoi(c.Param("attachmentId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		attachment, err := models.DeleteAttachment(c.Request.Context(), attachmentId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, attachment)
	}
}
