package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wingspan/pkg/models"
	"wingspan/pkg/services"
)

func canUpload(u *models.User) bool {
	return u.Permissions.Post || u.Permissions.EditAny || u.Permissions.EditOwn
}

func (s *Server) ListMedia(c *gin.Context) {
	files, err := s.Media.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err, "Failed to list media")
		return
	}
	if files == nil {
		files = []services.MediaFile{}
	}
	c.JSON(http.StatusOK, files)
}

func (s *Server) UploadMedia(c *gin.Context) {
	if !canUpload(currentUser(c)) {
		s.respondError(c, services.ErrForbidden, "")
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	info, err := services.SaveUpload(c.Request.Context(), s.Media, file)
	if err != nil {
		s.respondError(c, err, "Failed to save file")
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) DeleteMedia(c *gin.Context) {
	if !canUpload(currentUser(c)) {
		s.respondError(c, services.ErrForbidden, "")
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	if err := s.Media.Delete(c.Request.Context(), req.Name); err != nil {
		s.respondError(c, err, "Failed to delete file")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
