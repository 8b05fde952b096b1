package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wingspan/pkg/services"
)

// ListUsers is open to every editor; the article form picks authors from it.
func (s *Server) ListUsers(c *gin.Context) {
	users, err := s.Users.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err, "Failed to fetch users")
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) CreateUser(c *gin.Context) {
	var in services.UserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	u, err := s.Users.Create(c.Request.Context(), currentUser(c), in)
	if err != nil {
		s.respondError(c, err, "There was an error adding the user. Please try again.")
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (s *Server) UpdateUser(c *gin.Context) {
	var in services.UserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	in.ID = c.Param("id")
	u, err := s.Users.Update(c.Request.Context(), currentUser(c), in)
	if err != nil {
		s.respondError(c, err, "There was an error updating the user. Please try again.")
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) DeleteUser(c *gin.Context) {
	if err := s.Users.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		s.respondError(c, err, "There was an error deleting the user. Please try again.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
