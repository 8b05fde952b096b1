package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wingspan/pkg/models"
	"wingspan/pkg/services"
)

const storyNotFound = "Article not found or there was an error fetching data."

func (s *Server) HomePage(c *gin.Context) {
	home, err := s.Home.Get(c.Request.Context())
	if err != nil {
		s.Logger.Error("load home page", zap.Error(err))
	}
	storiesURL := "/stories"
	if l, ok := s.Nav.Link("Stories"); ok {
		storiesURL = l.URL
	}
	c.HTML(http.StatusOK, "index.html", s.page(c, "", gin.H{
		"Home":       home,
		"StoriesURL": storiesURL,
	}))
}

func (s *Server) StoryPage(c *gin.Context) {
	a, err := s.Articles.BySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if !errors.Is(err, services.ErrNotFound) {
			s.Logger.Error("load story", zap.String("slug", c.Param("slug")), zap.Error(err))
		}
		s.storyMissing(c)
		return
	}
	body, err := services.RenderArticle(*a)
	if err != nil {
		s.Logger.Warn("render story", zap.String("slug", a.Slug), zap.Error(err))
		s.storyMissing(c)
		return
	}
	c.HTML(http.StatusOK, "story.html", s.page(c, a.Title, gin.H{
		"Article": a,
		"Body":    body,
	}))
}

func (s *Server) storyMissing(c *gin.Context) {
	c.HTML(http.StatusNotFound, "not_found.html", s.page(c, "Not Found", gin.H{"Message": storyNotFound}))
}

func (s *Server) NotFound(c *gin.Context) {
	c.HTML(http.StatusNotFound, "not_found.html", s.page(c, "Not Found", nil))
}

type editorPage struct {
	Name        string
	Description string
	Allowed     bool
}

func editorPages(p models.Permissions) []editorPage {
	return []editorPage{
		{"Post Article", "Here you can create a new article to be posted on the site.", p.Post},
		{"Edit Article", "Select an article to edit its content and make changes.", p.EditAny || p.EditOwn},
		{"Delete Article", "Select an article to delete it permanently.", p.EditAny || p.EditOwn},
		{"Review Submissions", "Review submitted articles and approve or reject them.", p.ReviewSubmissions},
		{"Edit Front Page", "Edit the layout and content of the front page.", p.EditHomepage},
		{"Add User", "Add a new user to the system with specific roles and permissions.", p.CreateUsers},
		{"Edit User", "Edit user details and modify their roles.", p.EditUsers},
		{"Delete User", "Delete an existing user from the system.", p.DeleteUsers},
	}
}

func (s *Server) EditorPage(c *gin.Context) {
	user := currentUser(c)
	pages := editorPages(user.Permissions)
	selected, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || selected < 0 || selected >= len(pages) {
		selected = 0
	}
	c.HTML(http.StatusOK, "editor.html", s.page(c, "Editor", gin.H{
		"User":     user,
		"Pages":    pages,
		"Selected": selected,
		"Page":     pages[selected],
	}))
}

func (s *Server) Feed(c *gin.Context) {
	articles, err := s.Articles.Latest(c.Request.Context(), services.FeedSize)
	if err != nil {
		s.Logger.Error("load feed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	out, err := services.BuildFeed(s.Nav, s.Config.AppURL, articles)
	if err != nil {
		s.Logger.Error("build feed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", out)
}

func (s *Server) GetTheme(c *gin.Context) {
	c.JSON(http.StatusOK, s.Theme.Get(c.Request.Context()))
}

func (s *Server) UpdateTheme(c *gin.Context) {
	var settings models.SiteSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if err := s.Theme.Save(c.Request.Context(), currentUser(c), settings); err != nil {
		s.respondError(c, err, "Failed to save theme")
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (s *Server) GetNavigation(c *gin.Context) {
	c.JSON(http.StatusOK, s.Nav)
}
