package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wingspan/pkg/models"
	"wingspan/pkg/services"
	"wingspan/pkg/store"
)

// respondError maps service errors to a status. Form errors carry the message
// the editor shows inline; anything else is logged and answered with fallback.
func (s *Server) respondError(c *gin.Context, err error, fallback string) {
	var fe *services.FormError
	switch {
	case errors.As(err, &fe):
		status := http.StatusBadRequest
		switch fe {
		case services.ErrSlugTaken, services.ErrEmailTaken, services.ErrUserHasArticles, services.ErrPlacementConflict:
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": fe.Message, "errors": []string{fe.Message}})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		s.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// articleRequest is the article form. Placement may be given as a name
// ("primary", "secondary-2", "regular") or through the stored flags.
type articleRequest struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Slug        string          `json:"slug"`
	AuthorID    string          `json:"author_id"`
	Content     json.RawMessage `json:"content"`
	Excerpt     string          `json:"excerpt"`
	MainImage   string          `json:"main_image"`
	Type        string          `json:"type"`
	PublishedAt *time.Time      `json:"published_at"`
	Placement   string          `json:"placement"`
	ReassignTo  string          `json:"reassign_to"`

	IsPrimary           bool `json:"is_primary"`
	IsSecondaryPrimary1 bool `json:"is_secondary_primary_1"`
	IsSecondaryPrimary2 bool `json:"is_secondary_primary_2"`
	IsSecondaryPrimary3 bool `json:"is_secondary_primary_3"`
	IsSecondaryPrimary4 bool `json:"is_secondary_primary_4"`
}

func (r articleRequest) toInput(actor *models.User) (services.SaveInput, error) {
	a := models.Article{
		ID:                  r.ID,
		Title:               r.Title,
		Slug:                r.Slug,
		AuthorID:            r.AuthorID,
		Content:             r.Content,
		Excerpt:             r.Excerpt,
		MainImage:           r.MainImage,
		Type:                models.ArticleType(strings.ToLower(strings.TrimSpace(r.Type))),
		IsPrimary:           r.IsPrimary,
		IsSecondaryPrimary1: r.IsSecondaryPrimary1,
		IsSecondaryPrimary2: r.IsSecondaryPrimary2,
		IsSecondaryPrimary3: r.IsSecondaryPrimary3,
		IsSecondaryPrimary4: r.IsSecondaryPrimary4,
	}
	if r.PublishedAt != nil {
		a.PublishedAt = *r.PublishedAt
	}

	placement := a.Placement()
	if r.Placement != "" {
		p, err := models.ParsePlacement(r.Placement)
		if err != nil {
			return services.SaveInput{}, services.ErrInvalidSlot
		}
		placement = p
	}
	in := services.SaveInput{Article: a, Placement: placement, Actor: actor}
	if r.ReassignTo != "" {
		p, err := models.ParsePlacement(r.ReassignTo)
		if err != nil {
			return services.SaveInput{}, services.ErrInvalidSlot
		}
		in.ReassignTarget = &p
	}
	return in, nil
}

func (s *Server) bindArticle(c *gin.Context) (services.SaveInput, bool) {
	var req articleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return services.SaveInput{}, false
	}
	if id := c.Param("id"); id != "" {
		req.ID = id
	}
	in, err := req.toInput(currentUser(c))
	if err != nil {
		s.respondError(c, err, services.MsgSaveFailed)
		return services.SaveInput{}, false
	}
	return in, true
}

func (s *Server) ListArticles(c *gin.Context) {
	f := store.ArticleFilter{
		AuthorID: c.Query("author"),
		Type:     models.ArticleType(c.Query("type")),
		Search:   c.Query("q"),
	}
	if c.Query("mine") == "1" {
		f.AuthorID = currentUser(c).ID
	}
	if v, err := strconv.ParseUint(c.Query("limit"), 10, 64); err == nil {
		f.Limit = v
	}
	if v, err := strconv.ParseUint(c.Query("offset"), 10, 64); err == nil {
		f.Offset = v
	}

	articles, err := s.Articles.List(c.Request.Context(), f)
	if err != nil {
		s.respondError(c, err, "Failed to fetch articles")
		return
	}
	out := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		a.Content = nil
		out = append(out, a)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) GetArticle(c *gin.Context) {
	a, err := s.Articles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err, "Failed to fetch article")
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) CreateArticle(c *gin.Context) {
	in, ok := s.bindArticle(c)
	if !ok {
		return
	}
	in.Article.ID = ""
	res, err := s.Articles.Save(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err, services.MsgSaveFailed)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) UpdateArticle(c *gin.Context) {
	in, ok := s.bindArticle(c)
	if !ok {
		return
	}
	res, err := s.Articles.Save(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err, services.MsgSaveFailed)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) PreviewArticle(c *gin.Context) {
	in, ok := s.bindArticle(c)
	if !ok {
		return
	}
	res, err := s.Articles.Preview(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err, services.MsgSaveFailed)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) DeleteArticle(c *gin.Context) {
	if err := s.Articles.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		s.respondError(c, err, "There was an error deleting the article. Please try again.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// CheckSlug answers whether a slug is free. Without a slug it suggests one
// from the title.
func (s *Server) CheckSlug(c *gin.Context) {
	slug := strings.TrimSpace(c.Query("slug"))
	if slug == "" {
		slug = services.Slugify(c.Query("title"))
	}
	if slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slug or title is required"})
		return
	}
	ok, err := s.Articles.SlugAvailable(c.Request.Context(), slug, c.Query("id"))
	if err != nil {
		s.respondError(c, err, "Failed to check slug")
		return
	}
	resp := gin.H{"slug": slug, "available": ok}
	if !ok {
		resp["error"] = services.ErrSlugTaken.Message
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) ExportArticle(c *gin.Context) {
	ctx := c.Request.Context()
	a, err := s.Articles.Get(ctx, c.Param("id"))
	if err != nil {
		s.respondError(c, err, "Failed to fetch article")
		return
	}
	format := c.DefaultQuery("format", services.FormatYAML)
	var authorEmail string
	if u, err := s.Users.Get(ctx, a.AuthorID); err == nil {
		authorEmail = u.Email
	}
	out, err := services.ExportArticle(*a, authorEmail, format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filename, contentType := a.Slug+".md", "text/markdown; charset=utf-8"
	if format == services.FormatJSON {
		filename, contentType = a.Slug+".json", "application/json"
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, out)
}
