package handlers

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"wingspan/pkg/config"
	"wingspan/pkg/logging"
	"wingspan/pkg/services"
)

//go:embed templates/*.html
var templatesFS embed.FS

const sessionName = "wingspan_session"

// Server carries everything the handlers need.
type Server struct {
	Config   config.Config
	Nav      config.Navigation
	Articles *services.ArticleService
	Users    *services.UserService
	Theme    *services.ThemeService
	Home     *services.HomeCache
	Media    services.MediaStore
	Logger   *zap.Logger

	// OAuth is nil when GitHub login is not configured.
	OAuth *oauth2.Config
	// GitHubAPI is the base URL used to read the signed-in user's e-mails.
	GitHubAPI string
}

func loadTemplates() (*template.Template, error) {
	return template.ParseFS(templatesFS, "templates/*.html")
}

// NewRouter builds the gin engine with every route of the site.
func NewRouter(s *Server) (*gin.Engine, error) {
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	if s.GitHubAPI == "" {
		s.GitHubAPI = "https://api.github.com"
	}
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(logging.Gin(s.Logger), gin.Recovery())

	// Session Setup
	store := cookie.NewStore([]byte(s.Config.SessionSecret))
	store.Options(sessions.Options{Path: "/", MaxAge: 7 * 24 * 3600, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))

	r.SetHTMLTemplate(tmpl)
	if local, ok := s.Media.(services.LocalMedia); ok {
		r.Static(local.URLPrefix, local.Dir)
	}

	// --- Public Site ---
	r.GET("/", s.HomePage)
	r.GET("/stories/:slug", s.StoryPage)
	r.GET("/feed.xml", s.Feed)
	r.GET("/api/theme", s.GetTheme)
	r.GET("/api/navigation", s.GetNavigation)
	r.NoRoute(s.NotFound)

	// --- Auth Routes ---
	r.GET("/login", s.LoginPage)
	r.POST("/login", s.Login)
	r.GET("/login/github", s.GithubLogin)
	r.GET("/auth/callback", s.AuthCallback)
	r.GET("/logout", s.Logout)

	// --- Editor (Authorized) ---
	authorized := r.Group("/")
	authorized.Use(s.AuthRequired)
	{
		authorized.GET("/editor", s.EditorPage)

		api := authorized.Group("/api")
		{
			api.GET("/session", s.GetSession)

			api.GET("/articles", s.ListArticles)
			api.POST("/articles", s.CreateArticle)
			api.POST("/articles/preview", s.PreviewArticle)
			api.GET("/articles/:id", s.GetArticle)
			api.PUT("/articles/:id", s.UpdateArticle)
			api.DELETE("/articles/:id", s.DeleteArticle)
			api.GET("/articles/:id/export", s.ExportArticle)
			api.GET("/slug", s.CheckSlug)

			api.GET("/users", s.ListUsers)
			api.POST("/users", s.CreateUser)
			api.PUT("/users/:id", s.UpdateUser)
			api.DELETE("/users/:id", s.DeleteUser)

			api.PUT("/theme", s.UpdateTheme)

			api.GET("/media", s.ListMedia)
			api.POST("/media", s.UploadMedia)
			api.DELETE("/media", s.DeleteMedia)
		}
	}
	return r, nil
}

// page is the data every HTML template receives.
func (s *Server) page(c *gin.Context, title string, extra gin.H) gin.H {
	data := gin.H{
		"Title":      title,
		"Nav":        s.Nav,
		"ThemeClass": s.Theme.Get(c.Request.Context()).ThemeClass(),
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}
