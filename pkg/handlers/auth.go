package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wingspan/pkg/models"
	"wingspan/pkg/services"
)

const (
	sessionUserKey  = "user_id"
	sessionStateKey = "oauth_state"
	contextUserKey  = "user"
)

// AuthRequired loads the signed-in user. HTML requests without a session are
// sent to the login page; API requests get 401.
func (s *Server) AuthRequired(c *gin.Context) {
	session := sessions.Default(c)
	id, _ := session.Get(sessionUserKey).(string)
	var user *models.User
	if id != "" {
		u, err := s.Users.Get(c.Request.Context(), id)
		if err != nil && !errors.Is(err, services.ErrNotFound) {
			s.Logger.Error("load session user", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load session"})
			return
		}
		user = u
	}
	if user == nil {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		} else {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
		}
		return
	}
	c.Set(contextUserKey, user)
	c.Next()
}

func currentUser(c *gin.Context) *models.User {
	u, _ := c.Get(contextUserKey)
	user, _ := u.(*models.User)
	return user
}

func (s *Server) GetSession(c *gin.Context) {
	u := currentUser(c)
	c.JSON(http.StatusOK, gin.H{"user": u, "permissions": u.Permissions.Names()})
}

func (s *Server) loginPage(c *gin.Context, status int, errMsg, email string) {
	c.HTML(status, "login.html", s.page(c, "Login", gin.H{
		"Error":         errMsg,
		"Email":         email,
		"GitHubEnabled": s.OAuth != nil,
	}))
}

func (s *Server) LoginPage(c *gin.Context) {
	s.loginPage(c, http.StatusOK, "", "")
}

func (s *Server) Login(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")

	user, err := s.Users.Authenticate(c.Request.Context(), email, password)
	if err != nil {
		if !errors.Is(err, services.ErrInvalidCredential) {
			s.Logger.Error("login failed", zap.Error(err))
		}
		s.loginPage(c, http.StatusUnauthorized, "Invalid email or password.", email)
		return
	}
	if err := s.startSession(c, user); err != nil {
		s.loginPage(c, http.StatusInternalServerError, "Could not start a session. Please try again.", email)
		return
	}
	c.Redirect(http.StatusFound, "/editor")
}

func (s *Server) startSession(c *gin.Context, user *models.User) error {
	session := sessions.Default(c)
	session.Clear()
	session.Set(sessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		s.Logger.Error("save session", zap.Error(err))
		return err
	}
	s.Logger.Info("editor signed in", zap.String("user_id", user.ID))
	return nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (s *Server) GithubLogin(c *gin.Context) {
	if s.OAuth == nil {
		c.Redirect(http.StatusFound, "/login")
		return
	}
	state, err := randomState()
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to start login")
		return
	}
	session := sessions.Default(c)
	session.Set(sessionStateKey, state)
	if err := session.Save(); err != nil {
		c.String(http.StatusInternalServerError, "Failed to start login")
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, s.OAuth.AuthCodeURL(state))
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (s *Server) AuthCallback(c *gin.Context) {
	if s.OAuth == nil {
		c.Redirect(http.StatusFound, "/login")
		return
	}
	session := sessions.Default(c)
	want, _ := session.Get(sessionStateKey).(string)
	session.Delete(sessionStateKey)
	if want == "" || c.Query("state") != want {
		_ = session.Save()
		s.loginPage(c, http.StatusBadRequest, "Login expired. Please try again.", "")
		return
	}

	ctx := c.Request.Context()
	token, err := s.OAuth.Exchange(ctx, c.Query("code"))
	if err != nil {
		s.Logger.Warn("oauth exchange failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "OAuth Exchange Failed")
		return
	}

	emails, err := s.githubEmails(c, s.OAuth.Client(ctx, token))
	if err != nil {
		s.Logger.Warn("read github emails", zap.Error(err))
		c.String(http.StatusBadGateway, "Failed to read GitHub account")
		return
	}
	for _, e := range emails {
		user, err := s.Users.ByEmail(ctx, e)
		if err != nil {
			continue
		}
		if err := s.startSession(c, user); err != nil {
			c.String(http.StatusInternalServerError, "Failed to start session")
			return
		}
		c.Redirect(http.StatusFound, "/editor")
		return
	}
	s.loginPage(c, http.StatusForbidden, "No editor account matches your GitHub e-mail.", "")
}

// githubEmails returns the verified addresses of the account, primary first.
func (s *Server) githubEmails(c *gin.Context, client *http.Client) ([]string, error) {
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, strings.TrimSuffix(s.GitHubAPI, "/")+"/user/emails", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github returned %s", resp.Status)
	}

	var list []githubEmail
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, err
	}
	var out []string
	for _, e := range list {
		if !e.Verified {
			continue
		}
		if e.Primary {
			out = append([]string{e.Email}, out...)
		} else {
			out = append(out, e.Email)
		}
	}
	return out, nil
}

func (s *Server) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.Redirect(http.StatusFound, "/login")
}
