package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"wingspan/pkg/config"
	"wingspan/pkg/models"
	"wingspan/pkg/services"
	"wingspan/pkg/store"
)

const testContent = `{"title":{"text":"Eagles Win"},"location":{"text":"Cheyenne, WY"},"intro":{"text":"A late rally."},"sections":[{"heading":{"text":"Recap"},"content":[{"content":"Final score 3-1."}]}]}`

type testEnv struct {
	t        *testing.T
	server   *Server
	router   *gin.Engine
	admin    *models.User
	reporter *models.User
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(ctx))

	nav, err := config.LoadNavigation()
	require.NoError(t, err)

	var articles *services.ArticleService
	home := services.NewHomeCache(func(ctx context.Context) (models.HomePage, error) {
		return articles.HomeLoader()(ctx)
	}, time.Minute, nil, nil)
	articles = services.NewArticleService(st, home, nil)
	users := services.NewUserService(st, home, nil)

	cfg := config.Default()
	cfg.SessionSecret = "test-secret"
	s := &Server{
		Config:   cfg,
		Nav:      nav,
		Articles: articles,
		Users:    users,
		Theme:    services.NewThemeService(st, nil),
		Home:     home,
		Media:    services.LocalMedia{Dir: t.TempDir(), URLPrefix: "/media/"},
	}

	all, err := models.ParsePermissions([]string{"all"})
	require.NoError(t, err)
	admin, err := users.Create(ctx, nil, services.UserInput{
		Name: "Ada Admin", Email: "ada@wingspan.test", Password: "admin-pass", Permissions: all,
	})
	require.NoError(t, err)
	reporter, err := users.Create(ctx, nil, services.UserInput{
		Name: "Jo Reporter", Email: "jo@wingspan.test", Password: "reporter-pass",
		Permissions: models.Permissions{Post: true, EditOwn: true},
	})
	require.NoError(t, err)

	env := &testEnv{t: t, server: s, admin: admin, reporter: reporter}
	env.build()
	return env
}

// build (re)creates the router after Server fields change.
func (e *testEnv) build() {
	r, err := NewRouter(e.server)
	require.NoError(e.t, err)
	e.router = r
}

func (e *testEnv) do(req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil), cookies)
}

func (e *testEnv) sendJSON(method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	raw, err := json.Marshal(body)
	require.NoError(e.t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return e.do(req, cookies)
}

func (e *testEnv) login(email, password string) []*http.Cookie {
	e.t.Helper()
	form := url.Values{"email": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := e.do(req, nil)
	require.Equal(e.t, http.StatusFound, rec.Code, rec.Body.String())
	require.Equal(e.t, "/editor", rec.Header().Get("Location"))
	return rec.Result().Cookies()
}

func (e *testEnv) seed(title string, p models.Placement) models.Article {
	e.t.Helper()
	regular := models.Regular()
	res, err := e.server.Articles.Save(context.Background(), services.SaveInput{
		Article:        models.Article{Title: title, AuthorID: e.reporter.ID, Content: []byte(testContent)},
		Placement:      p,
		ReassignTarget: &regular,
	})
	require.NoError(e.t, err)
	return res.Article
}

func htmlDoc(t *testing.T, body io.Reader) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(body)
	require.NoError(t, err)
	return doc
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
