package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wingspan/pkg/models"
	"wingspan/pkg/store"
)

var testNow = time.Date(2024, 10, 1, 9, 30, 0, 0, time.UTC)

const testContent = `{
  "title": {"text": "Eagles Win", "style": "bold"},
  "location": {"text": "Cheyenne, WY"},
  "intro": {"text": "A late rally lifted the Eagles past Central on Friday night."},
  "sections": [{"heading": {"text": "Recap"}, "content": [{"content": "Final score 3-1."}]}]
}`

type countingInvalidator struct {
	mu sync.Mutex
	n  int
}

func (c *countingInvalidator) Invalidate(context.Context) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingInvalidator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

type fixture struct {
	store    *store.Store
	cache    *countingInvalidator
	articles *ArticleService
	users    *UserService
	author   *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newTestStore(t)
	cache := &countingInvalidator{}
	f := &fixture{
		store:    st,
		cache:    cache,
		articles: NewArticleService(st, cache, nil),
		users:    NewUserService(st, cache, nil),
	}
	f.articles.now = func() time.Time { return testNow }
	f.users.now = func() time.Time { return testNow }

	u, err := f.users.Create(context.Background(), nil, UserInput{
		Name:        "Jo Reporter",
		Email:       "jo@wingspan.test",
		Password:    "hunter22",
		Permissions: models.Permissions{Post: true, EditOwn: true},
	})
	require.NoError(t, err)
	f.author = u
	return f
}

// place saves a new article at p with no actor and returns it.
func (f *fixture) place(t *testing.T, title string, p models.Placement) models.Article {
	t.Helper()
	res, err := f.articles.Save(context.Background(), SaveInput{
		Article:        models.Article{Title: title, AuthorID: f.author.ID, Content: []byte(testContent)},
		Placement:      p,
		ReassignTarget: &models.Placement{Category: models.CategoryRegular},
	})
	require.NoError(t, err)
	return res.Article
}

func (f *fixture) placementOf(t *testing.T, id string) models.Placement {
	t.Helper()
	a, err := f.articles.Get(context.Background(), id)
	require.NoError(t, err)
	return a.Placement()
}
