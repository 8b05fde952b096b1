package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wingspan/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

var baseTime = time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, q *Queries, id, name string) models.User {
	t.Helper()
	u := models.User{
		ID:          id,
		Name:        name,
		Email:       id + "@wingspan.test",
		Permissions: models.Permissions{Post: true, EditOwn: true},
		CreatedAt:   baseTime,
	}
	require.NoError(t, q.InsertUser(context.Background(), u))
	return u
}

func seedArticle(t *testing.T, q *Queries, id, authorID string, p models.Placement, offset time.Duration) models.Article {
	t.Helper()
	a := models.Article{
		ID:          id,
		Title:       "Article " + id,
		Slug:        "article-" + id,
		AuthorID:    authorID,
		Content:     []byte(`{"title":{"text":"x"}}`),
		Type:        models.TypeStory,
		PublishedAt: baseTime.Add(offset),
		UpdatedAt:   baseTime,
	}
	a.SetPlacement(p)
	require.NoError(t, q.InsertArticle(context.Background(), a))
	return a
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "whatever")
	assert.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestArticleCRUD(t *testing.T) {
	ctx := context.Background()
	q := newTestStore(t).Queries()
	seedUser(t, q, "u1", "Jo Reporter")
	seedArticle(t, q, "a1", "u1", models.Regular(), 0)

	got, err := q.ArticleBySlug(ctx, "article-a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, "Jo Reporter", got.AuthorName)
	assert.JSONEq(t, `{"title":{"text":"x"}}`, string(got.Content))
	assert.True(t, got.PublishedAt.Equal(baseTime))

	got.Title = "Renamed"
	got.SetPlacement(models.Secondary(2))
	require.NoError(t, q.UpdateArticle(ctx, *got))

	again, err := q.ArticleByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", again.Title)
	assert.Equal(t, models.Secondary(2), again.Placement())

	require.NoError(t, q.DeleteArticle(ctx, "a1"))
	_, err = q.ArticleByID(ctx, "a1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, q.DeleteArticle(ctx, "a1"), ErrNotFound)
}

func TestArticleMissingAuthorHasEmptyName(t *testing.T) {
	q := newTestStore(t).Queries()
	seedArticle(t, q, "a1", "ghost", models.Regular(), 0)

	got, err := q.ArticleByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "", got.AuthorName)
	assert.Equal(t, "Unknown", got.Byline())
}

func TestDuplicateSlugConflicts(t *testing.T) {
	q := newTestStore(t).Queries()
	seedArticle(t, q, "a1", "u1", models.Regular(), 0)

	dup := models.Article{ID: "a2", Title: "Other", Slug: "article-a1", AuthorID: "u1",
		Type: models.TypeStory, PublishedAt: baseTime, UpdatedAt: baseTime}
	err := q.InsertArticle(context.Background(), dup)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSlugOwner(t *testing.T) {
	ctx := context.Background()
	q := newTestStore(t).Queries()
	seedArticle(t, q, "a1", "u1", models.Regular(), 0)

	owner, err := q.SlugOwner(ctx, "article-a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", owner)

	owner, err = q.SlugOwner(ctx, "free-slug")
	require.NoError(t, err)
	assert.Equal(t, "", owner)
}

func TestPlacementLookups(t *testing.T) {
	ctx := context.Background()
	q := newTestStore(t).Queries()
	seedArticle(t, q, "p", "u1", models.Primary(), 0)
	seedArticle(t, q, "s3", "u1", models.Secondary(3), time.Hour)

	primary, err := q.PrimaryArticle(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "p", primary.ID)

	_, err = q.PrimaryArticle(ctx, "p")
	assert.ErrorIs(t, err, ErrNotFound)

	holders, err := q.SlotHolders(ctx, 3)
	require.NoError(t, err)
	require.Len(t, holders, 1)
	assert.Equal(t, "s3", holders[0].ID)

	holders, err = q.SlotHolders(ctx, 3, "s3")
	require.NoError(t, err)
	assert.Empty(t, holders)

	_, err = q.SlotHolders(ctx, 7)
	assert.Error(t, err)
}

func TestPlacementSlotsAreExclusive(t *testing.T) {
	ctx := context.Background()
	q := newTestStore(t).Queries()
	seedArticle(t, q, "p", "u1", models.Primary(), 0)
	seedArticle(t, q, "s2", "u1", models.Secondary(2), 0)
	seedArticle(t, q, "r1", "u1", models.Regular(), 0)
	seedArticle(t, q, "r2", "u1", models.Regular(), 0)

	second := models.Article{ID: "p2", Title: "Second Lead", Slug: "second-lead", AuthorID: "u1",
		Type: models.TypeStory, PublishedAt: baseTime, UpdatedAt: baseTime, IsPrimary: true}
	err := q.InsertArticle(ctx, second)
	assert.ErrorIs(t, err, ErrSlotConflict)
	assert.NotErrorIs(t, err, ErrConflict)

	err = q.SetPlacement(ctx, "r1", models.Secondary(2), baseTime)
	assert.ErrorIs(t, err, ErrSlotConflict)

	require.NoError(t, q.SetPlacement(ctx, "r1", models.Secondary(3), baseTime))
	require.NoError(t, q.ClearSlot(ctx, "s2", 2, baseTime))
	require.NoError(t, q.SetPlacement(ctx, "r2", models.Secondary(2), baseTime))
}

func TestMigrateClearsDuplicateHolders(t *testing.T) {
	ctx := context.Background()
	s, err := Open(DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	// Tables as they were before the slot indexes existed.
	for _, stmt := range schema {
		_, err := s.db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	q := s.Queries()
	older := seedArticle(t, q, "older", "u1", models.Primary(), 0)
	newer := seedArticle(t, q, "newer", "u1", models.Primary(), time.Hour)
	newer.UpdatedAt = baseTime.Add(time.Hour)
	newer.IsSecondaryPrimary1 = true
	require.NoError(t, q.UpdateArticle(ctx, newer))
	older.IsSecondaryPrimary1 = true
	require.NoError(t, q.UpdateArticle(ctx, older))

	require.NoError(t, s.Migrate(ctx))

	got, err := q.ArticleByID(ctx, "newer")
	require.NoError(t, err)
	assert.True(t, got.IsPrimary)
	assert.True(t, got.IsSecondaryPrimary1)
	got, err = q.ArticleByID(ctx, "older")
	require.NoError(t, err)
	assert.Equal(t, models.Regular(), got.Placement())

	older.ID, older.Slug = "third", "third"
	older.IsSecondaryPrimary1 = false
	assert.ErrorIs(t, q.InsertArticle(ctx, older), ErrSlotConflict)
}

func TestSetPlacementAndClearSlot(t *testing.T) {
	ctx := context.Background()
	q := newTestStore(t).Queries()
	seedArticle(t, q, "a1", "u1", models.Primary(), 0)

	require.NoError(t, q.SetPlacement(ctx, "a1", models.Secondary(1), baseTime))
	got, err := q.ArticleByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.Secondary(1), got.Placement())
	assert.False(t, got.IsPrimary)

	require.NoError(t, q.ClearSlot(ctx, "a1", 1, baseTime))
	got, err = q.ArticleByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.Regular(), got.Placement())

	assert.ErrorIs(t, q.SetPlacement(ctx, "nope", models.Regular(), baseTime), ErrNotFound)
}

func TestHomeArticles(t *testing.T) {
	ctx := context.Background()
	q := newTestStore(t).Queries()
	seedArticle(t, q, "late", "u1", models.Secondary(1), 3*time.Hour)
	seedArticle(t, q, "early", "u1", models.Secondary(4), time.Hour)
	seedArticle(t, q, "plain", "u1", models.Regular(), 2*time.Hour)

	primary, secondaries, err := q.HomeArticles(ctx)
	require.NoError(t, err)
	assert.Nil(t, primary)
	require.Len(t, secondaries, 2)
	assert.Equal(t, "early", secondaries[0].ID)
	assert.Equal(t, "late", secondaries[1].ID)

	seedArticle(t, q, "lead", "u1", models.Primary(), 0)
	primary, _, err = q.HomeArticles(ctx)
	require.NoError(t, err)
	require.NotNil(t, primary)
	assert.Equal(t, "lead", primary.ID)
}

func TestListArticlesFilters(t *testing.T) {
	ctx := context.Background()
	q := newTestStore(t).Queries()
	seedArticle(t, q, "a1", "u1", models.Regular(), time.Hour)
	seedArticle(t, q, "a2", "u2", models.Regular(), 2*time.Hour)
	seedArticle(t, q, "a3", "u1", models.Regular(), 3*time.Hour)

	all, err := q.ListArticles(ctx, ArticleFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a3", all[0].ID)

	mine, err := q.ListArticles(ctx, ArticleFilter{AuthorID: "u1"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	found, err := q.ListArticles(ctx, ArticleFilter{Search: "ARTICLE A2"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "a2", found[0].ID)

	page, err := q.ListArticles(ctx, ArticleFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a2", page[0].ID)

	latest, err := q.LatestArticles(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, latest, 2)

	n, err := q.CountArticlesByAuthor(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	q := newTestStore(t).Queries()
	u := seedUser(t, q, "u1", "Jo Reporter")

	byEmail, err := q.UserByEmail(ctx, "  U1@Wingspan.test ")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.True(t, byEmail.Permissions.Post)
	assert.False(t, byEmail.Permissions.EditAny)

	u.Name = "Jo Editor"
	u.Permissions.EditAny = true
	u.PasswordHash = "hash"
	require.NoError(t, q.UpdateUser(ctx, u))

	u.PasswordHash = ""
	require.NoError(t, q.UpdateUser(ctx, u))
	got, err := q.UserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Jo Editor", got.Name)
	assert.True(t, got.Permissions.EditAny)
	assert.Equal(t, "hash", got.PasswordHash)

	seedUser(t, q, "u0", "Ann Author")
	users, err := q.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Ann Author", users[0].Name)

	dup := models.User{ID: "u9", Name: "Dup", Email: "u1@wingspan.test", CreatedAt: baseTime}
	assert.ErrorIs(t, q.InsertUser(ctx, dup), ErrConflict)

	require.NoError(t, q.DeleteUser(ctx, "u1"))
	_, err = q.UserByID(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSiteSettings(t *testing.T) {
	ctx := context.Background()
	q := newTestStore(t).Queries()

	s, err := q.SiteSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SiteSettings{}, s)

	require.NoError(t, q.SaveSiteSettings(ctx, models.SiteSettings{IsHalloween: true}))
	require.NoError(t, q.SaveSiteSettings(ctx, models.SiteSettings{IsChristmas: true}))
	s, err = q.SiteSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SiteSettings{IsChristmas: true}, s)
}

func TestInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.InTx(ctx, func(q *Queries) error {
		seedArticle(t, q, "a1", "u1", models.Regular(), 0)
		return ErrConflict
	})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = s.Queries().ArticleByID(ctx, "a1")
	assert.ErrorIs(t, err, ErrNotFound)
}
