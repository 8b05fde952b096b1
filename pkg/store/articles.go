package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"wingspan/pkg/models"
)

var articleColumns = []string{
	"a.id", "a.title", "a.slug", "a.author_id", "COALESCE(u.name, '')",
	"a.content", "a.excerpt", "a.main_image", "a.type", "a.published_at",
	"a.is_primary", "a.is_secondary_primary_1", "a.is_secondary_primary_2",
	"a.is_secondary_primary_3", "a.is_secondary_primary_4", "a.updated_at",
}

// SlotColumn names the flag column backing secondary slot n.
func SlotColumn(n int) string {
	return "is_secondary_primary_" + strconv.Itoa(n)
}

// ArticleFilter narrows ListArticles.
type ArticleFilter struct {
	AuthorID string
	Type     models.ArticleType
	Search   string
	Limit    uint64
	Offset   uint64
}

func (q *Queries) selectArticles() sq.SelectBuilder {
	return q.sb.Select(articleColumns...).
		From("articles a").
		LeftJoin("users u ON u.id = a.author_id")
}

func scanArticle(row interface{ Scan(...any) error }) (models.Article, error) {
	var (
		a       models.Article
		content string
		typ     string
	)
	err := row.Scan(
		&a.ID, &a.Title, &a.Slug, &a.AuthorID, &a.AuthorName,
		&content, &a.Excerpt, &a.MainImage, &typ, &a.PublishedAt,
		&a.IsPrimary, &a.IsSecondaryPrimary1, &a.IsSecondaryPrimary2,
		&a.IsSecondaryPrimary3, &a.IsSecondaryPrimary4, &a.UpdatedAt,
	)
	if err != nil {
		return models.Article{}, err
	}
	if content != "" {
		a.Content = []byte(content)
	}
	a.Type = models.ArticleType(typ)
	return a, nil
}

func (q *Queries) getArticle(ctx context.Context, where any) (*models.Article, error) {
	row, err := q.queryRow(ctx, q.selectArticles().Where(where).Limit(1))
	if err != nil {
		return nil, err
	}
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan article: %w", err)
	}
	return &a, nil
}

func (q *Queries) listArticles(ctx context.Context, b sq.SelectBuilder) ([]models.Article, error) {
	rows, err := q.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var out []models.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (q *Queries) ArticleByID(ctx context.Context, id string) (*models.Article, error) {
	return q.getArticle(ctx, sq.Eq{"a.id": id})
}

func (q *Queries) ArticleBySlug(ctx context.Context, slug string) (*models.Article, error) {
	return q.getArticle(ctx, sq.Eq{"a.slug": slug})
}

// SlugOwner returns the id of the article using slug, or "" when it is free.
func (q *Queries) SlugOwner(ctx context.Context, slug string) (string, error) {
	row, err := q.queryRow(ctx, q.sb.Select("id").From("articles").Where(sq.Eq{"slug": slug}).Limit(1))
	if err != nil {
		return "", err
	}
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("slug owner: %w", err)
	}
	return id, nil
}

// PrimaryArticle returns the current primary article other than excludeID.
func (q *Queries) PrimaryArticle(ctx context.Context, excludeID string) (*models.Article, error) {
	where := sq.And{sq.Eq{"a.is_primary": true}}
	if excludeID != "" {
		where = append(where, sq.NotEq{"a.id": excludeID})
	}
	return q.getArticle(ctx, where)
}

// SlotHolders returns every article holding secondary slot n, ignoring the
// given ids, so a move clears all of them.
func (q *Queries) SlotHolders(ctx context.Context, n int, exclude ...string) ([]models.Article, error) {
	if n < 1 || n > models.SecondarySlots {
		return nil, fmt.Errorf("secondary slot %d out of range", n)
	}
	where := sq.And{sq.Eq{"a." + SlotColumn(n): true}}
	for _, id := range exclude {
		if id != "" {
			where = append(where, sq.NotEq{"a.id": id})
		}
	}
	return q.listArticles(ctx, q.selectArticles().Where(where).OrderBy("a.published_at ASC"))
}

// HomeArticles returns the primary article (nil if none) and every article
// holding a secondary slot, oldest first.
func (q *Queries) HomeArticles(ctx context.Context) (*models.Article, []models.Article, error) {
	primary, err := q.getArticle(ctx, sq.Eq{"a.is_primary": true})
	if errors.Is(err, ErrNotFound) {
		primary = nil
	} else if err != nil {
		return nil, nil, err
	}

	anySlot := sq.Or{}
	for n := 1; n <= models.SecondarySlots; n++ {
		anySlot = append(anySlot, sq.Eq{"a." + SlotColumn(n): true})
	}
	secondaries, err := q.listArticles(ctx, q.selectArticles().Where(anySlot).OrderBy("a.published_at ASC"))
	if err != nil {
		return nil, nil, err
	}
	return primary, secondaries, nil
}

// LatestArticles returns the most recently published articles.
func (q *Queries) LatestArticles(ctx context.Context, limit uint64) ([]models.Article, error) {
	return q.listArticles(ctx, q.selectArticles().OrderBy("a.published_at DESC").Limit(limit))
}

func (q *Queries) ListArticles(ctx context.Context, f ArticleFilter) ([]models.Article, error) {
	b := q.selectArticles().OrderBy("a.published_at DESC")
	if f.AuthorID != "" {
		b = b.Where(sq.Eq{"a.author_id": f.AuthorID})
	}
	if f.Type != "" {
		b = b.Where(sq.Eq{"a.type": string(f.Type)})
	}
	if f.Search != "" {
		b = b.Where(sq.Like{"LOWER(a.title)": "%" + strings.ToLower(f.Search) + "%"})
	}
	if f.Limit > 0 {
		b = b.Limit(f.Limit)
	}
	if f.Offset > 0 {
		b = b.Offset(f.Offset)
	}
	return q.listArticles(ctx, b)
}

func contentString(a models.Article) string {
	return string(a.Content)
}

func (q *Queries) InsertArticle(ctx context.Context, a models.Article) error {
	_, err := q.exec(ctx, q.sb.Insert("articles").
		Columns("id", "title", "slug", "author_id", "content", "excerpt", "main_image", "type",
			"published_at", "is_primary", "is_secondary_primary_1", "is_secondary_primary_2",
			"is_secondary_primary_3", "is_secondary_primary_4", "updated_at").
		Values(a.ID, a.Title, a.Slug, a.AuthorID, contentString(a), a.Excerpt, a.MainImage, string(a.Type),
			a.PublishedAt.UTC(), a.IsPrimary, a.IsSecondaryPrimary1, a.IsSecondaryPrimary2,
			a.IsSecondaryPrimary3, a.IsSecondaryPrimary4, a.UpdatedAt.UTC()))
	if err != nil {
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

// UpdateArticle rewrites every column of the article, placement flags included.
func (q *Queries) UpdateArticle(ctx context.Context, a models.Article) error {
	res, err := q.exec(ctx, q.sb.Update("articles").SetMap(map[string]any{
		"title":                  a.Title,
		"slug":                   a.Slug,
		"author_id":              a.AuthorID,
		"content":                contentString(a),
		"excerpt":                a.Excerpt,
		"main_image":             a.MainImage,
		"type":                   string(a.Type),
		"published_at":           a.PublishedAt.UTC(),
		"is_primary":             a.IsPrimary,
		"is_secondary_primary_1": a.IsSecondaryPrimary1,
		"is_secondary_primary_2": a.IsSecondaryPrimary2,
		"is_secondary_primary_3": a.IsSecondaryPrimary3,
		"is_secondary_primary_4": a.IsSecondaryPrimary4,
		"updated_at":             a.UpdatedAt.UTC(),
	}).Where(sq.Eq{"id": a.ID}))
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}
	return affectedOne(res)
}

// SetPlacement rewrites the five placement flags of one article.
func (q *Queries) SetPlacement(ctx context.Context, id string, p models.Placement, now time.Time) error {
	var a models.Article
	a.SetPlacement(p)
	res, err := q.exec(ctx, q.sb.Update("articles").SetMap(map[string]any{
		"is_primary":             a.IsPrimary,
		"is_secondary_primary_1": a.IsSecondaryPrimary1,
		"is_secondary_primary_2": a.IsSecondaryPrimary2,
		"is_secondary_primary_3": a.IsSecondaryPrimary3,
		"is_secondary_primary_4": a.IsSecondaryPrimary4,
		"updated_at":             now.UTC(),
	}).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("set placement: %w", err)
	}
	return affectedOne(res)
}

// ClearSlot unsets only the flag of secondary slot n on one article.
func (q *Queries) ClearSlot(ctx context.Context, id string, n int, now time.Time) error {
	if n < 1 || n > models.SecondarySlots {
		return fmt.Errorf("secondary slot %d out of range", n)
	}
	res, err := q.exec(ctx, q.sb.Update("articles").
		Set(SlotColumn(n), false).
		Set("updated_at", now.UTC()).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("clear slot: %w", err)
	}
	return affectedOne(res)
}

func (q *Queries) DeleteArticle(ctx context.Context, id string) error {
	res, err := q.exec(ctx, q.sb.Delete("articles").Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	return affectedOne(res)
}

// CountArticlesByAuthor is used to refuse deleting users that still have bylines.
func (q *Queries) CountArticlesByAuthor(ctx context.Context, authorID string) (int, error) {
	row, err := q.queryRow(ctx, q.sb.Select("COUNT(*)").From("articles").Where(sq.Eq{"author_id": authorID}))
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}
