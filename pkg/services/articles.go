package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wingspan/pkg/models"
	"wingspan/pkg/store"
)

// FormError is a validation failure shown inline on the article or user form.
type FormError struct {
	Message string
}

func (e *FormError) Error() string { return e.Message }

var (
	ErrSlugTaken        = &FormError{"Slug is already taken. Please choose a different one."}
	ErrAuthorRequired   = &FormError{"Author ID is required."}
	ErrInvalidSlot      = &FormError{"Please select a secondary slot between 1 and 4."}
	ErrReassignRequired = &FormError{"Please select where to move the current primary article."}
	ErrTitleRequired    = &FormError{"Title is required."}
	ErrSlugRequired     = &FormError{"Slug is required."}
	ErrUnknownAuthor    = &FormError{"Author does not exist."}
	ErrInvalidType      = &FormError{"Type must be one of story, sports, opinion, podcast or other."}
	ErrInvalidContent   = &FormError{"Content is not a valid article document."}

	// ErrPlacementConflict means another save took the slot first.
	ErrPlacementConflict = &FormError{"The home page changed while you were editing. Please review the placement and save again."}
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

const (
	MsgSaveFailed = "There was an error saving the article. Please try again."

	WarnNoPrimary      = "Warning: There will be no active primary article after this change."
	WarnEmptySecondary = "Warning: There will be an empty slot for secondary articles after this change."
)

// Invalidator is told whenever the front page may have changed.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// SaveInput is one submission of the article form. Actor is nil for trusted
// callers such as the import command.
type SaveInput struct {
	Article        models.Article
	Placement      models.Placement
	ReassignTarget *models.Placement
	Actor          *models.User
}

// Displacement is another article whose placement a save changes.
type Displacement struct {
	Article models.Summary   `json:"article"`
	From    models.Placement `json:"from"`
	To      models.Placement `json:"to"`
}

type SaveResult struct {
	Article   models.Article `json:"article"`
	Created   bool           `json:"created"`
	Warnings  []string       `json:"warnings"`
	Displaced []Displacement `json:"displaced"`
}

type ArticleService struct {
	store  *store.Store
	cache  Invalidator
	logger *zap.Logger
	now    func() time.Time
}

func NewArticleService(st *store.Store, cache Invalidator, logger *zap.Logger) *ArticleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArticleService{
		store:  st,
		cache:  cache,
		logger: logger.Named("articles"),
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// HomeLoader reads the front page straight from storage.
func (s *ArticleService) HomeLoader() HomeLoader {
	return func(ctx context.Context) (models.HomePage, error) {
		primary, secondaries, err := s.store.Queries().HomeArticles(ctx)
		if err != nil {
			return models.HomePage{}, err
		}
		return models.HomePage{Primary: primary, Secondaries: secondaries}, nil
	}
}

func (s *ArticleService) Get(ctx context.Context, id string) (*models.Article, error) {
	a, err := s.store.Queries().ArticleByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return a, err
}

// BySlug trims slug before the lookup.
func (s *ArticleService) BySlug(ctx context.Context, slug string) (*models.Article, error) {
	a, err := s.store.Queries().ArticleBySlug(ctx, strings.TrimSpace(slug))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return a, err
}

func (s *ArticleService) List(ctx context.Context, f store.ArticleFilter) ([]models.Article, error) {
	return s.store.Queries().ListArticles(ctx, f)
}

func (s *ArticleService) Latest(ctx context.Context, limit uint64) ([]models.Article, error) {
	return s.store.Queries().LatestArticles(ctx, limit)
}

// SlugAvailable reports whether slug is unused or used only by selfID.
func (s *ArticleService) SlugAvailable(ctx context.Context, slug, selfID string) (bool, error) {
	owner, err := s.store.Queries().SlugOwner(ctx, strings.TrimSpace(slug))
	if err != nil {
		return false, err
	}
	return owner == "" || owner == selfID, nil
}

// Save validates the submission, moves any articles it displaces and writes
// the article, all in one transaction.
func (s *ArticleService) Save(ctx context.Context, in SaveInput) (*SaveResult, error) {
	var res *SaveResult
	err := s.store.InTx(ctx, func(q *store.Queries) error {
		var err error
		res, err = s.save(ctx, q, in, true)
		return err
	})
	if errors.Is(err, store.ErrSlotConflict) {
		err = ErrPlacementConflict
	}
	if err != nil {
		s.logFailure("save article", in.Article.ID, err)
		return nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	s.logger.Info("article saved",
		zap.String("id", res.Article.ID),
		zap.String("slug", res.Article.Slug),
		zap.Bool("created", res.Created),
		zap.Stringer("placement", res.Article.Placement()),
		zap.Int("displaced", len(res.Displaced)))
	return res, nil
}

// Preview runs the same checks and planning as Save without writing, so the
// editor can show which articles would move.
func (s *ArticleService) Preview(ctx context.Context, in SaveInput) (*SaveResult, error) {
	return s.save(ctx, s.store.Queries(), in, false)
}

func (s *ArticleService) save(ctx context.Context, q *store.Queries, in SaveInput, write bool) (*SaveResult, error) {
	now := s.now()
	a := in.Article
	a.Title = strings.TrimSpace(a.Title)
	a.Slug = strings.TrimSpace(a.Slug)
	a.AuthorID = strings.TrimSpace(a.AuthorID)
	if a.Slug == "" {
		a.Slug = Slugify(a.Title)
	}

	var existing *models.Article
	if a.ID != "" {
		var err error
		existing, err = q.ArticleByID(ctx, a.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load article: %w", err)
		}
	}

	initial := models.Regular()
	if existing != nil {
		initial = existing.Placement()
	}
	desired := in.Placement
	if err := authorizeSave(in.Actor, existing, a.AuthorID, initial, desired); err != nil {
		return nil, err
	}

	if err := s.validate(ctx, q, &a, desired); err != nil {
		return nil, err
	}

	res := &SaveResult{Created: existing == nil}
	if existing == nil {
		a.ID = uuid.NewString()
	}
	if a.PublishedAt.IsZero() {
		a.PublishedAt = now
	}
	a.PublishedAt = a.PublishedAt.UTC().Truncate(time.Second)
	a.UpdatedAt = now

	steps, changed, err := planPlacement(ctx, q, a.ID, initial, desired, in.ReassignTarget, res)
	if err != nil {
		return nil, err
	}
	if !changed && existing != nil {
		a.CopyPlacement(*existing)
	} else {
		a.SetPlacement(desired)
	}

	if !write {
		res.Article = a
		return res, nil
	}

	// The article gives up its old flags first so no step collides with it
	// on a slot index.
	if changed && existing != nil {
		if err := q.SetPlacement(ctx, a.ID, models.Regular(), now); err != nil {
			return nil, err
		}
	}
	for _, st := range steps {
		if err := st.apply(ctx, q, now); err != nil {
			return nil, err
		}
	}
	if existing == nil {
		err = q.InsertArticle(ctx, a)
	} else {
		err = q.UpdateArticle(ctx, a)
	}
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrSlugTaken
	}
	if err != nil {
		return nil, err
	}

	saved, err := q.ArticleByID(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("reload article: %w", err)
	}
	res.Article = *saved
	return res, nil
}

// validate checks the form in the order the editor reports problems and fills
// in derived fields.
func (s *ArticleService) validate(ctx context.Context, q *store.Queries, a *models.Article, desired models.Placement) error {
	if a.Slug != "" {
		owner, err := q.SlugOwner(ctx, a.Slug)
		if err != nil {
			return fmt.Errorf("check slug: %w", err)
		}
		if owner != "" && owner != a.ID {
			return ErrSlugTaken
		}
	}
	if a.AuthorID == "" {
		return ErrAuthorRequired
	}
	if err := desired.Validate(); err != nil {
		return ErrInvalidSlot
	}
	if a.Title == "" {
		return ErrTitleRequired
	}
	if a.Slug == "" {
		return ErrSlugRequired
	}
	if _, err := q.UserByID(ctx, a.AuthorID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownAuthor
		}
		return fmt.Errorf("load author: %w", err)
	}

	if a.Type == "" {
		a.Type = models.TypeStory
	}
	if !a.Type.Valid() {
		return ErrInvalidType
	}

	content, err := models.NormalizeContent(a.Content)
	if err != nil {
		return ErrInvalidContent
	}
	a.Content = content
	if strings.TrimSpace(a.Excerpt) == "" && content != nil {
		if body, err := RenderArticle(*a); err == nil {
			a.Excerpt = DeriveExcerpt(body)
		}
	}
	return nil
}

// authorizeSave checks the actor may write the article. Choosing a byline
// other than one's own, or changing an article's author, needs EditAny. An
// empty author is left for validation to report.
func authorizeSave(actor *models.User, existing *models.Article, authorID string, initial, desired models.Placement) error {
	if actor == nil {
		return nil
	}
	owner := actor.ID
	if existing != nil {
		owner = existing.AuthorID
	}
	if authorID != "" && authorID != owner && !actor.Permissions.EditAny {
		return ErrForbidden
	}
	if existing == nil && !actor.Permissions.Post {
		return ErrForbidden
	}
	if existing != nil && !actor.CanEditArticle(existing.AuthorID) {
		return ErrForbidden
	}
	if initial != desired && !actor.Permissions.EditHomepage {
		return ErrForbidden
	}
	return nil
}

// planStep is one write against another article.
type planStep struct {
	id        string
	clearSlot int
	placement models.Placement
}

func (p planStep) apply(ctx context.Context, q *store.Queries, now time.Time) error {
	if p.clearSlot > 0 {
		return q.ClearSlot(ctx, p.id, p.clearSlot, now)
	}
	return q.SetPlacement(ctx, p.id, p.placement, now)
}

// planPlacement works out which other articles move when selfID goes from
// initial to desired, adding warnings and displacements to res. changed is
// false when the save keeps the article where it is.
func planPlacement(ctx context.Context, q *store.Queries, selfID string, initial, desired models.Placement, reassign *models.Placement, res *SaveResult) (steps []planStep, changed bool, err error) {
	categoryChanged := initial.Category != desired.Category
	slotChanged := initial.Slot != desired.Slot
	if !categoryChanged && (!slotChanged || initial.Slot == 0 || desired.Slot == 0) {
		return nil, false, nil
	}

	clearOccupant := func(n int, exclude ...string) error {
		holders, err := q.SlotHolders(ctx, n, exclude...)
		if err != nil {
			return fmt.Errorf("slot %d holders: %w", n, err)
		}
		for _, occ := range holders {
			after := occ
			after.ClearSlot(n)
			steps = append(steps, planStep{id: occ.ID, clearSlot: n})
			res.Displaced = append(res.Displaced, Displacement{
				Article: occ.Summary(),
				From:    occ.Placement(),
				To:      after.Placement(),
			})
		}
		return nil
	}

	switch desired.Category {
	case models.CategoryPrimary:
		current, err := q.PrimaryArticle(ctx, selfID)
		if errors.Is(err, store.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, false, fmt.Errorf("current primary: %w", err)
		}
		if reassign == nil || reassign.Category == models.CategoryPrimary {
			return nil, false, ErrReassignRequired
		}
		if err := reassign.Validate(); err != nil {
			return nil, false, ErrInvalidSlot
		}
		if reassign.Category == models.CategorySecondary {
			if err := clearOccupant(reassign.Slot, current.ID, selfID); err != nil {
				return nil, false, err
			}
		}
		steps = append(steps, planStep{id: current.ID, placement: *reassign})
		res.Displaced = append(res.Displaced, Displacement{
			Article: current.Summary(),
			From:    models.Primary(),
			To:      *reassign,
		})

	case models.CategorySecondary:
		if err := clearOccupant(desired.Slot, selfID); err != nil {
			return nil, false, err
		}
		if initial.Category == models.CategoryPrimary {
			res.Warnings = append(res.Warnings, WarnNoPrimary)
		}

	case models.CategoryRegular:
		switch initial.Category {
		case models.CategoryPrimary:
			res.Warnings = append(res.Warnings, WarnNoPrimary)
		case models.CategorySecondary:
			res.Warnings = append(res.Warnings, WarnEmptySecondary)
		}
	}
	return steps, true, nil
}

// Delete removes an article. Actor nil skips the permission check.
func (s *ArticleService) Delete(ctx context.Context, actor *models.User, id string) error {
	q := s.store.Queries()
	a, err := q.ArticleByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if actor != nil && !actor.CanEditArticle(a.AuthorID) {
		return ErrForbidden
	}
	if err := q.DeleteArticle(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		s.logFailure("delete article", id, err)
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	s.logger.Info("article deleted", zap.String("id", id), zap.String("slug", a.Slug))
	return nil
}

func (s *ArticleService) logFailure(msg, id string, err error) {
	var fe *FormError
	if errors.As(err, &fe) || errors.Is(err, ErrForbidden) || errors.Is(err, ErrNotFound) {
		s.logger.Debug(msg+" rejected", zap.String("id", id), zap.Error(err))
		return
	}
	s.logger.Error(msg+" failed", zap.String("id", id), zap.Error(err))
}

// FormMessage is the text shown to an editor for err.
func FormMessage(err error) string {
	var fe *FormError
	if errors.As(err, &fe) {
		return fe.Message
	}
	return MsgSaveFailed
}
