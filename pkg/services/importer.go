package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"wingspan/pkg/models"
)

var importExtensions = map[string]bool{".md": true, ".markdown": true, ".json": true, ".toml": true, ".yaml": true, ".yml": true}

// ImportReport summarises an ImportDir run.
type ImportReport struct {
	Created  int
	Updated  int
	Failed   map[string]error
	Warnings []string
}

// Importer loads front matter files into the article store.
type Importer struct {
	articles *ArticleService
	users    *UserService
	logger   *zap.Logger
}

func NewImporter(articles *ArticleService, users *UserService, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{articles: articles, users: users, logger: logger.Named("import")}
}

// ImportDir walks dir and saves every article file through the normal save
// workflow, matching existing articles by slug. A file that takes the primary
// slot sends the previous primary back to the regular list.
func (im *Importer) ImportDir(ctx context.Context, dir string) (*ImportReport, error) {
	report := &ImportReport{Failed: map[string]error{}}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !importExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}
		rel, _ := filepath.Rel(dir, path)

		res, err := im.importFile(ctx, path)
		if err != nil {
			im.logger.Warn("import failed", zap.String("file", rel), zap.Error(err))
			report.Failed[rel] = err
			return nil
		}
		if res.Created {
			report.Created++
		} else {
			report.Updated++
		}
		for _, w := range res.Warnings {
			report.Warnings = append(report.Warnings, rel+": "+w)
		}
		im.logger.Info("imported", zap.String("file", rel), zap.String("slug", res.Article.Slug), zap.Bool("created", res.Created))
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("walk %s: %w", dir, err)
	}
	return report, nil
}

func (im *Importer) importFile(ctx context.Context, path string) (*SaveResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := ParseArticleFile(content)
	if err != nil {
		return nil, err
	}

	a := f.Article
	if a.AuthorID == "" && f.AuthorEmail != "" {
		u, err := im.users.ByEmail(ctx, f.AuthorEmail)
		if err != nil {
			return nil, fmt.Errorf("author %s: %w", f.AuthorEmail, err)
		}
		a.AuthorID = u.ID
	}

	slug := a.Slug
	if slug == "" {
		slug = Slugify(a.Title)
	}
	a.ID = ""
	existing, err := im.articles.BySlug(ctx, slug)
	switch {
	case err == nil:
		a.ID = existing.ID
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	regular := models.Regular()
	return im.articles.Save(ctx, SaveInput{
		Article:        a,
		Placement:      f.Placement,
		ReassignTarget: &regular,
	})
}
