package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"wingspan/pkg/models"
)

const settingsRowID = 1

// SiteSettings returns the holiday theme flags. A missing row means no theme.
func (q *Queries) SiteSettings(ctx context.Context) (models.SiteSettings, error) {
	var s models.SiteSettings
	row, err := q.queryRow(ctx, q.sb.Select("is_christmas", "is_halloween").
		From("site_settings").
		Where(sq.Eq{"id": settingsRowID}))
	if err != nil {
		return s, err
	}
	if err := row.Scan(&s.IsChristmas, &s.IsHalloween); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SiteSettings{}, nil
		}
		return s, fmt.Errorf("scan site settings: %w", err)
	}
	return s, nil
}

func (q *Queries) SaveSiteSettings(ctx context.Context, s models.SiteSettings) error {
	_, err := q.exec(ctx, q.sb.Insert("site_settings").
		Columns("id", "is_christmas", "is_halloween").
		Values(settingsRowID, s.IsChristmas, s.IsHalloween).
		Suffix("ON CONFLICT (id) DO UPDATE SET is_christmas = excluded.is_christmas, is_halloween = excluded.is_halloween"))
	if err != nil {
		return fmt.Errorf("save site settings: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
