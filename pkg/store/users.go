package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"wingspan/pkg/models"
)

var userColumns = []string{
	"id", "name", "email", "password_hash",
	"can_post", "can_edit_any", "can_edit_own", "can_edit_users",
	"can_create_users", "can_delete_users", "can_edit_homepage", "can_review_submissions",
	"created_at",
}

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var u models.User
	p := &u.Permissions
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash,
		&p.Post, &p.EditAny, &p.EditOwn, &p.EditUsers,
		&p.CreateUsers, &p.DeleteUsers, &p.EditHomepage, &p.ReviewSubmissions,
		&u.CreatedAt,
	)
	return u, err
}

func permissionColumns(p models.Permissions) map[string]any {
	return map[string]any{
		"can_post":               p.Post,
		"can_edit_any":           p.EditAny,
		"can_edit_own":           p.EditOwn,
		"can_edit_users":         p.EditUsers,
		"can_create_users":       p.CreateUsers,
		"can_delete_users":       p.DeleteUsers,
		"can_edit_homepage":      p.EditHomepage,
		"can_review_submissions": p.ReviewSubmissions,
	}
}

func (q *Queries) getUser(ctx context.Context, where any) (*models.User, error) {
	row, err := q.queryRow(ctx, q.sb.Select(userColumns...).From("users").Where(where).Limit(1))
	if err != nil {
		return nil, err
	}
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (q *Queries) UserByID(ctx context.Context, id string) (*models.User, error) {
	return q.getUser(ctx, sq.Eq{"id": id})
}

// UserByEmail matches case-insensitively; addresses are stored lowercased.
func (q *Queries) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return q.getUser(ctx, sq.Eq{"email": normalizeEmail(email)})
}

func (q *Queries) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := q.query(ctx, q.sb.Select(userColumns...).From("users").OrderBy("name ASC"))
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (q *Queries) InsertUser(ctx context.Context, u models.User) error {
	cols := permissionColumns(u.Permissions)
	cols["id"] = u.ID
	cols["name"] = u.Name
	cols["email"] = normalizeEmail(u.Email)
	cols["password_hash"] = u.PasswordHash
	cols["created_at"] = u.CreatedAt.UTC()
	if _, err := q.exec(ctx, q.sb.Insert("users").SetMap(cols)); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UpdateUser rewrites name, email and permissions. The password hash is only
// replaced when non-empty.
func (q *Queries) UpdateUser(ctx context.Context, u models.User) error {
	cols := permissionColumns(u.Permissions)
	cols["name"] = u.Name
	cols["email"] = normalizeEmail(u.Email)
	if u.PasswordHash != "" {
		cols["password_hash"] = u.PasswordHash
	}
	res, err := q.exec(ctx, q.sb.Update("users").SetMap(cols).Where(sq.Eq{"id": u.ID}))
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return affectedOne(res)
}

func (q *Queries) DeleteUser(ctx context.Context, id string) error {
	res, err := q.exec(ctx, q.sb.Delete("users").Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return affectedOne(res)
}
