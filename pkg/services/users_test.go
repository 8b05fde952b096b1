package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wingspan/pkg/models"
)

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.users.Authenticate(ctx, "JO@wingspan.test", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, f.author.ID, u.ID)

	_, err = f.users.Authenticate(ctx, "jo@wingspan.test", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, err = f.users.Authenticate(ctx, "nobody@wingspan.test", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = f.users.Create(ctx, nil, UserInput{Name: "GitHub Only", Email: "gh@wingspan.test"})
	require.NoError(t, err)
	_, err = f.users.Authenticate(ctx, "gh@wingspan.test", "")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Create(ctx, f.author, UserInput{Name: "New", Email: "new@wingspan.test"})
	assert.ErrorIs(t, err, ErrForbidden)

	admin := &models.User{ID: "admin", Permissions: models.Permissions{CreateUsers: true}}
	tests := []struct {
		name string
		in   UserInput
		want error
	}{
		{"name required", UserInput{Name: "  ", Email: "a@wingspan.test"}, ErrNameRequired},
		{"bad email", UserInput{Name: "A", Email: "not-an-email"}, ErrInvalidEmail},
		{"email taken", UserInput{Name: "A", Email: " Jo@Wingspan.test "}, ErrEmailTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.users.Create(ctx, admin, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	u, err := f.users.Create(ctx, admin, UserInput{
		Name:        " Sam Editor ",
		Email:       "Sam@Wingspan.test",
		Permissions: models.Permissions{EditAny: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "Sam Editor", u.Name)
	assert.Equal(t, "sam@wingspan.test", u.Email)
	assert.True(t, u.CreatedAt.Equal(testNow))

	list, err := f.users.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Jo Reporter", list[0].Name)
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	editor := &models.User{ID: "ed", Permissions: models.Permissions{EditUsers: true}}

	_, err := f.users.Update(ctx, f.author, UserInput{ID: f.author.ID, Name: "x", Email: "x@wingspan.test"})
	assert.ErrorIs(t, err, ErrForbidden)

	u, err := f.users.Update(ctx, editor, UserInput{
		ID:          f.author.ID,
		Name:        "Jo Senior",
		Email:       "jo@wingspan.test",
		Permissions: models.Permissions{Post: true, EditAny: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "Jo Senior", u.Name)
	assert.True(t, u.Permissions.EditAny)
	assert.Equal(t, 1, f.cache.count())

	// An empty password keeps the old one.
	_, err = f.users.Authenticate(ctx, "jo@wingspan.test", "hunter22")
	assert.NoError(t, err)

	_, err = f.users.Update(ctx, editor, UserInput{ID: f.author.ID, Name: "Jo", Email: "jo@wingspan.test", Password: "n3w-pass"})
	require.NoError(t, err)
	_, err = f.users.Authenticate(ctx, "jo@wingspan.test", "n3w-pass")
	assert.NoError(t, err)

	_, err = f.users.Update(ctx, editor, UserInput{ID: "missing", Name: "x", Email: "x@wingspan.test"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := &models.User{ID: "admin", Permissions: models.Permissions{DeleteUsers: true}}
	f.place(t, "Byline", models.Regular())

	assert.ErrorIs(t, f.users.Delete(ctx, f.author, f.author.ID), ErrForbidden)
	assert.ErrorIs(t, f.users.Delete(ctx, admin, "admin"), ErrCannotDeleteSelf)
	assert.ErrorIs(t, f.users.Delete(ctx, admin, f.author.ID), ErrUserHasArticles)
	assert.ErrorIs(t, f.users.Delete(ctx, admin, "missing"), ErrNotFound)

	spare, err := f.users.Create(ctx, nil, UserInput{Name: "Spare", Email: "spare@wingspan.test"})
	require.NoError(t, err)
	require.NoError(t, f.users.Delete(ctx, admin, spare.ID))
	_, err = f.users.Get(ctx, spare.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestThemeService(t *testing.T) {
	st := newTestStore(t)
	svc := NewThemeService(st, nil)
	ctx := context.Background()

	assert.Equal(t, models.SiteSettings{}, svc.Get(ctx))

	err := svc.Save(ctx, &models.User{}, models.SiteSettings{IsHalloween: true})
	assert.ErrorIs(t, err, ErrForbidden)

	editor := &models.User{Permissions: models.Permissions{EditHomepage: true}}
	require.NoError(t, svc.Save(ctx, editor, models.SiteSettings{IsHalloween: true}))
	assert.Equal(t, "theme-halloween", svc.Get(ctx).ThemeClass())

	require.NoError(t, svc.Save(ctx, editor, models.SiteSettings{IsChristmas: true}))
	got := svc.Get(ctx)
	assert.True(t, got.IsChristmas)
	assert.False(t, got.IsHalloween)
}
