package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArticlePlacementRoundTrip(t *testing.T) {
	for _, p := range []Placement{Primary(), Secondary(1), Secondary(2), Secondary(3), Secondary(4), Regular()} {
		var a Article
		a.SetPlacement(p)
		assert.Equal(t, p, a.Placement(), p.String())
	}
}

func TestSetPlacementClearsOtherFlags(t *testing.T) {
	a := Article{IsPrimary: true, IsSecondaryPrimary2: true, IsSecondaryPrimary4: true}
	a.SetPlacement(Secondary(3))

	assert.False(t, a.IsPrimary)
	assert.False(t, a.IsSecondaryPrimary2)
	assert.True(t, a.IsSecondaryPrimary3)
	assert.False(t, a.IsSecondaryPrimary4)
	assert.True(t, a.HoldsSlot(3))
	assert.False(t, a.HoldsSlot(5))
}

func TestPlacementPrecedence(t *testing.T) {
	assert.Equal(t, Primary(), Article{IsPrimary: true, IsSecondaryPrimary1: true}.Placement())
	assert.Equal(t, Secondary(2), Article{IsSecondaryPrimary2: true, IsSecondaryPrimary3: true}.Placement())
}

func TestPlacementValidate(t *testing.T) {
	assert.NoError(t, Primary().Validate())
	assert.NoError(t, Regular().Validate())
	assert.NoError(t, Secondary(4).Validate())
	assert.Error(t, Secondary(0).Validate())
	assert.Error(t, Secondary(5).Validate())
	assert.Error(t, Placement{Category: CategoryPrimary, Slot: 2}.Validate())
	assert.Error(t, Placement{Category: "featured"}.Validate())
}

func TestParsePlacement(t *testing.T) {
	tests := []struct {
		in      string
		want    Placement
		wantErr bool
	}{
		{in: "", want: Regular()},
		{in: "Primary", want: Primary()},
		{in: "secondary-2", want: Secondary(2)},
		{in: "secondary 4", want: Secondary(4)},
		{in: "secondary-9", wantErr: true},
		{in: "sidebar", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParsePlacement(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParsePermissions(t *testing.T) {
	p, err := ParsePermissions([]string{"post", " Edit-Own ", ""})
	require.NoError(t, err)
	assert.True(t, p.Post)
	assert.True(t, p.EditOwn)
	assert.False(t, p.EditAny)
	assert.Equal(t, []string{"edit-own", "post"}, p.Names())

	all, err := ParsePermissions([]string{"all"})
	require.NoError(t, err)
	assert.Equal(t, PermissionNames(), all.Names())

	_, err = ParsePermissions([]string{"publish-everything"})
	assert.Error(t, err)
}

func TestCanEditArticle(t *testing.T) {
	own := User{ID: "u1", Permissions: Permissions{EditOwn: true}}
	assert.True(t, own.CanEditArticle("u1"))
	assert.False(t, own.CanEditArticle("u2"))

	anyEditor := User{ID: "u1", Permissions: Permissions{EditAny: true}}
	assert.True(t, anyEditor.CanEditArticle("u2"))

	assert.False(t, User{ID: "u1"}.CanEditArticle("u1"))
}

const sampleDocument = `{
  "title": {"text": "Eagles Win", "style": "bold"},
  "location": {"text": "Cheyenne, WY"},
  "intro": {"text": "A late rally."},
  "sections": [{"heading": {"text": "Recap"}, "content": [{"content": "Final score 3-1."}]}]
}`

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument([]byte(sampleDocument))
	require.NoError(t, err)
	assert.Equal(t, "Eagles Win", doc.Title.Text)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "Final score 3-1.", doc.Sections[0].Content[0].Content)

	quoted, err := json.Marshal(sampleDocument)
	require.NoError(t, err)
	fromString, err := ParseDocument(quoted)
	require.NoError(t, err)
	assert.Equal(t, doc, fromString)

	_, err = ParseDocument(nil)
	assert.ErrorIs(t, err, ErrEmptyDocument)
	_, err = ParseDocument([]byte("null"))
	assert.ErrorIs(t, err, ErrEmptyDocument)
	_, err = ParseDocument([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestNormalizeContent(t *testing.T) {
	quoted, err := json.Marshal(sampleDocument)
	require.NoError(t, err)

	out, err := NormalizeContent(quoted)
	require.NoError(t, err)
	assert.JSONEq(t, sampleDocument, string(out))

	empty, err := NormalizeContent([]byte("  "))
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = NormalizeContent([]byte(`"not a document"`))
	assert.Error(t, err)
}

func TestSiteSettingsThemeClass(t *testing.T) {
	assert.Equal(t, "", SiteSettings{}.ThemeClass())
	assert.Equal(t, "theme-christmas", SiteSettings{IsChristmas: true, IsHalloween: true}.ThemeClass())
	assert.Equal(t, "theme-halloween", SiteSettings{IsHalloween: true}.ThemeClass())
}

func TestByline(t *testing.T) {
	assert.Equal(t, "Unknown", Article{}.Byline())
	assert.Equal(t, "Jo Reporter", Article{AuthorName: "Jo Reporter"}.Byline())
}
