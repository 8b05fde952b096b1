package models

import (
	"encoding/json"
	"time"
)

// ArticleType is the editorial desk an article belongs to.
type ArticleType string

const (
	TypeStory   ArticleType = "story"
	TypeSports  ArticleType = "sports"
	TypeOpinion ArticleType = "opinion"
	TypePodcast ArticleType = "podcast"
	TypeOther   ArticleType = "other"
)

func (t ArticleType) Valid() bool {
	switch t {
	case TypeStory, TypeSports, TypeOpinion, TypePodcast, TypeOther:
		return true
	}
	return false
}

// Article is a published piece. Content holds the body document as JSON.
type Article struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Slug        string          `json:"slug"`
	AuthorID    string          `json:"author_id"`
	AuthorName  string          `json:"author_name,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
	Excerpt     string          `json:"excerpt"`
	MainImage   string          `json:"main_image"`
	Type        ArticleType     `json:"type"`
	PublishedAt time.Time       `json:"published_at"`

	IsPrimary           bool `json:"is_primary"`
	IsSecondaryPrimary1 bool `json:"is_secondary_primary_1"`
	IsSecondaryPrimary2 bool `json:"is_secondary_primary_2"`
	IsSecondaryPrimary3 bool `json:"is_secondary_primary_3"`
	IsSecondaryPrimary4 bool `json:"is_secondary_primary_4"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Byline returns the author name, or "Unknown" when the author is missing.
func (a Article) Byline() string {
	if a.AuthorName == "" {
		return "Unknown"
	}
	return a.AuthorName
}

// Document decodes the stored body.
func (a Article) Document() (*Document, error) {
	return ParseDocument(a.Content)
}

// Summary is the trimmed-down article shown on listings and in placement previews.
type Summary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	AuthorName  string    `json:"author_name"`
	PublishedAt time.Time `json:"published_at"`
	Placement   Placement `json:"placement"`
}

func (a Article) Summary() Summary {
	return Summary{
		ID:          a.ID,
		Title:       a.Title,
		Slug:        a.Slug,
		AuthorName:  a.Byline(),
		PublishedAt: a.PublishedAt,
		Placement:   a.Placement(),
	}
}
