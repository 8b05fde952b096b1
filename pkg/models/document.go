package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyDocument is returned when an article has no body.
var ErrEmptyDocument = errors.New("empty document")

// Document is the structured article body as stored in the content column.
type Document struct {
	Title     Styled    `json:"title"`
	Location  Styled    `json:"location"`
	Intro     Intro     `json:"intro"`
	MainImage string    `json:"main_image,omitempty"`
	Sections  []Section `json:"sections"`
}

// Styled is a line of text with an optional inline style.
type Styled struct {
	Text  string `json:"text"`
	Style string `json:"style,omitempty"`
}

type Intro struct {
	Text string `json:"text"`
}

// Run is a span of body text: bold, italic, underline or strikethrough, and
// optionally a hyperlink.
type Run struct {
	Content string `json:"content"`
	Style   string `json:"style,omitempty"`
	Link    string `json:"link,omitempty"`
}

type Section struct {
	Heading        Styled          `json:"heading"`
	Subsections    []Subsection    `json:"subsections,omitempty"`
	Content        []Run           `json:"content,omitempty"`
	Players        []Player        `json:"players,omitempty"`
	Images         []Image         `json:"images,omitempty"`
	Quote          *Quote          `json:"quote,omitempty"`
	AdditionalInfo *AdditionalInfo `json:"additionalInfo,omitempty"`
}

type Subsection struct {
	Subheading Styled       `json:"subheading"`
	Content    []LabeledRun `json:"content,omitempty"`
}

// LabeledRun is a paragraph introduced by a bold label, e.g. "Set 1: ...".
type LabeledRun struct {
	Set  string `json:"set"`
	Text []Run  `json:"text"`
}

// Player is a sports highlight block.
type Player struct {
	Name        Styled       `json:"name"`
	Performance *Performance `json:"performance,omitempty"`
	Quote       *Quote       `json:"quote,omitempty"`
}

type Performance struct {
	Text []Run `json:"text"`
}

type Image struct {
	Src     string `json:"src"`
	Alt     string `json:"alt"`
	Caption string `json:"caption,omitempty"`
}

type Quote struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

type AdditionalInfo struct {
	Link *Link `json:"link,omitempty"`
}

type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// ParseDocument decodes a body. The editor form submits the body as a JSON
// string holding the document, so a quoted payload is unwrapped first.
func ParseDocument(raw []byte) (*Document, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ErrEmptyDocument
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("decode document string: %w", err)
		}
		return ParseDocument([]byte(inner))
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}

// NormalizeContent validates a submitted body and returns it as a JSON object,
// unwrapping a quoted payload. An empty body stays empty.
func NormalizeContent(raw []byte) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("decode document string: %w", err)
		}
		return NormalizeContent([]byte(inner))
	}
	if _, err := ParseDocument(raw); err != nil {
		return nil, err
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out, nil
}
