package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"wingspan/pkg/models"
)

// Front matter formats accepted by ExportArticle and ParseArticleFile.
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
	FormatJSON = "json"
)

func ParseFrontMatter(content []byte) (map[string]interface{}, string, string, error) {
	str := normalizeLineEndings(string(content))
	// Check for YAML (---)
	if fm, body, ok := splitFence(str, "---"); ok {
		var meta map[string]interface{}
		if err := yaml.Unmarshal([]byte(fm), &meta); err != nil {
			return nil, "", "", fmt.Errorf("parse yaml front matter: %w", err)
		}
		return sanitizeFrontMatter(meta), strings.TrimSpace(body), FormatYAML, nil
	}
	// Check for TOML (+++)
	if fm, body, ok := splitFence(str, "+++"); ok {
		var meta map[string]interface{}
		if err := toml.Unmarshal([]byte(fm), &meta); err != nil {
			return nil, "", "", fmt.Errorf("parse toml front matter: %w", err)
		}
		return sanitizeFrontMatter(meta), strings.TrimSpace(body), FormatTOML, nil
	}
	// Check for JSON ({)
	if strings.HasPrefix(strings.TrimSpace(str), "{") {
		var fm map[string]interface{}
		if err := json.Unmarshal(content, &fm); err == nil {
			return fm, "", FormatJSON, nil
		}
	}

	return nil, "", "", fmt.Errorf("unknown format")
}

// splitFence cuts front matter opened by a fence line. Only a line holding
// exactly the fence closes it, so values may contain the fence characters.
func splitFence(str, fence string) (string, string, bool) {
	rest, ok := strings.CutPrefix(str, fence+"\n")
	if !ok {
		return "", "", false
	}
	if rest == fence || strings.HasPrefix(rest, fence+"\n") {
		return "", strings.TrimPrefix(rest, fence), true
	}
	if i := strings.Index(rest, "\n"+fence+"\n"); i >= 0 {
		return rest[:i+1], rest[i+len(fence)+2:], true
	}
	if fm, ok := strings.CutSuffix(rest, "\n"+fence); ok {
		return fm + "\n", "", true
	}
	return "", "", false
}

func ConstructFileContent(fm map[string]interface{}, body string, format string) ([]byte, error) {
	normalizedFM := sanitizeFrontMatter(fm)
	if normalizedFM == nil {
		normalizedFM = map[string]interface{}{}
	}

	var buf bytes.Buffer
	switch format {
	case FormatYAML:
		buf.WriteString("---\n")
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(normalizedFM); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		buf.WriteString("---\n")
	case FormatTOML:
		buf.WriteString("+++\n")
		enc := toml.NewEncoder(&buf)
		if err := enc.Encode(normalizedFM); err != nil {
			return nil, err
		}
		buf.WriteString("+++\n")
	case FormatJSON:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(normalizedFM); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}

	if body != "" {
		buf.WriteString("\n")
		buf.WriteString(body)
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

func sanitizeFrontMatter(fm map[string]interface{}) map[string]interface{} {
	if fm == nil {
		return nil
	}
	sanitized := make(map[string]interface{}, len(fm))
	for k, v := range fm {
		sanitized[k] = sanitizeFrontMatterValue(v)
	}
	return sanitized
}

func sanitizeFrontMatterValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return sanitizeFrontMatter(v)
	case map[interface{}]interface{}:
		normalized := make(map[string]interface{}, len(v))
		for key, inner := range v {
			normalized[fmt.Sprint(key)] = sanitizeFrontMatterValue(inner)
		}
		return normalized
	case []interface{}:
		slice := make([]interface{}, len(v))
		for i := range v {
			slice[i] = sanitizeFrontMatterValue(v[i])
		}
		return slice
	default:
		return v
	}
}

func normalizeLineEndings(input string) string {
	return strings.ReplaceAll(input, "\r\n", "\n")
}

// ArticleFile is an article read from a front matter file. AuthorEmail is
// used when the file names its author by address instead of id.
type ArticleFile struct {
	Article     models.Article
	Placement   models.Placement
	AuthorEmail string
	Format      string
}

// ExportArticle writes metadata as front matter and the body document as
// indented JSON after it. The JSON format nests the document under "content".
func ExportArticle(a models.Article, authorEmail, format string) ([]byte, error) {
	fm := map[string]interface{}{
		"id":           a.ID,
		"title":        a.Title,
		"slug":         a.Slug,
		"author_id":    a.AuthorID,
		"type":         string(a.Type),
		"published_at": a.PublishedAt.UTC().Format(time.RFC3339),
		"placement":    placementKey(a.Placement()),
	}
	if authorEmail != "" {
		fm["author_email"] = authorEmail
	}
	if a.Excerpt != "" {
		fm["excerpt"] = a.Excerpt
	}
	if a.MainImage != "" {
		fm["main_image"] = a.MainImage
	}

	if format == FormatJSON {
		if len(a.Content) > 0 {
			fm["content"] = a.Content
		}
		return ConstructFileContent(fm, "", format)
	}

	var body string
	if len(a.Content) > 0 {
		var buf bytes.Buffer
		if err := json.Indent(&buf, a.Content, "", "  "); err != nil {
			return nil, fmt.Errorf("format content: %w", err)
		}
		body = buf.String()
	}
	return ConstructFileContent(fm, body, format)
}

func placementKey(p models.Placement) string {
	if p.Category == models.CategorySecondary {
		return fmt.Sprintf("secondary-%d", p.Slot)
	}
	return string(p.Category)
}

// ParseArticleFile reads a file produced by ExportArticle or written by hand.
func ParseArticleFile(content []byte) (*ArticleFile, error) {
	fm, body, format, err := ParseFrontMatter(content)
	if err != nil {
		return nil, err
	}

	f := &ArticleFile{Format: format}
	a := &f.Article
	a.ID = fmString(fm, "id")
	a.Title = fmString(fm, "title")
	a.Slug = fmString(fm, "slug")
	a.AuthorID = fmString(fm, "author_id")
	a.Excerpt = fmString(fm, "excerpt")
	a.MainImage = fmString(fm, "main_image")
	a.Type = models.ArticleType(fmString(fm, "type"))
	f.AuthorEmail = fmString(fm, "author_email")

	if a.PublishedAt, err = fmTime(fm, "published_at"); err != nil {
		return nil, err
	}
	if f.Placement, err = models.ParsePlacement(fmString(fm, "placement")); err != nil {
		return nil, err
	}

	if raw, ok := fm["content"]; ok && format == FormatJSON {
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("encode content: %w", err)
		}
		body = string(b)
	}
	if body != "" {
		if a.Content, err = models.NormalizeContent([]byte(body)); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func fmString(fm map[string]interface{}, key string) string {
	switch v := fm[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return fmt.Sprint(v)
	}
}

func fmTime(fm map[string]interface{}, key string) (time.Time, error) {
	switch v := fm[key].(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v.UTC(), nil
	case toml.LocalDateTime:
		return v.AsTime(time.UTC), nil
	case toml.LocalDate:
		return v.AsTime(time.UTC), nil
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("%s: unrecognised time %q", key, v)
	default:
		return time.Time{}, fmt.Errorf("%s: unexpected value %v", key, v)
	}
}
