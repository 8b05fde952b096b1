package services

import (
	"bytes"
	"fmt"
	"html/template"

	"wingspan/pkg/models"
)

// inline is the common shape of every styled span in a document.
type inline struct {
	Text  string
	Style string
	Link  string
}

func newInline(text, style, link string) inline {
	return inline{Text: text, Style: style, Link: link}
}

const documentHTML = `
{{- define "style" -}}
{{- if eq .Style "bold"}}<strong>{{.Text}}</strong>
{{- else if eq .Style "italic"}}<em>{{.Text}}</em>
{{- else if eq .Style "underline"}}<u>{{.Text}}</u>
{{- else if eq .Style "strikethrough"}}<s>{{.Text}}</s>
{{- else}}{{.Text}}{{end -}}
{{- end -}}

{{- define "inline" -}}
{{- if .Link}}<a href="{{.Link}}" target="_blank" class="text-blue-500 underline">{{template "style" .}}</a>
{{- else}}{{template "style" .}}{{end -}}
{{- end -}}

{{- define "runs" -}}
{{- range .}}{{template "inline" (inline .Content .Style .Link)}} {{end -}}
{{- end -}}

{{- define "quote" -}}
{{.Text}} - <cite>{{.Source}}</cite>
{{- end -}}

{{- with .MainImage -}}
<div class="image-container my-6 text-center"><img src="{{.}}" alt="{{$.Title.Text}}" class="rounded-lg mb-4 mx-auto max-w-full h-auto" /></div>
{{- end -}}
<h1 class="text-4xl font-bold mb-6">{{template "inline" (inline .Title.Text .Title.Style "")}}</h1>
<p class="text-xl italic mb-6">{{template "inline" (inline .Location.Text .Location.Style "")}}</p>
<p class="text-xl mb-8">{{.Intro.Text}}</p>
{{- range .Sections -}}
<h2 class="text-2xl font-semibold mt-12 mb-6">{{template "inline" (inline .Heading.Text .Heading.Style "")}}</h2>
{{- range .Subsections -}}
<h3 class="text-xl font-semibold mt-10 mb-4">{{template "inline" (inline .Subheading.Text .Subheading.Style "")}}</h3>
{{- range .Content -}}
<p class="mb-6 text-xl"><strong>{{.Set}}:</strong> {{template "runs" .Text}}</p>
{{- end -}}
{{- end -}}
{{- range .Players -}}
<h3 class="text-xl font-semibold mt-10 mb-4">{{template "inline" (inline .Name.Text .Name.Style "")}}</h3>
{{- with .Performance -}}
<p class="mb-6 text-xl">{{template "runs" .Text}}</p>
{{- end -}}
{{- with .Quote -}}
<blockquote class="border-l-4 border-gray-300 pl-4 my-6 italic text-gray-700 dark:text-gray-300 text-lg">{{template "quote" .}}</blockquote>
{{- end -}}
{{- end -}}
{{- range .Content -}}
<p class="mb-6 text-xl">{{template "inline" (inline .Content .Style .Link)}}</p>
{{- end -}}
{{- range .Images -}}
<div class="image-container my-8 text-center"><img src="{{.Src}}" alt="{{.Alt}}" class="rounded-lg mx-auto max-w-full h-auto" />
{{- with .Caption}}<figcaption class="mt-2 italic text-sm text-gray-600 dark:text-gray-400">{{.}}</figcaption>{{end -}}
</div>
{{- end -}}
{{- with .Quote -}}
<blockquote class="border-l-4 border-gray-300 pl-4 my-8 italic text-gray-700 dark:text-gray-300">{{template "quote" .}}</blockquote>
{{- end -}}
{{- with .AdditionalInfo}}{{with .Link -}}
<p class="mt-8 text-blue-500 underline">{{template "inline" (inline .Text "" .URL)}}</p>
{{- end}}{{end -}}
{{- end -}}
`

var documentTemplate = template.Must(template.New("document").
	Funcs(template.FuncMap{"inline": newInline}).
	Parse(documentHTML))

// RenderDocument turns an article body into HTML. Text and attributes are
// escaped and unsafe link schemes are replaced.
func RenderDocument(doc *models.Document) (template.HTML, error) {
	if doc == nil {
		return "", models.ErrEmptyDocument
	}
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("render document: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// RenderArticle decodes and renders the stored body of a.
func RenderArticle(a models.Article) (template.HTML, error) {
	doc, err := a.Document()
	if err != nil {
		return "", err
	}
	return RenderDocument(doc)
}
