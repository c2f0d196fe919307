package view

import (
	"embed"
	"html/template"
	"io"
)

//go:embed templates/*.html.tmpl
var templatesFS embed.FS

// Page собирает данные для полной страницы.
type Page struct {
	Board            Board
	OrderFeedback    *Feedback
	CompleteFeedback *Feedback
	ConfirmClear     bool
	Version          string
}

// PageRenderer исполняет HTML-шаблон страницы.
type PageRenderer struct {
	tmpl *template.Template
}

// NewPageRenderer разбирает встроенные шаблоны.
func NewPageRenderer() (*PageRenderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, err
	}
	return &PageRenderer{tmpl: tmpl}, nil
}

// Render пишет страницу в w.
func (p *PageRenderer) Render(w io.Writer, page Page) error {
	return p.tmpl.ExecuteTemplate(w, "page", page)
}
