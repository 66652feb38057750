// Package web embeds the server-rendered pages and static assets of the chat UI.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Views renders the embedded page templates.
type Views struct {
	tmpl *template.Template
}

// LoadViews parses every embedded template.
func LoadViews() (*Views, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Views{tmpl: tmpl}, nil
}

// Render executes the named page template into w.
func (v *Views) Render(w io.Writer, page string, data any) error {
	return v.tmpl.ExecuteTemplate(w, page, data)
}

// StaticHandler serves the embedded assets under /static/.
func StaticHandler() http.Handler {
	subFS, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(subFS)))
}
