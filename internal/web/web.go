// Package web holds the embedded page templates and static assets.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/redmonkez12/bookshelf/internal/httputil"
	"github.com/redmonkez12/bookshelf/internal/logging"
	"github.com/redmonkez12/bookshelf/internal/user"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// DefaultProfilePicture is shown until a user uploads a picture
const DefaultProfilePicture = "/static/images/default-profile.svg"

// Page is the data every template receives
type Page struct {
	Title   string
	Message string
	User    *user.User
	Data    any
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.Format("2006-01-02")
	},
	"price": func(p float64) string {
		return fmt.Sprintf("%.2f", p)
	},
	"add": func(a, b int) int { return a + b },
	"sub": func(a, b int) int { return a - b },
}

// Renderer executes a page template inside the shared layout
type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	entries, err := fs.Glob(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	pages := make(map[string]*template.Template)
	for _, entry := range entries {
		name := entry[len("templates/") : len(entry)-len(".html")]
		if name == "layout" {
			continue
		}

		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templatesFS, "templates/layout.html", entry)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &Renderer{pages: pages}, nil
}

// Render writes page name with status 200. Rendering happens into a buffer
// so a template failure never leaves a half-written page.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, name string, page Page) {
	logger := logging.GetLoggerFromContext(r.Context())

	tmpl, ok := rd.pages[name]
	if !ok {
		logger.Error("unknown template", "template", name)
		httputil.ServerError(w)
		return
	}

	if page.Message == "" {
		page.Message = httputil.Flash(r)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", page); err != nil {
		logger.Error("failed to render template", "template", name, "error", err)
		httputil.ServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// StaticHandler serves the embedded assets under /static/
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
