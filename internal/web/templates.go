// Package web renders the server-side HTML pages.
package web

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "layout.html"

// Templates holds every page parsed on top of its own clone of the layout so
// each page can {{define "content"}} without colliding.
type Templates struct {
	pages map[string]*template.Template
}

var funcMap = template.FuncMap{
	"json": func(v any) (template.JS, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return template.JS(b), nil
	},
}

// LoadTemplates parses the embedded templates.
func LoadTemplates() (*Templates, error) {
	return loadFrom(templateFS, "templates")
}

func loadFrom(fsys fs.FS, dir string) (*Templates, error) {
	base, err := template.New("base").Funcs(funcMap).ParseFS(fsys, path.Join(dir, layoutFile))
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	files, err := fs.Glob(fsys, path.Join(dir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("glob templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(files))
	for _, f := range files {
		name := path.Base(f)
		if name == layoutFile {
			continue
		}
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(fsys, f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = clone
	}
	return &Templates{pages: pages}, nil
}

// Render implements echo.Renderer. name is the page file name.
func (t *Templates) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := t.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}
