package handler

import (
	"errors"
	"html/template"
	"io"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
)

var pages = []string{
	"index.html",
	"about.html",
	"user-login.html",
	"user-signup.html",
	"home.html",
	"dashboard.html",
	"categories.html",
	"post-view.html",
	"post-form.html",
	"error.html",
}

type TemplateRegistry struct {
	templates map[string]*template.Template
}

func NewTemplateRegistry(dir string) (*TemplateRegistry, error) {
	funcs := template.FuncMap{
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(time.DateOnly)
		},
		// plain strips markup; the policy's output is already escaped text.
		"plain": func(s string) template.HTML { return template.HTML(sanitizerStrict.Sanitize(s)) },
	}
	t := map[string]*template.Template{}
	for _, page := range pages {
		tmpl, err := template.New("").Funcs(funcs).ParseFiles(
			filepath.Join(dir, "base.html"),
			filepath.Join(dir, page),
		)
		if err != nil {
			return nil, err
		}
		t[page] = tmpl
	}
	return &TemplateRegistry{templates: t}, nil
}

func (t *TemplateRegistry) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	tmpl, ok := t.templates[name]
	if !ok {
		err := errors.New("template not found: " + name)
		return err
	}

	return tmpl.ExecuteTemplate(w, "base.html", data)
}
