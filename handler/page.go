package handler

import (
	"blogdesk/auth"
	"blogdesk/domain"

	"github.com/labstack/echo/v4"
)

const csrfField = "csrf"

var notices = map[string]string{
	"signed_up":        "Signup successful. Please log in.",
	"post_deleted":     "Post deleted successfully.",
	"category_saved":   "Category saved.",
	"category_deleted": "Category deleted.",
}

// Page is the part of every template's data that base.html reads.
type Page struct {
	Title   string
	Session *domain.Session
	CSRF    string
	Notice  string
	Error   string
	Errors  domain.FieldErrors
}

func (h *Handler) page(c echo.Context, title string) Page {
	p := Page{Title: title, Notice: notices[c.QueryParam("notice")]}
	if s, ok := auth.FromContext(c).Session(); ok {
		p.Session = &s
	}
	if token, ok := c.Get("csrf").(string); ok {
		p.CSRF = token
	}
	return p
}
