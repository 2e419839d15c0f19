package domain

import (
	"io"
	"strings"
)

type Post struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Body        string    `json:"body"`
	CategoryID  int64     `json:"category_id"`
	Category    *string   `json:"category,omitempty"`
	IsPrivate   bool      `json:"is_private"`
	ImageURL    *string   `json:"image_url,omitempty"`
	CreatedAt   Timestamp `json:"created_at"`
	UpdatedAt   Timestamp `json:"updated_at"`
}

// CategoryName returns the resolved category name or "Uncategorized".
func (p Post) CategoryName() string {
	if p.Category == nil || *p.Category == "" {
		return "Uncategorized"
	}
	return *p.Category
}

// Attachment is a file picked in a post form, not yet uploaded.
type Attachment struct {
	Filename string
	Content  io.Reader
}

// PostDraft is the uncommitted state of a create or edit form.
type PostDraft struct {
	Title       string
	Description string
	Body        string
	CategoryID  int64
	IsPrivate   bool
	Image       *Attachment
}

func DraftFromPost(p Post) PostDraft {
	return PostDraft{
		Title:       p.Title,
		Description: p.Description,
		Body:        p.Body,
		CategoryID:  p.CategoryID,
		IsPrivate:   p.IsPrivate,
	}
}

func (d PostDraft) Validate() error {
	errs := FieldErrors{}
	if strings.TrimSpace(d.Title) == "" {
		errs["title"] = "Post title is required"
	}
	if strings.TrimSpace(d.Description) == "" {
		errs["description"] = "Description is required"
	}
	if strings.TrimSpace(d.Body) == "" {
		errs["body"] = "Content is required"
	}
	if d.CategoryID <= 0 {
		errs["category_id"] = "Please select a category"
	}
	return errs.OrNil()
}

// Patch turns a validated draft into a full update.
func (d PostDraft) Patch() PostPatch {
	return PostPatch{
		Title:       &d.Title,
		Description: &d.Description,
		Body:        &d.Body,
		CategoryID:  &d.CategoryID,
		IsPrivate:   &d.IsPrivate,
		Image:       d.Image,
	}
}

// PostPatch carries a partial update; nil fields are left untouched by the backend.
type PostPatch struct {
	Title       *string
	Description *string
	Body        *string
	CategoryID  *int64
	IsPrivate   *bool
	Image       *Attachment
}
