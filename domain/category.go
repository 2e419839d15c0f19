package domain

import "strings"

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type CategoryDraft struct {
	Name string `json:"name"`
}

func (d CategoryDraft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return FieldErrors{"name": "Category name is required"}
	}
	return nil
}
