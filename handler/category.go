package handler

import (
	"errors"
	"net/http"
	"strings"

	"blogdesk/domain"

	"github.com/labstack/echo/v4"
)

type categoriesView struct {
	Page
	Categories []domain.Category
	Name       string
	EditingID  int64
}

func (h *Handler) GetCategories(c echo.Context) error {
	view := categoriesView{Page: h.page(c, "Categories")}
	return h.renderCategories(c, http.StatusOK, view)
}

func (h *Handler) renderCategories(c echo.Context, code int, view categoriesView) error {
	categories, err := h.api(c).ListCategories(c.Request().Context())
	if err != nil {
		return err
	}
	if err := discarded(c); err != nil {
		return err
	}
	view.Categories = categories
	return c.Render(code, "categories.html", view)
}

func (h *Handler) NewCategory(c echo.Context) error {
	draft := domain.CategoryDraft{Name: strings.TrimSpace(c.FormValue("name"))}
	if err := draft.Validate(); err != nil {
		return h.invalidCategory(c, err, draft, 0)
	}
	if _, err := h.api(c).CreateCategory(c.Request().Context(), draft.Name); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, "/categories?notice=category_saved")
}

func (h *Handler) EditCategory(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	draft := domain.CategoryDraft{Name: strings.TrimSpace(c.FormValue("name"))}
	if err := draft.Validate(); err != nil {
		return h.invalidCategory(c, err, draft, id)
	}
	if _, err := h.api(c).UpdateCategory(c.Request().Context(), id, draft.Name); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, "/categories?notice=category_saved")
}

func (h *Handler) DeleteCategory(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.api(c).DeleteCategory(c.Request().Context(), id); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, "/categories?notice=category_deleted")
}

// invalidCategory shows the list again with the field error. Only the list is
// fetched; the rejected write never reaches the backend.
func (h *Handler) invalidCategory(c echo.Context, err error, draft domain.CategoryDraft, id int64) error {
	var fe domain.FieldErrors
	if !errors.As(err, &fe) {
		return err
	}
	view := categoriesView{Page: h.page(c, "Categories"), Name: draft.Name, EditingID: id}
	view.Errors = fe
	return h.renderCategories(c, http.StatusUnprocessableEntity, view)
}
