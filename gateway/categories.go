package gateway

import (
	"context"
	"fmt"
	"net/http"

	"blogdesk/domain"
)

const categoriesPath = "/categories/"

func categoryPath(id int64) string {
	return fmt.Sprintf("/categories/%d", id)
}

func (a *API) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	err := a.do(ctx, call{method: http.MethodGet, path: categoriesPath, auth: anonymous}, &categories)
	if err != nil {
		return nil, err
	}
	return categories, nil
}

func (a *API) CreateCategory(ctx context.Context, name string) (domain.Category, error) {
	return a.sendCategory(ctx, http.MethodPost, categoriesPath, name)
}

func (a *API) UpdateCategory(ctx context.Context, id int64, name string) (domain.Category, error) {
	return a.sendCategory(ctx, http.MethodPut, categoryPath(id), name)
}

func (a *API) DeleteCategory(ctx context.Context, id int64) error {
	return a.do(ctx, call{method: http.MethodDelete, path: categoryPath(id), auth: anonymous}, nil)
}

func (a *API) sendCategory(ctx context.Context, method, path, name string) (domain.Category, error) {
	body, err := jsonBody(domain.CategoryDraft{Name: name})
	if err != nil {
		return domain.Category{}, err
	}
	var category domain.Category
	err = a.do(ctx, call{
		method:      method,
		path:        path,
		body:        body,
		contentType: "application/json",
		auth:        anonymous,
	}, &category)
	if err != nil {
		return domain.Category{}, err
	}
	return category, nil
}
