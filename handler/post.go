package handler

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"blogdesk/domain"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/labstack/echo/v4"
	"github.com/microcosm-cc/bluemonday"
)

var sanitizerStrict = bluemonday.StrictPolicy()

type postsView struct {
	Page
	Posts []domain.Post
}

type postView struct {
	Page
	Post domain.Post
	Body template.HTML
}

type postFormView struct {
	Page
	Action     string
	PostID     int64
	Draft      domain.PostDraft
	Categories []domain.Category
}

func (h *Handler) Landing(c echo.Context) error {
	return c.Render(http.StatusOK, "index.html", h.page(c, "Welcome"))
}

func (h *Handler) About(c echo.Context) error {
	return c.Render(http.StatusOK, "about.html", h.page(c, "About"))
}

func (h *Handler) Home(c echo.Context) error {
	return h.renderPosts(c, "home.html", "Posts")
}

func (h *Handler) Dashboard(c echo.Context) error {
	return h.renderPosts(c, "dashboard.html", "Posts Dashboard")
}

func (h *Handler) renderPosts(c echo.Context, name, title string) error {
	posts, err := h.api(c).ListPosts(c.Request().Context())
	if err != nil {
		return err
	}
	if err := discarded(c); err != nil {
		return err
	}
	return c.Render(http.StatusOK, name, postsView{Page: h.page(c, title), Posts: posts})
}

func (h *Handler) GetByID(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	post, err := h.api(c).GetPost(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if err := discarded(c); err != nil {
		return err
	}
	return c.Render(http.StatusOK, "post-view.html", postView{
		Page: h.page(c, post.Title),
		Post: post,
		Body: safeMd(post.Body),
	})
}

func (h *Handler) DeletePost(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.api(c).DeletePost(c.Request().Context(), id); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, "/dashboard?notice=post_deleted")
}

func (h *Handler) GetNewPostForm(c echo.Context) error {
	categories, err := h.api(c).ListCategories(c.Request().Context())
	if err != nil {
		return err
	}
	if err := discarded(c); err != nil {
		return err
	}
	return c.Render(http.StatusOK, "post-form.html", postFormView{
		Page:       h.page(c, "Create Post"),
		Action:     "/post/create-post",
		Categories: categories,
	})
}

func (h *Handler) NewPost(c echo.Context) error {
	view := postFormView{Page: h.page(c, "Create Post"), Action: "/post/create-post"}
	draft, closeImage, err := h.bindDraft(c, &view)
	if err != nil || closeImage == nil {
		return err
	}
	defer closeImage()

	post, err := h.api(c).CreatePost(c.Request().Context(), draft)
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, fmt.Sprintf("/post/%d", post.ID))
}

func (h *Handler) GetEditPostForm(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	api := h.api(c)
	post, err := api.GetPost(ctx, id)
	if err != nil {
		return err
	}
	categories, err := api.ListCategories(ctx)
	if err != nil {
		return err
	}
	if err := discarded(c); err != nil {
		return err
	}
	return c.Render(http.StatusOK, "post-form.html", postFormView{
		Page:       h.page(c, "Editing "+post.Title),
		Action:     fmt.Sprintf("/post/edit/%d", id),
		PostID:     id,
		Draft:      domain.DraftFromPost(post),
		Categories: categories,
	})
}

func (h *Handler) EditPost(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	view := postFormView{
		Page:   h.page(c, "Edit Post"),
		Action: fmt.Sprintf("/post/edit/%d", id),
		PostID: id,
	}
	draft, closeImage, err := h.bindDraft(c, &view)
	if err != nil || closeImage == nil {
		return err
	}
	defer closeImage()

	if _, err := h.api(c).UpdatePost(c.Request().Context(), id, draft.Patch()); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, fmt.Sprintf("/post/%d", id))
}

// bindDraft reads the post form. When the draft is invalid it renders the
// form again with field errors and returns a nil close func; nothing is sent
// to the backend in that case.
func (h *Handler) bindDraft(c echo.Context, view *postFormView) (domain.PostDraft, func(), error) {
	categoryID, _ := strconv.ParseInt(c.FormValue("category_id"), 10, 64)
	draft := domain.PostDraft{
		Title:       strings.TrimSpace(c.FormValue("title")),
		Description: strings.TrimSpace(c.FormValue("description")),
		Body:        c.FormValue("body"),
		CategoryID:  categoryID,
		IsPrivate:   c.FormValue("is_private") == "on" || c.FormValue("is_private") == "true",
	}

	if err := draft.Validate(); err != nil {
		var fe domain.FieldErrors
		if !errors.As(err, &fe) {
			return draft, nil, err
		}
		view.Draft = draft
		view.Errors = fe
		view.Categories = categoryOptions(c)
		return draft, nil, c.Render(http.StatusUnprocessableEntity, "post-form.html", view)
	}

	closeImage := func() {}
	fh, err := c.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	case err != nil:
		return draft, nil, echo.NewHTTPError(http.StatusBadRequest, "invalid image upload")
	case fh.Filename != "":
		f, err := fh.Open()
		if err != nil {
			return draft, nil, err
		}
		draft.Image = &domain.Attachment{Filename: fh.Filename, Content: f}
		closeImage = func() { f.Close() }
	}
	return draft, closeImage, nil
}

// categoryOptions rebuilds the category select from the hidden fields the
// form carries, so a failed validation does not need the backend.
func categoryOptions(c echo.Context) []domain.Category {
	form, err := c.FormParams()
	if err != nil {
		return nil
	}
	var categories []domain.Category
	for _, opt := range form["category_option"] {
		rawID, name, ok := strings.Cut(opt, ":")
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			continue
		}
		categories = append(categories, domain.Category{ID: id, Name: name})
	}
	return categories
}

func mdToHTML(md string) []byte {
	// create markdown parser with extensions
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(md))

	// create HTML renderer with extensions
	htmlFlags := html.CommonFlags | html.HrefTargetBlank
	opts := html.RendererOptions{Flags: htmlFlags}
	renderer := html.NewRenderer(opts)

	return markdown.Render(doc, renderer)
}

func safeMd(content string) template.HTML {
	return template.HTML(bluemonday.UGCPolicy().SanitizeBytes(mdToHTML(content)))
}
