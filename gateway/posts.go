package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strconv"

	"blogdesk/domain"
)

const postsPath = "/posts/"

func postPath(id int64) string {
	return fmt.Sprintf("/posts/%d", id)
}

func (a *API) ListPosts(ctx context.Context) ([]domain.Post, error) {
	var posts []domain.Post
	err := a.do(ctx, call{method: http.MethodGet, path: postsPath, auth: optionalBearer}, &posts)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		a.normalize(&posts[i])
	}
	return posts, nil
}

func (a *API) GetPost(ctx context.Context, id int64) (domain.Post, error) {
	var post domain.Post
	err := a.do(ctx, call{method: http.MethodGet, path: postPath(id), auth: optionalBearer}, &post)
	if err != nil {
		return domain.Post{}, err
	}
	a.normalize(&post)
	return post, nil
}

// CreatePost submits draft as a multipart form. The draft is expected to be
// validated by the caller.
func (a *API) CreatePost(ctx context.Context, draft domain.PostDraft) (domain.Post, error) {
	return a.sendPost(ctx, http.MethodPost, postsPath, draft.Patch())
}

// UpdatePost sends only the fields set in patch.
func (a *API) UpdatePost(ctx context.Context, id int64, patch domain.PostPatch) (domain.Post, error) {
	return a.sendPost(ctx, http.MethodPut, postPath(id), patch)
}

func (a *API) DeletePost(ctx context.Context, id int64) error {
	return a.do(ctx, call{method: http.MethodDelete, path: postPath(id), auth: requiredBearer}, nil)
}

func (a *API) sendPost(ctx context.Context, method, path string, patch domain.PostPatch) (domain.Post, error) {
	body, contentType, err := postForm(patch)
	if err != nil {
		return domain.Post{}, fmt.Errorf("encoding post form: %w", err)
	}
	var post domain.Post
	err = a.do(ctx, call{
		method:      method,
		path:        path,
		body:        body,
		contentType: contentType,
		auth:        requiredBearer,
	}, &post)
	if err != nil {
		return domain.Post{}, err
	}
	a.normalize(&post)
	return post, nil
}

func (a *API) normalize(p *domain.Post) {
	if p.ImageURL == nil {
		return
	}
	if *p.ImageURL == "" {
		p.ImageURL = nil
		return
	}
	abs := a.client.AbsoluteURL(*p.ImageURL)
	p.ImageURL = &abs
}

func postForm(patch domain.PostPatch) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct {
		name  string
		value *string
	}{
		{"title", patch.Title},
		{"description", patch.Description},
		{"body", patch.Body},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		if err := w.WriteField(f.name, *f.value); err != nil {
			return nil, "", err
		}
	}
	if patch.CategoryID != nil {
		if err := w.WriteField("category_id", strconv.FormatInt(*patch.CategoryID, 10)); err != nil {
			return nil, "", err
		}
	}
	if patch.IsPrivate != nil {
		if err := w.WriteField("is_private", strconv.FormatBool(*patch.IsPrivate)); err != nil {
			return nil, "", err
		}
	}
	if img := patch.Image; img != nil && img.Content != nil {
		if err := writeImage(w, img); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func writeImage(w *multipart.Writer, img *domain.Attachment) error {
	contentType := mime.TypeByExtension(filepath.Ext(img.Filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filepath.Base(img.Filename)))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, img.Content)
	return err
}
