// Package devapi is a development implementation of the blog backend REST
// API. It serves local development and the end-to-end tests of the frontend.
package devapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"blogdesk/domain"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Config struct {
	UploadsDir    string
	Secret        string
	TokenTTL      time.Duration
	AdminEmail    string
	AdminPassword string
}

type Server struct {
	store  *Store
	cfg    Config
	logger *zap.Logger
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
}

type response map[string]string

func detail(msg string) response {
	return response{"detail": msg}
}

func New(ctx context.Context, store *Store, cfg Config, logger *zap.Logger) (*Server, error) {
	if cfg.Secret == "" {
		return nil, errors.New("no secret defined")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.UploadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating uploads dir: %w", err)
	}
	s := &Server{store: store, cfg: cfg, logger: logger}
	if err := s.seedAdmin(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) seedAdmin(ctx context.Context) error {
	if s.cfg.AdminEmail == "" || s.cfg.AdminPassword == "" {
		return nil
	}
	hash, err := hashPassword(s.cfg.AdminPassword)
	if err != nil {
		return err
	}
	_, err = s.store.createUser(ctx, user{
		FirstName: "Admin",
		LastName:  "Admin",
		Email:     s.cfg.AdminEmail,
		Password:  hash,
		Role:      domain.RoleAdmin,
	})
	if err != nil && !errors.Is(err, errDuplicate) {
		return fmt.Errorf("seeding admin: %w", err)
	}
	return nil
}

func (s *Server) Routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("devapi request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
			)
			return nil
		},
	}))
	e.HTTPErrorHandler = s.errorHandler

	e.POST("/signup", s.signup)
	e.POST("/login", s.login)

	e.GET("/categories/", s.listCategories)
	e.POST("/categories/", s.createCategory)
	e.PUT("/categories/:id", s.updateCategory)
	e.DELETE("/categories/:id", s.deleteCategory)

	e.GET("/posts/", s.listPosts)
	e.GET("/posts/:id", s.getPost)
	e.POST("/posts/", s.createPost, s.requireToken())
	e.PUT("/posts/:id", s.updatePost, s.requireToken())
	e.DELETE("/posts/:id", s.deletePost, s.requireToken(), s.requireAdmin)

	e.Static("/uploads", s.cfg.UploadsDir)
	return e
}

func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := "internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	} else {
		s.logger.Sugar().Errorf("%s %s: %s", c.Request().Method, c.Path(), err.Error())
	}
	_ = c.JSON(code, detail(msg))
}

func (s *Server) signup(c echo.Context) error {
	var in domain.Signup
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, detail("invalid body"))
	}
	if err := in.Validate(); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, detail(err.Error()))
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return err
	}
	_, err = s.store.createUser(c.Request().Context(), user{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Password:  hash,
		Role:      domain.RoleUser,
	})
	if errors.Is(err, errDuplicate) {
		return c.JSON(http.StatusBadRequest, detail("Email already registered"))
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, response{
		"first_name": in.FirstName,
		"last_name":  in.LastName,
		"email":      in.Email,
	})
}

func (s *Server) login(c echo.Context) error {
	var in domain.Credentials
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, detail("invalid body"))
	}
	u, err := s.store.userByEmail(c.Request().Context(), in.Email)
	if errors.Is(err, errNotFound) || (err == nil && !checkPassword(u.Password, in.Password)) {
		return c.JSON(http.StatusUnauthorized, detail("Invalid credentials"))
	}
	if err != nil {
		return err
	}
	token, err := s.issueToken(u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, domain.LoginResult{AccessToken: token, Role: u.Role})
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid id")
	}
	return id, nil
}

func (s *Server) listCategories(c echo.Context) error {
	categories, err := s.store.categories(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, categories)
}

func (s *Server) createCategory(c echo.Context) error {
	var in domain.CategoryDraft
	if err := c.Bind(&in); err != nil || in.Validate() != nil {
		return c.JSON(http.StatusUnprocessableEntity, detail("name is required"))
	}
	category, err := s.store.createCategory(c.Request().Context(), in.Name)
	if errors.Is(err, errDuplicate) {
		return c.JSON(http.StatusBadRequest, detail("Category already exists"))
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, category)
}

func (s *Server) updateCategory(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var in domain.CategoryDraft
	if err := c.Bind(&in); err != nil || in.Validate() != nil {
		return c.JSON(http.StatusUnprocessableEntity, detail("name is required"))
	}
	category, err := s.store.updateCategory(c.Request().Context(), id, in.Name)
	switch {
	case errors.Is(err, errNotFound):
		return c.JSON(http.StatusNotFound, detail("Category not found"))
	case errors.Is(err, errDuplicate):
		return c.JSON(http.StatusBadRequest, detail("Category already exists"))
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, category)
}

func (s *Server) deleteCategory(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	err = s.store.deleteCategory(c.Request().Context(), id)
	if errors.Is(err, errNotFound) {
		return c.JSON(http.StatusNotFound, detail("Category not found"))
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, response{"message": "Category deleted successfully"})
}

func (s *Server) listPosts(c echo.Context) error {
	posts, err := s.store.posts(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, posts)
}

func (s *Server) getPost(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	post, err := s.store.post(c.Request().Context(), id)
	if errors.Is(err, errNotFound) {
		return c.JSON(http.StatusNotFound, detail("Post not found"))
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func (s *Server) createPost(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return c.JSON(http.StatusBadRequest, detail("invalid form"))
	}
	var p domain.Post
	if err := applyForm(&p, form, true); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, detail(err.Error()))
	}
	if err := s.checkCategory(c, p.CategoryID); err != nil {
		return err
	}
	if err := s.saveImage(c, &p); err != nil {
		return err
	}
	created, err := s.store.createPost(c.Request().Context(), p, claimsOf(c).Subject)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, created)
}

func (s *Server) updatePost(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := s.store.post(ctx, id)
	if errors.Is(err, errNotFound) {
		return c.JSON(http.StatusNotFound, detail("Post not found"))
	}
	if err != nil {
		return err
	}
	form, err := c.FormParams()
	if err != nil {
		return c.JSON(http.StatusBadRequest, detail("invalid form"))
	}
	if err := applyForm(&p, form, false); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, detail(err.Error()))
	}
	if err := s.checkCategory(c, p.CategoryID); err != nil {
		return err
	}
	if err := s.saveImage(c, &p); err != nil {
		return err
	}
	updated, err := s.store.updatePost(ctx, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) deletePost(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	err = s.store.deletePost(c.Request().Context(), id)
	if errors.Is(err, errNotFound) {
		return c.JSON(http.StatusNotFound, detail("Post not found"))
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, response{"message": "Post deleted successfully"})
}

func (s *Server) checkCategory(c echo.Context, id int64) error {
	ok, err := s.store.categoryExists(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if !ok {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "category does not exist")
	}
	return nil
}

// applyForm copies the submitted fields onto p. With required set every
// field but is_private must be present.
func applyForm(p *domain.Post, form map[string][]string, required bool) error {
	text := map[string]*string{"title": &p.Title, "description": &p.Description, "body": &p.Body}
	for name, dst := range text {
		v, ok := form[name]
		if !ok || len(v) == 0 {
			if required {
				return fmt.Errorf("%s is required", name)
			}
			continue
		}
		*dst = v[0]
	}
	if v, ok := form["category_id"]; ok && len(v) > 0 {
		id, err := strconv.ParseInt(v[0], 10, 64)
		if err != nil {
			return errors.New("category_id must be an integer")
		}
		p.CategoryID = id
	} else if required {
		return errors.New("category_id is required")
	}
	if v, ok := form["is_private"]; ok && len(v) > 0 {
		private, err := strconv.ParseBool(v[0])
		if err != nil {
			return errors.New("is_private must be a boolean")
		}
		p.IsPrivate = private
	}
	return nil
}

func (s *Server) saveImage(c echo.Context, p *domain.Post) error {
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid image upload")
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !imageExtensions[ext] {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "file must be an image")
	}

	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(s.cfg.UploadsDir, name))
	if err != nil {
		return fmt.Errorf("creating upload: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("writing upload: %w", err)
	}

	url := "/uploads/" + name
	p.ImageURL = &url
	return nil
}
