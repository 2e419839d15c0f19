package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"blogdesk/auth"
	"blogdesk/domain"
	"blogdesk/gateway"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Handler struct {
	API           *gateway.Client
	Logger        *zap.Logger
	SecureCookies bool
}

// Register installs the middleware chain and every route of the frontend.
func (h *Handler) Register(e *echo.Echo) {
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			h.Logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			)
			return nil
		},
	}))
	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "form:" + csrfField,
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   h.SecureCookies,
		CookieSameSite: http.SameSiteLaxMode,
	}))
	e.Use(auth.Attach(h.SecureCookies))
	e.HTTPErrorHandler = h.ErrorHandler

	publicOnly := auth.PublicOnly(auth.LandingPath)
	anyRole := auth.Protected("")
	admin := auth.Protected(domain.RoleAdmin)

	e.GET("/", h.Landing)
	e.GET("/about", h.About)
	e.GET("/login", h.GetLoginForm, publicOnly)
	e.POST("/login", h.Login, publicOnly)
	e.GET("/signup", h.GetNewUserForm, publicOnly)
	e.POST("/signup", h.NewUser, publicOnly)
	e.GET("/logout", h.Logout)

	e.GET("/home", h.Home, anyRole)
	e.GET("/dashboard", h.Dashboard, admin)
	e.GET("/posts", h.Dashboard, admin)
	e.POST("/posts/:id/delete", h.DeletePost, admin)

	e.GET("/categories", h.GetCategories, admin)
	e.POST("/categories", h.NewCategory, admin)
	e.POST("/categories/:id", h.EditCategory, admin)
	e.POST("/categories/:id/delete", h.DeleteCategory, admin)

	e.GET("/post/create-post", h.GetNewPostForm, anyRole)
	e.POST("/post/create-post", h.NewPost, anyRole)
	e.GET("/post/:id", h.GetByID, anyRole)
	e.GET("/post/edit/:id", h.GetEditPostForm, anyRole)
	e.POST("/post/edit/:id", h.EditPost, anyRole)
}

func (h *Handler) api(c echo.Context) *gateway.API {
	return h.API.With(auth.FromContext(c))
}

// discarded reports whether the client went away while a backend call was in
// flight; its result must not be rendered.
func discarded(c echo.Context) error {
	return c.Request().Context().Err()
}

func paramID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, errInvalidID.Error())
	}
	return id, nil
}

// ErrorHandler turns handler errors into redirects or error pages.
func (h *Handler) ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}

	code := http.StatusInternalServerError
	msg := "Something went wrong. Please try again."
	var he *echo.HTTPError
	var apiErr *gateway.APIError
	var netErr *gateway.NetworkError
	switch {
	case errors.Is(err, gateway.ErrUnauthorized):
		if err := c.Redirect(http.StatusFound, auth.LoginPath); err != nil {
			h.Logger.Sugar().Errorf("failed to redirect: %s", err.Error())
		}
		return
	case errors.Is(err, gateway.ErrForbidden):
		if err := c.Redirect(http.StatusFound, auth.LandingPath); err != nil {
			h.Logger.Sugar().Errorf("failed to redirect: %s", err.Error())
		}
		return
	case errors.Is(err, gateway.ErrNotFound):
		code, msg = http.StatusNotFound, "Not found."
	case errors.As(err, &he):
		code = he.Code
		msg = http.StatusText(code)
		if s, ok := he.Message.(string); ok && code < 500 {
			msg = s
		}
	case errors.As(err, &apiErr), errors.As(err, &netErr):
		code = http.StatusBadGateway
		msg = "The blog service is unavailable. Please try again later."
	}

	if code >= 500 {
		h.Logger.Sugar().Errorf("%s %s: %s", c.Request().Method, c.Request().URL.Path, err.Error())
	}
	data := struct {
		Page
		Code    int
		Message string
	}{h.page(c, http.StatusText(code)), code, msg}
	if rerr := c.Render(code, "error.html", data); rerr != nil {
		h.Logger.Sugar().Errorf("failed to render error page: %s", rerr.Error())
		_ = c.String(code, msg)
	}
}
