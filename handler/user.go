package handler

import (
	"errors"
	"net/http"
	"strings"

	"blogdesk/auth"
	"blogdesk/domain"
	"blogdesk/gateway"

	"github.com/labstack/echo/v4"
)

type loginView struct {
	Page
	Email string
}

type signupView struct {
	Page
	Form domain.Signup
}

func (h *Handler) GetLoginForm(c echo.Context) error {
	return c.Render(http.StatusOK, "user-login.html", loginView{Page: h.page(c, "Login")})
}

func (h *Handler) Login(c echo.Context) error {
	creds := domain.Credentials{
		Email:    strings.TrimSpace(c.FormValue("email")),
		Password: c.FormValue("password"),
	}
	view := loginView{Page: h.page(c, "Login"), Email: creds.Email}

	if err := creds.Validate(); err != nil {
		var fe domain.FieldErrors
		if !errors.As(err, &fe) {
			return err
		}
		view.Errors = fe
		return c.Render(http.StatusUnprocessableEntity, "user-login.html", view)
	}

	res, err := h.api(c).Login(c.Request().Context(), creds)
	if err != nil {
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			view.Error = apiErr.Message
			if view.Error == "" {
				view.Error = "Invalid credentials"
			}
			return c.Render(http.StatusUnauthorized, "user-login.html", view)
		}
		return err
	}

	store := auth.FromContext(c)
	if !store.Login(res.AccessToken) {
		h.Logger.Sugar().Errorf("login for %s: %s", creds.Email, errSessionStart.Error())
		view.Error = "Login failed. Please try again."
		return c.Render(http.StatusBadGateway, "user-login.html", view)
	}

	session, _ := store.Session()
	if session.IsAdmin() {
		return c.Redirect(http.StatusFound, "/dashboard")
	}
	return c.Redirect(http.StatusFound, auth.LandingPath)
}

func (h *Handler) GetNewUserForm(c echo.Context) error {
	return c.Render(http.StatusOK, "user-signup.html", signupView{Page: h.page(c, "Sign up")})
}

func (h *Handler) NewUser(c echo.Context) error {
	form := domain.Signup{
		FirstName: strings.TrimSpace(c.FormValue("first_name")),
		LastName:  strings.TrimSpace(c.FormValue("last_name")),
		Email:     strings.TrimSpace(c.FormValue("email")),
		Password:  c.FormValue("password"),
	}
	view := signupView{Page: h.page(c, "Sign up"), Form: form}
	view.Form.Password = ""

	if err := form.Validate(); err != nil {
		var fe domain.FieldErrors
		if !errors.As(err, &fe) {
			return err
		}
		view.Errors = fe
		return c.Render(http.StatusUnprocessableEntity, "user-signup.html", view)
	}

	if err := h.api(c).Signup(c.Request().Context(), form); err != nil {
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			view.Error = apiErr.Message
			if view.Error == "" {
				view.Error = "Signup failed"
			}
			return c.Render(apiErr.Status, "user-signup.html", view)
		}
		return err
	}

	return c.Redirect(http.StatusFound, auth.LoginPath+"?notice=signed_up")
}

func (h *Handler) Logout(c echo.Context) error {
	auth.FromContext(c).Logout()
	return c.Redirect(http.StatusFound, auth.LoginPath)
}
