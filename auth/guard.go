package auth

import (
	"net/http"
	"time"

	"blogdesk/domain"

	"github.com/labstack/echo/v4"
)

const (
	LoginPath   = "/login"
	LandingPath = "/home"

	storeKey = "session-store"
)

// Attach builds the session store of every request from its token cookie.
func Attach(secure bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s := NewStore(CookieTokens{Ctx: c, Secure: secure})
			s.Initialize()
			c.Set(storeKey, s)
			return next(c)
		}
	}
}

// FromContext returns the store installed by Attach. Without one it returns
// an empty store that persists nothing.
func FromContext(c echo.Context) *Store {
	if s, ok := c.Get(storeKey).(*Store); ok {
		return s
	}
	return NewStore(discard{})
}

// PublicOnly sends clients that already hold a session to landing.
func PublicOnly(landing string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if FromContext(c).Authenticated() {
				return c.Redirect(http.StatusFound, landing)
			}
			return next(c)
		}
	}
}

// Protected lets through clients with a session and, when role is not empty,
// the matching role. A role mismatch is a soft redirect to the landing page.
func Protected(role domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session, ok := FromContext(c).Session()
			if !ok {
				return c.Redirect(http.StatusFound, LoginPath)
			}
			if role != "" && session.Role != role {
				return c.Redirect(http.StatusFound, LandingPath)
			}
			return next(c)
		}
	}
}

type discard struct{}

func (discard) Load() (string, bool)   { return "", false }
func (discard) Save(string, time.Time) {}
func (discard) Clear()                 {}
