package auth

import (
	"net/http"
	"time"

	"blogdesk/domain"

	"github.com/labstack/echo/v4"
)

// TokenCookie is the well-known key under which the bearer token is kept.
const TokenCookie = "access_token"

// TokenStore persists the raw bearer token between requests.
type TokenStore interface {
	Load() (string, bool)
	Save(token string, expires time.Time)
	Clear()
}

// Store is the session of one client. Login and Logout are its only writers.
type Store struct {
	tokens  TokenStore
	now     func() time.Time
	token   string
	session *domain.Session
}

func NewStore(tokens TokenStore) *Store {
	return &Store{tokens: tokens, now: time.Now}
}

// Initialize restores the session from the persisted token. An unusable
// token is dropped so the client does not keep sending it.
func (s *Store) Initialize() {
	s.token, s.session = "", nil
	raw, ok := s.tokens.Load()
	if !ok {
		return
	}
	if !ValidAt(raw, s.now()) {
		s.tokens.Clear()
		return
	}
	p, _ := Decode(raw)
	s.set(raw, p)
}

// Login persists token and switches the session to its subject. A token that
// does not decode or carries no subject is ignored.
func (s *Store) Login(token string) bool {
	p, ok := Decode(token)
	if !ok || p.Subject == "" {
		return false
	}
	s.tokens.Save(token, p.ExpiresAt)
	s.set(token, p)
	return true
}

// Logout forgets the token and the session.
func (s *Store) Logout() {
	s.tokens.Clear()
	s.token, s.session = "", nil
}

func (s *Store) set(token string, p Payload) {
	role := domain.Role(p.Role)
	if role == "" {
		role = domain.RoleUser
	}
	s.token = token
	s.session = &domain.Session{Email: p.Subject, Role: role}
}

func (s *Store) Session() (domain.Session, bool) {
	if s.session == nil {
		return domain.Session{}, false
	}
	return *s.session, true
}

func (s *Store) Authenticated() bool {
	return s.session != nil
}

// Token returns the bearer token of the current session, or "".
func (s *Store) Token() string {
	return s.token
}

// CookieTokens keeps the token in an HttpOnly cookie on the echo context.
type CookieTokens struct {
	Ctx    echo.Context
	Secure bool
}

func (t CookieTokens) Load() (string, bool) {
	cookie, err := t.Ctx.Cookie(TokenCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (t CookieTokens) Save(token string, expires time.Time) {
	cookie := t.cookie()
	cookie.Value = token
	cookie.Expires = expires
	t.Ctx.SetCookie(cookie)
}

func (t CookieTokens) Clear() {
	cookie := t.cookie()
	cookie.Expires = time.Unix(0, 0)
	cookie.MaxAge = -1
	t.Ctx.SetCookie(cookie)
}

func (t CookieTokens) cookie() *http.Cookie {
	return &http.Cookie{
		Name:     TokenCookie,
		Path:     "/",
		HttpOnly: true,
		Secure:   t.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
