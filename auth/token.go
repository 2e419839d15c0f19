// Package auth holds the client side of authentication: decoding the bearer
// token issued by the backend, the per-request session store backed by a
// cookie, and the route guards built on top of it.
//
// Nothing here verifies a signature. A decodable, unexpired token only means
// the user is probably logged in; the backend re-checks every request.
package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Payload is the subset of token claims the frontend cares about.
type Payload struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}

type claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Decode reads the payload segment of a three-part token without looking at
// the header or the signature. Any malformed input yields ok == false.
func Decode(token string) (p Payload, ok bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Payload{}, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return Payload{}, false
	}
	c := &claims{}
	if err := json.Unmarshal(raw, c); err != nil {
		return Payload{}, false
	}
	p = Payload{Subject: c.Subject, Role: c.Role}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p, true
}

// Valid reports whether token decodes and has not expired yet.
func Valid(token string) bool {
	return ValidAt(token, time.Now())
}

func ValidAt(token string, now time.Time) bool {
	p, ok := Decode(token)
	if !ok || p.ExpiresAt.IsZero() {
		return false
	}
	return p.ExpiresAt.After(now)
}
