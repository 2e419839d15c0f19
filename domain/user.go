package domain

import (
	"net/mail"
	"strings"
	"unicode"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Session is the client's belief about who is logged in. It is derived from
// the bearer token and never trusted as an authorization boundary.
type Session struct {
	Email string
	Role  Role
}

func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c Credentials) Validate() error {
	errs := FieldErrors{}
	validateEmail(errs, c.Email)
	validatePassword(errs, c.Password)
	return errs.OrNil()
}

type Signup struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (s Signup) Validate() error {
	errs := FieldErrors{}
	if strings.TrimSpace(s.FirstName) == "" {
		errs["first_name"] = "First name is mandatory"
	}
	if strings.TrimSpace(s.LastName) == "" {
		errs["last_name"] = "Last name is mandatory"
	}
	validateEmail(errs, s.Email)
	validatePassword(errs, s.Password)
	return errs.OrNil()
}

// LoginResult is what the backend returns for a successful login.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	Role        Role   `json:"role"`
}

func validateEmail(errs FieldErrors, email string) {
	if strings.TrimSpace(email) == "" {
		errs["email"] = "Email is mandatory"
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		errs["email"] = "Email is not valid"
	}
}

func validatePassword(errs FieldErrors, password string) {
	if password == "" {
		errs["password"] = "Password is mandatory"
		return
	}
	var upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !digit {
		errs["password"] = "Must contain at least one uppercase letter and one number"
	}
}
