package handler

import "errors"

var (
	errInvalidID    = errors.New("invalid id")
	errSessionStart = errors.New("the login response did not carry a usable token")
)
