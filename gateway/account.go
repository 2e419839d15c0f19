package gateway

import (
	"context"
	"net/http"

	"blogdesk/domain"
)

// Login exchanges credentials for a bearer token. It does not touch the
// session; callers pass the token to the session store.
func (a *API) Login(ctx context.Context, creds domain.Credentials) (domain.LoginResult, error) {
	body, err := jsonBody(creds)
	if err != nil {
		return domain.LoginResult{}, err
	}
	var res domain.LoginResult
	err = a.do(ctx, call{
		method:      http.MethodPost,
		path:        "/login",
		body:        body,
		contentType: "application/json",
		auth:        submitCredentials,
	}, &res)
	if err != nil {
		return domain.LoginResult{}, err
	}
	return res, nil
}

func (a *API) Signup(ctx context.Context, form domain.Signup) error {
	body, err := jsonBody(form)
	if err != nil {
		return err
	}
	return a.do(ctx, call{
		method:      http.MethodPost,
		path:        "/signup",
		body:        body,
		contentType: "application/json",
		auth:        submitCredentials,
	}, nil)
}
