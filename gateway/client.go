// Package gateway is the typed client of the blog backend's REST API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Authenticator is the session a call is made on behalf of.
type Authenticator interface {
	Token() string
	Logout()
}

type Client struct {
	base   *url.URL
	origin *url.URL
	http   *http.Client
	logger *zap.Logger
}

func New(baseURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing backend url: %w", err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("backend url %q is not absolute", baseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:   base,
		origin: &url.URL{Scheme: base.Scheme, Host: base.Host},
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

// With binds the client to one session. auth may be nil for anonymous use.
func (c *Client) With(auth Authenticator) *API {
	return &API{client: c, auth: auth}
}

// AbsoluteURL resolves a relative URL returned by the backend against its
// origin. Absolute URLs are returned unchanged.
func (c *Client) AbsoluteURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() {
		return raw
	}
	return c.origin.ResolveReference(u).String()
}

type authMode int

const (
	// credentials are being submitted; a 401 is a plain answer
	submitCredentials authMode = iota
	anonymous
	optionalBearer
	requiredBearer
)

type call struct {
	method      string
	path        string
	body        io.Reader
	contentType string
	auth        authMode
}

// API performs the backend calls of one session.
type API struct {
	client *Client
	auth   Authenticator
}

func (a *API) token() string {
	if a.auth == nil {
		return ""
	}
	return a.auth.Token()
}

func (a *API) logout() {
	if a.auth != nil {
		a.auth.Logout()
	}
}

func (a *API) do(ctx context.Context, cl call, out any) error {
	log := a.client.logger.Sugar()
	token := a.token()
	if cl.auth == requiredBearer && token == "" {
		a.logout()
		return ErrUnauthorized
	}

	u := *a.client.base
	u.Path = strings.TrimSuffix(u.Path, "/") + cl.path
	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), cl.body)
	if err != nil {
		return fmt.Errorf("building %s %s: %w", cl.method, cl.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}
	if token != "" && (cl.auth == optionalBearer || cl.auth == requiredBearer) {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.client.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Errorf("failed to do %s %s: %s", cl.method, cl.path, err.Error())
		return &NetworkError{Method: cl.method, URL: u.String(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && cl.auth != submitCredentials {
		log.Infof("backend rejected credential on %s %s", cl.method, cl.path)
		a.logout()
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: detail(resp.Body)}
		if resp.StatusCode >= 500 {
			log.Errorf("%s %s: %s", cl.method, cl.path, apiErr.Error())
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return ctx.Err()
		}
		log.Errorf("failed to decode %s %s response: %s", cl.method, cl.path, err.Error())
		return fmt.Errorf("decoding %s %s: %w", cl.method, cl.path, err)
	}
	return nil
}

// detail extracts the message of a {"detail": ...} error body.
func detail(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil || len(data) == 0 {
		return ""
	}
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}
	var msg string
	if err := json.Unmarshal(envelope.Detail, &msg); err == nil {
		return msg
	}
	return string(envelope.Detail)
}

func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
