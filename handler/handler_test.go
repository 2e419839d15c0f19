package handler

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"blogdesk/auth"
	"blogdesk/devapi"
	"blogdesk/domain"
	"blogdesk/gateway"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	adminEmail = "admin@example.com"
	adminPass  = "Admin123"
	csrfToken  = "test-csrf-token"
)

type anonymous struct{}

func (anonymous) Token() string { return "" }
func (anonymous) Logout()       {}

type testApp struct {
	e        *echo.Echo
	api      *gateway.Client
	backend  *httptest.Server
	requests atomic.Int64
}

func setupApp(t *testing.T) *testApp {
	t.Helper()
	store, err := devapi.OpenStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	srv, err := devapi.New(context.Background(), store, devapi.Config{
		UploadsDir:    t.TempDir(),
		Secret:        "test-secret",
		AdminEmail:    adminEmail,
		AdminPassword: adminPass,
	}, nil)
	if err != nil {
		t.Fatalf("new devapi: %v", err)
	}

	app := &testApp{}
	routes := srv.Routes()
	app.backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.requests.Add(1)
		routes.ServeHTTP(w, r)
	}))
	t.Cleanup(app.backend.Close)

	app.api, err = gateway.New(app.backend.URL, 5*time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	app.e = newFrontend(t, app.api)
	return app
}

func newFrontend(t *testing.T, api *gateway.Client) *echo.Echo {
	t.Helper()
	templates, err := NewTemplateRegistry("../templates")
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	e := echo.New()
	e.Renderer = templates
	h := &Handler{API: api, Logger: zap.NewNop()}
	h.Register(e)
	return e
}

func (a *testApp) get(t *testing.T, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) postForm(t *testing.T, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	form.Set(csrfField, csrfToken)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return a.serve(req, cookies)
}

func (a *testApp) postMultipart(t *testing.T, path string, fields map[string][]string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields[csrfField] = []string{csrfToken}
	for k, vs := range fields {
		for _, v := range vs {
			if err := w.WriteField(k, v); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return a.serve(req, cookies)
}

func (a *testApp) serve(req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req.AddCookie(&http.Cookie{Name: "_csrf", Value: csrfToken})
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func tokenCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.TokenCookie {
			return c
		}
	}
	return nil
}

func (a *testApp) login(t *testing.T, email, password string) *http.Cookie {
	t.Helper()
	rec := a.postForm(t, "/login", url.Values{"email": {email}, "password": {password}})
	if rec.Code != http.StatusFound {
		t.Fatalf("login: expected status %d, got %d: %s", http.StatusFound, rec.Code, rec.Body.String())
	}
	c := tokenCookie(rec)
	if c == nil || c.Value == "" {
		t.Fatal("login: expected access_token cookie")
	}
	return c
}

func (a *testApp) signupUser(t *testing.T) *http.Cookie {
	t.Helper()
	rec := a.postForm(t, "/signup", url.Values{
		"first_name": {"Ada"},
		"last_name":  {"Lovelace"},
		"email":      {"ada@example.com"},
		"password":   {"Secret123"},
	})
	if rec.Code != http.StatusFound {
		t.Fatalf("signup: expected status %d, got %d: %s", http.StatusFound, rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/login?notice=signed_up" {
		t.Fatalf("signup: unexpected redirect %q", loc)
	}
	return a.login(t, "ada@example.com", "Secret123")
}

func (a *testApp) createCategory(t *testing.T, name string) domain.Category {
	t.Helper()
	category, err := a.api.With(anonymous{}).CreateCategory(context.Background(), name)
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	return category
}

func forgedToken(t *testing.T, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  adminEmail,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-the-backend-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestLoginRedirectsByRole(t *testing.T) {
	app := setupApp(t)

	rec := app.postForm(t, "/login", url.Values{"email": {adminEmail}, "password": {adminPass}})
	if rec.Code != http.StatusFound {
		t.Fatalf("expected status %d, got %d", http.StatusFound, rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/dashboard" {
		t.Errorf("admin: expected redirect to /dashboard, got %q", loc)
	}
	c := tokenCookie(rec)
	if c == nil || !c.HttpOnly {
		t.Fatalf("expected http-only token cookie, got %+v", c)
	}
	if !auth.Valid(c.Value) {
		t.Error("expected a valid token in the cookie")
	}

	rec = app.postForm(t, "/signup", url.Values{
		"first_name": {"Ada"},
		"last_name":  {"Lovelace"},
		"email":      {"ada@example.com"},
		"password":   {"Secret123"},
	})
	if rec.Code != http.StatusFound {
		t.Fatalf("signup: expected status %d, got %d", http.StatusFound, rec.Code)
	}
	rec = app.postForm(t, "/login", url.Values{"email": {"ada@example.com"}, "password": {"Secret123"}})
	if loc := rec.Header().Get("Location"); loc != "/home" {
		t.Errorf("user: expected redirect to /home, got %q", loc)
	}
}

func TestLoginFailures(t *testing.T) {
	app := setupApp(t)

	tests := []struct {
		name     string
		form     url.Values
		wantCode int
		wantBody string
	}{
		{"missing email", url.Values{"password": {"x"}}, http.StatusUnprocessableEntity, "Email is mandatory"},
		{"wrong password", url.Values{"email": {adminEmail}, "password": {"nope"}}, http.StatusUnauthorized, "Invalid credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.postForm(t, "/login", tt.form)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("expected body to contain %q", tt.wantBody)
			}
			if tokenCookie(rec) != nil {
				t.Error("expected no token cookie")
			}
		})
	}
}

func TestMissingCSRFTokenIsRejected(t *testing.T) {
	app := setupApp(t)
	form := url.Values{"email": {adminEmail}, "password": {adminPass}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	app.e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if app.requests.Load() != 0 {
		t.Error("expected no backend request")
	}
}

func TestRouteAccess(t *testing.T) {
	app := setupApp(t)
	admin := app.login(t, adminEmail, adminPass)
	user := app.signupUser(t)

	tests := []struct {
		name     string
		path     string
		cookie   *http.Cookie
		wantCode int
		wantLoc  string
	}{
		{"anonymous dashboard", "/dashboard", nil, http.StatusFound, "/login"},
		{"anonymous home", "/home", nil, http.StatusFound, "/login"},
		{"user dashboard", "/dashboard", user, http.StatusFound, "/home"},
		{"user categories", "/categories", user, http.StatusFound, "/home"},
		{"user home", "/home", user, http.StatusOK, ""},
		{"admin dashboard", "/dashboard", admin, http.StatusOK, ""},
		{"admin posts", "/posts", admin, http.StatusOK, ""},
		{"admin login page", "/login", admin, http.StatusFound, "/home"},
		{"user signup page", "/signup", user, http.StatusFound, "/home"},
		{"anonymous login page", "/login", nil, http.StatusOK, ""},
		{"anonymous landing", "/", nil, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cookies []*http.Cookie
			if tt.cookie != nil {
				cookies = append(cookies, tt.cookie)
			}
			rec := app.get(t, tt.path, cookies...)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if loc := rec.Header().Get("Location"); loc != tt.wantLoc {
				t.Errorf("expected location %q, got %q", tt.wantLoc, loc)
			}
		})
	}
}

func TestExpiredCookieIsCleared(t *testing.T) {
	app := setupApp(t)
	claims := jwt.MapClaims{"sub": adminEmail, "role": "admin", "exp": time.Now().Add(-time.Minute).Unix()}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}

	rec := app.get(t, "/dashboard", &http.Cookie{Name: auth.TokenCookie, Value: expired})
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if c := tokenCookie(rec); c == nil || c.MaxAge >= 0 {
		t.Errorf("expected the stale cookie to be cleared, got %+v", c)
	}
}

func TestCreatePostValidationSkipsBackend(t *testing.T) {
	app := setupApp(t)
	admin := app.login(t, adminEmail, adminPass)
	category := app.createCategory(t, "News")
	before := app.requests.Load()

	rec := app.postMultipart(t, "/post/create-post", map[string][]string{
		"description":     {"desc"},
		"body":            {"body"},
		"category_id":     {itoa(category.ID)},
		"category_option": {itoa(category.ID) + ":News"},
	}, admin)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Post title is required") {
		t.Error("expected title error in the form")
	}
	if !strings.Contains(body, `<option value="`+itoa(category.ID)+`" selected>News</option>`) {
		t.Error("expected the selected category to survive the failed submit")
	}
	if got := app.requests.Load(); got != before {
		t.Errorf("expected no backend request, got %d", got-before)
	}
}

func TestCreateAndReadPost(t *testing.T) {
	app := setupApp(t)
	admin := app.login(t, adminEmail, adminPass)
	category := app.createCategory(t, "News")

	rec := app.postMultipart(t, "/post/create-post", map[string][]string{
		"title":       {"Hello"},
		"description": {"First post"},
		"body":        {"Some **bold** text <script>alert(1)</script>"},
		"category_id": {itoa(category.ID)},
	}, admin)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected status %d, got %d: %s", http.StatusFound, rec.Code, rec.Body.String())
	}
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "/post/") {
		t.Fatalf("unexpected redirect %q", loc)
	}

	rec = app.get(t, loc, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<strong>bold</strong>") {
		t.Error("expected markdown to be rendered")
	}
	if strings.Contains(body, "<script>") {
		t.Error("expected script tags to be sanitized")
	}
	if !strings.Contains(body, "Category: News") {
		t.Error("expected category name")
	}

	rec = app.get(t, "/dashboard", admin)
	if !strings.Contains(rec.Body.String(), "Hello") {
		t.Error("expected the post in the dashboard")
	}
}

func TestPostTextEscapedOnce(t *testing.T) {
	app := setupApp(t)
	admin := app.login(t, adminEmail, adminPass)
	category := app.createCategory(t, "News")

	rec := app.postMultipart(t, "/post/create-post", map[string][]string{
		"title":       {"Tom & Jerry's"},
		"description": {"A < B"},
		"body":        {"body"},
		"category_id": {itoa(category.ID)},
	}, admin)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected status %d, got %d: %s", http.StatusFound, rec.Code, rec.Body.String())
	}

	tests := []struct {
		path string
		want []string
	}{
		{"/post/1", []string{
			"<h1>Tom &amp; Jerry&#39;s</h1>",
			"<title>Tom &amp; Jerry&#39;s | blogdesk</title>",
			`<p class="lead">A &lt; B</p>`,
		}},
		{"/home", []string{"<h2>Tom &amp; Jerry&#39;s</h2>", "<p>A &lt; B</p>"}},
		{"/dashboard", []string{`<a href="/post/1">Tom &amp; Jerry&#39;s</a>`}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := app.get(t, tt.path, admin)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
			}
			body := rec.Body.String()
			for _, want := range tt.want {
				if !strings.Contains(body, want) {
					t.Errorf("expected body to contain %q", want)
				}
			}
			if strings.Contains(body, "&amp;amp;") || strings.Contains(body, "&amp;lt;") || strings.Contains(body, "&amp;#39;") {
				t.Error("expected text to be escaped once")
			}
		})
	}
}

func TestEditFormTitleKeepsQuotes(t *testing.T) {
	app := setupApp(t)
	admin := app.login(t, adminEmail, adminPass)
	category := app.createCategory(t, "News")
	app.postMultipart(t, "/post/create-post", map[string][]string{
		"title":       {`Say "hi"`},
		"description": {"d"},
		"body":        {"b"},
		"category_id": {itoa(category.ID)},
	}, admin)

	rec := app.get(t, "/post/edit/1", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<title>Editing Say &#34;hi&#34; | blogdesk</title>") {
		t.Error("expected the raw title in the page title")
	}
	if strings.Contains(body, `\&#34;`) {
		t.Error("expected no Go quoting in the page title")
	}
}

func TestDiscarded(t *testing.T) {
	e := echo.New()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/home", nil).WithContext(ctx)
	c := e.NewContext(req, httptest.NewRecorder())

	if err := discarded(c); err != nil {
		t.Fatalf("expected live request, got %v", err)
	}
	cancel()
	if err := discarded(c); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestEditPost(t *testing.T) {
	app := setupApp(t)
	admin := app.login(t, adminEmail, adminPass)
	category := app.createCategory(t, "News")
	app.postMultipart(t, "/post/create-post", map[string][]string{
		"title":       {"Hello"},
		"description": {"First post"},
		"body":        {"body"},
		"category_id": {itoa(category.ID)},
	}, admin)

	rec := app.get(t, "/post/edit/1", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `value="Hello"`) {
		t.Error("expected the form to be prefilled")
	}

	rec = app.postMultipart(t, "/post/edit/1", map[string][]string{
		"title":       {"Hello again"},
		"description": {"First post"},
		"body":        {"body"},
		"category_id": {itoa(category.ID)},
		"is_private":  {"on"},
	}, admin)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/post/1" {
		t.Fatalf("expected redirect to /post/1, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	post, err := app.api.With(anonymous{}).GetPost(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if post.Title != "Hello again" || !post.IsPrivate {
		t.Errorf("unexpected post after edit: %+v", post)
	}
}

func TestDeletePost(t *testing.T) {
	app := setupApp(t)
	admin := app.login(t, adminEmail, adminPass)
	category := app.createCategory(t, "News")
	app.postMultipart(t, "/post/create-post", map[string][]string{
		"title":       {"Hello"},
		"description": {"d"},
		"body":        {"b"},
		"category_id": {itoa(category.ID)},
	}, admin)

	rec := app.postForm(t, "/posts/1/delete", url.Values{}, admin)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected status %d, got %d", http.StatusFound, rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/dashboard?notice=post_deleted" {
		t.Errorf("unexpected redirect %q", loc)
	}

	rec = app.get(t, "/post/1", admin)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestBackendRejectionLogsOut(t *testing.T) {
	app := setupApp(t)
	forged := &http.Cookie{Name: auth.TokenCookie, Value: forgedToken(t, "admin")}

	rec := app.postForm(t, "/posts/1/delete", url.Values{}, forged)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected status %d, got %d", http.StatusFound, rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("expected redirect to /login, got %q", loc)
	}
	if c := tokenCookie(rec); c == nil || c.MaxAge >= 0 {
		t.Errorf("expected token cookie to be cleared, got %+v", c)
	}
}

func TestCategories(t *testing.T) {
	app := setupApp(t)
	admin := app.login(t, adminEmail, adminPass)

	rec := app.postForm(t, "/categories", url.Values{"name": {"Go"}}, admin)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/categories?notice=category_saved" {
		t.Fatalf("create: unexpected response %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = app.postForm(t, "/categories", url.Values{"name": {"  "}}, admin)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Category name is required") {
		t.Error("expected name error")
	}

	rec = app.postForm(t, "/categories/1", url.Values{"name": {"Golang"}}, admin)
	if rec.Code != http.StatusFound {
		t.Fatalf("rename: expected status %d, got %d", http.StatusFound, rec.Code)
	}
	rec = app.get(t, "/categories?notice=category_saved", admin)
	body := rec.Body.String()
	if !strings.Contains(body, `value="Golang"`) || !strings.Contains(body, "Category saved.") {
		t.Error("expected renamed category and notice")
	}

	rec = app.postForm(t, "/categories/1/delete", url.Values{}, admin)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/categories?notice=category_deleted" {
		t.Fatalf("delete: unexpected response %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	app := setupApp(t)
	admin := app.login(t, adminEmail, adminPass)

	rec := app.get(t, "/logout", admin)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if c := tokenCookie(rec); c == nil || c.MaxAge >= 0 {
		t.Errorf("expected token cookie to be cleared, got %+v", c)
	}
}

func TestBackendDown(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	backend.Close()
	api, err := gateway.New(backend.URL, time.Second, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	e := newFrontend(t, api)

	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.AddCookie(&http.Cookie{Name: auth.TokenCookie, Value: forgedToken(t, "user")})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "The blog service is unavailable") {
		t.Error("expected generic unavailable message")
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
