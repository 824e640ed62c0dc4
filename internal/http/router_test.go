package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geocoder89/shopadmin/internal/auth"
	"github.com/geocoder89/shopadmin/internal/backend"
	"github.com/geocoder89/shopadmin/internal/catalog"
	"github.com/geocoder89/shopadmin/internal/guard"
	httpx "github.com/geocoder89/shopadmin/internal/http"
	"github.com/geocoder89/shopadmin/internal/http/middlewares"
	"github.com/geocoder89/shopadmin/internal/lookup"
	"github.com/geocoder89/shopadmin/internal/notifications"
	"github.com/geocoder89/shopadmin/internal/observability"
	"github.com/geocoder89/shopadmin/internal/session"
	"github.com/geocoder89/shopadmin/internal/table"
)

// commerceAPI fakes the REST backend. Routes not handled by override fall back to
// a small brand/product catalogue.
type commerceAPI struct {
	mu       sync.Mutex
	requests []string
	override func(w http.ResponseWriter, r *http.Request) bool
}

func (a *commerceAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.requests = append(a.requests, r.Method+" "+r.URL.Path)
	override := a.override
	a.mu.Unlock()

	if override != nil && override(w, r) {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/auth/login":
		var c catalog.Credentials
		_ = json.NewDecoder(r.Body).Decode(&c)
		if c.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid email or password"}`))
			return
		}
		role := "ADMIN"
		if strings.HasPrefix(c.Email, "shopper") {
			role = "USER"
		}
		_, _ = w.Write([]byte(`{"data":{"user":{"_id":"u1","name":"Ada","email":"` + c.Email + `","role":"` + role + `"},"token":"jwt-1"}}`))
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/all"):
		_, _ = w.Write([]byte(`{"data":[{"_id":"b1","name":"Acme","status":"ACTIVE","email":"hi@acme.test"}],"pagination":{"total":1,"page":1,"totalPages":1}}`))
	case r.Method == http.MethodGet && r.URL.Path == "/api/brand/b1":
		_, _ = w.Write([]byte(`{"data":{"_id":"b1","name":"Acme","status":"ACTIVE"}}`))
	case r.Method == http.MethodDelete && r.URL.Path == "/api/brand/delete/b1":
		_, _ = w.Write([]byte(`{"message":"Brand removed"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"not found"}`))
	}
}

func (a *commerceAPI) calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.requests...)
}

// browser replays the session cookie like a real user agent.
type browser struct {
	t      *testing.T
	router http.Handler
	cookie *http.Cookie
}

func (b *browser) do(method, path string, form url.Values, header ...string) *httptest.ResponseRecorder {
	b.t.Helper()

	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}

	w := httptest.NewRecorder()
	b.router.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.Name == middlewares.SessionCookie {
			b.cookie = c
		}
	}
	return w
}

func (b *browser) login(t *testing.T) {
	t.Helper()
	w := b.do(http.MethodPost, "/login", url.Values{"email": {"ada@shop.test"}, "password": {"secret"}})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
}

const cookieSecret = "test-secret"

func newApp(t *testing.T) (*browser, *commerceAPI) {
	t.Helper()
	return newAppWithStore(t, session.NewMemoryPersister())
}

func newAppWithStore(t *testing.T, store session.Persister) (*browser, *commerceAPI) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	api := &commerceAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	sessions := session.NewService(store)
	flash := notifications.NewFlashNotifier(notifications.NewMemoryInbox(time.Minute), nil)
	client := backend.New(backend.Config{BaseURL: srv.URL}, backend.WithNotifier(flash), backend.WithTransport(http.DefaultTransport))

	reg := prometheus.NewRegistry()
	router := httpx.NewRouter(httpx.Deps{
		Env:          "test",
		Catalog:      catalog.New(catalog.NewGateway(client, 0)),
		Sessions:     middlewares.NewSessions(sessions, auth.NewManager(cookieSecret, time.Hour), false, nil),
		Notifier:     flash,
		Toasts:       flash,
		Confirms:     table.NewConfirmations(time.Minute),
		Debouncer:    lookup.NewDebouncer(time.Millisecond),
		Authorizer:   guard.DefaultRoles,
		AdminRoles:   guard.DefaultRoles,
		Prom:         observability.NewProm(reg),
		Gatherer:     reg,
		Ping:         sessions.Ping,
		LoginLimiter: middlewares.NewRateLimiter(100, time.Minute),
	})

	return &browser{t: t, router: router}, api
}

var tokenField = regexp.MustCompile(`name="token" value="([^"]+)"`)

func confirmToken(t *testing.T, body string) string {
	t.Helper()
	m := tokenField.FindStringSubmatch(body)
	require.Len(t, m, 2, "no confirmation token in page")
	return m[1]
}

func TestOperationalRoutes(t *testing.T) {
	b, _ := newApp(t)

	assert.Equal(t, http.StatusOK, b.do(http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, b.do(http.MethodGet, "/readyz", nil).Code)

	w := b.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "shopadmin_http_requests_total")
}

func TestAdminRedirectsAnonymousToLogin(t *testing.T) {
	b, _ := newApp(t)

	w := b.do(http.MethodGet, "/admin/brands?page=2", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?redirect=%2Fadmin%2Fbrands%3Fpage%3D2", w.Header().Get("Location"))

	w = b.do(http.MethodGet, "/admin/brands", nil, "Accept", "application/json")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginFlow(t *testing.T) {
	b, api := newApp(t)

	w := b.do(http.MethodGet, "/login", nil)
	require.Equal(t, http.StatusOK, w.Code)
	anonymous := b.cookie.Value

	w = b.do(http.MethodPost, "/login", url.Values{
		"email":    {"ada@shop.test"},
		"password": {"secret"},
		"redirect": {"/admin/brands"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Equal(t, "/admin/brands", w.Header().Get("Location"))
	assert.NotEqual(t, anonymous, b.cookie.Value, "login must rotate the session id")

	w = b.do(http.MethodGet, "/admin/brands", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Welcome back, Ada!")
	assert.Contains(t, body, "Acme")
	assert.Contains(t, body, "Showing 1 - 1 of 1")
	assert.Contains(t, api.calls(), "GET /api/brand/all")

	// already signed in
	w = b.do(http.MethodGet, "/login", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, guard.DefaultLanding, w.Header().Get("Location"))
}

func TestLoginRememberSetsExpiry(t *testing.T) {
	cases := []struct {
		name     string
		remember string
		want     time.Duration
	}{
		{"session login", "", 24 * time.Hour},
		{"remember me", "on", 30 * 24 * time.Hour},
		{"remember me from the page", "true", 30 * 24 * time.Hour},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := session.NewMemoryPersister()
			b, _ := newAppWithStore(t, store)

			form := url.Values{"email": {"ada@shop.test"}, "password": {"secret"}}
			if tc.remember != "" {
				form.Set("remember", tc.remember)
			}
			before := time.Now()
			w := b.do(http.MethodPost, "/login", form)
			require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())

			sid, err := auth.NewManager(cookieSecret, time.Hour).VerifySession(b.cookie.Value)
			require.NoError(t, err)
			saved, err := store.Load(context.Background(), session.KeyFor(sid))
			require.NoError(t, err)

			assert.True(t, saved.IsAuthenticated)
			assert.Equal(t, "jwt-1", saved.Token)
			assert.WithinDuration(t, before.Add(tc.want), saved.ExpireAt, time.Minute)
		})
	}
}

func TestLoginFailures(t *testing.T) {
	cases := []struct {
		name   string
		form   url.Values
		status int
		want   string
	}{
		{
			name:   "missing password",
			form:   url.Values{"email": {"ada@shop.test"}},
			status: http.StatusUnprocessableEntity,
			want:   "Please enter both email and password",
		},
		{
			name:   "wrong password",
			form:   url.Values{"email": {"ada@shop.test"}, "password": {"nope"}},
			status: http.StatusUnauthorized,
			want:   "Invalid email or password",
		},
		{
			name:   "role without console access",
			form:   url.Values{"email": {"shopper@shop.test"}, "password": {"secret"}},
			status: http.StatusForbidden,
			want:   "Access Denied: You do not have permission to access the admin panel",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, _ := newApp(t)

			w := b.do(http.MethodPost, "/login", tc.form)
			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.want)

			w = b.do(http.MethodGet, "/admin/dashboard", nil)
			assert.Equal(t, http.StatusFound, w.Code, "must still be signed out")
		})
	}
}

func TestDashboardShowsTotals(t *testing.T) {
	b, _ := newApp(t)
	b.login(t)

	w := b.do(http.MethodGet, "/admin/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Brands Management")
	assert.Contains(t, body, "Reviews Management")
	assert.Contains(t, body, `href="/admin/products/add"`)
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	b, api := newApp(t)
	b.login(t)

	w := b.do(http.MethodPost, "/admin/brands/delete/b1", url.Values{"token": {"forged"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.NotContains(t, api.calls(), "DELETE /api/brand/delete/b1")

	w = b.do(http.MethodGet, "/admin/brands/delete/b1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Are you sure you want to delete Acme? This action cannot be undone.")
	token := confirmToken(t, w.Body.String())

	before := len(api.calls())
	w = b.do(http.MethodPost, "/admin/brands/delete/b1", url.Values{"token": {token}, "cancel": {"1"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin/brands", w.Header().Get("Location"))
	assert.Len(t, api.calls(), before, "cancel issues no backend call")

	// the cancelled token is gone; ask again
	w = b.do(http.MethodPost, "/admin/brands/delete/b1", url.Values{"token": {token}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.NotContains(t, api.calls(), "DELETE /api/brand/delete/b1")

	w = b.do(http.MethodGet, "/admin/brands/delete/b1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	token = confirmToken(t, w.Body.String())

	w = b.do(http.MethodPost, "/admin/brands/delete/b1", url.Values{"token": {token}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin/brands", w.Header().Get("Location"))
	assert.Contains(t, api.calls(), "DELETE /api/brand/delete/b1")

	w = b.do(http.MethodGet, "/admin/brands", nil)
	assert.Contains(t, w.Body.String(), "Brand deleted successfully")
	assert.NotContains(t, w.Body.String(), "Brand removed")

	// tokens are single use
	w = b.do(http.MethodPost, "/admin/brands/delete/b1", url.Values{"token": {token}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	w = b.do(http.MethodGet, "/admin/brands", nil)
	assert.Contains(t, w.Body.String(), "Confirmation expired. Please try again.")
}

func TestExportDownloadsCSV(t *testing.T) {
	b, _ := newApp(t)
	b.login(t)

	w := b.do(http.MethodGet, "/admin/brands/export?format=csv&status=ACTIVE", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Regexp(t, `attachment; filename="brands_\d{4}-\d{2}-\d{2}\.csv"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "Acme")
}

func TestOptionsEndpoint(t *testing.T) {
	b, _ := newApp(t)
	b.login(t)

	w := b.do(http.MethodGet, "/admin/products/options/brandId?q=ac", nil, "Accept", "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Options []lookup.Option `json:"options"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []lookup.Option{{Value: "b1", Label: "Acme"}}, resp.Options)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	w = b.do(http.MethodGet, "/admin/products/options/brandId?q=ac", nil, "Accept", "application/json", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, w.Code)

	w = b.do(http.MethodGet, "/admin/products/options/nope", nil, "Accept", "application/json")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBackendUnauthorizedEndsSession(t *testing.T) {
	b, api := newApp(t)
	b.login(t)

	api.override = func(w http.ResponseWriter, r *http.Request) bool {
		if strings.HasSuffix(r.URL.Path, "/all") {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"jwt expired"}`))
			return true
		}
		return false
	}

	w := b.do(http.MethodGet, "/admin/brands", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?redirect=%2Fadmin%2Fbrands", w.Header().Get("Location"))

	w = b.do(http.MethodGet, "/login", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), backend.SessionExpiredMessage)
}

func TestLogoutFlow(t *testing.T) {
	b, _ := newApp(t)
	b.login(t)

	w := b.do(http.MethodGet, "/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Are you sure you want to logout?")
	token := confirmToken(t, w.Body.String())

	w = b.do(http.MethodPost, "/logout", url.Values{"token": {token}, "cancel": {"1"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, guard.DefaultLanding, w.Header().Get("Location"))
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/admin/dashboard", nil).Code, "cancel keeps the session")

	w = b.do(http.MethodGet, "/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	token = confirmToken(t, w.Body.String())

	w = b.do(http.MethodPost, "/logout", url.Values{"token": {token}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, guard.LoginPath, w.Header().Get("Location"))

	w = b.do(http.MethodGet, "/login", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "You have been successfully logged out.")

	w = b.do(http.MethodGet, "/admin/dashboard", nil)
	assert.Equal(t, http.StatusFound, w.Code)
}
