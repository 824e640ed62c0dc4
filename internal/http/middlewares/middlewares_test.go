package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geocoder89/shopadmin/internal/auth"
	"github.com/geocoder89/shopadmin/internal/notifications"
	"github.com/geocoder89/shopadmin/internal/observability"
	"github.com/geocoder89/shopadmin/internal/session"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	ok, _ := rl.Allow("a")
	assert.True(t, ok)
	ok, _ = rl.Allow("a")
	assert.True(t, ok)

	ok, retry := rl.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, 60, retry)

	ok, _ = rl.Allow("b")
	assert.True(t, ok, "keys have separate buckets")

	now = now.Add(61 * time.Second)
	ok, _ = rl.Allow("a")
	assert.True(t, ok, "a new window starts after the old one ends")
}

func TestRateLimiterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewRateLimiter(1, time.Minute)
	r := gin.New()
	r.Use(rl.RateLimiterMiddleware(KeyByIP, http.MethodPost))
	r.Any("/login", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	cases := []struct {
		name   string
		method string
		accept string
		status int
		body   string
	}{
		{"first post", http.MethodPost, "", http.StatusNoContent, ""},
		{"page gets plain text", http.MethodPost, "text/html", http.StatusTooManyRequests, tooManyMessage},
		{"json callers get the envelope", http.MethodPost, "application/json", http.StatusTooManyRequests, `"code":"rate_limited"`},
		{"other methods are not limited", http.MethodGet, "", http.StatusNoContent, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/login", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			if tc.accept != "" {
				req.Header.Set("Accept", tc.accept)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
			if tc.body != "" {
				assert.Contains(t, w.Body.String(), tc.body)
			}
			if tc.status == http.StatusTooManyRequests {
				assert.NotEmpty(t, w.Header().Get("Retry-After"))
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/*path", func(c *gin.Context) { c.Status(http.StatusOK) })

	for path, csp := range map[string]string{
		"/admin/brands":                   pageCSP,
		"/healthz":                        apiCSP,
		"/admin/products/options/brandId": apiCSP,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		assert.Equal(t, csp, w.Header().Get("Content-Security-Policy"), path)
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	}
}

func TestMaxBodyBytes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(MaxBodyBytes(8))
	r.POST("/", func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("name=much-too-long"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(CtxRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-Id"))
	assert.Equal(t, "req-42", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

type failingPersister struct{ session.Persister }

func (failingPersister) Load(context.Context, string) (session.Session, error) {
	return session.Session{}, assert.AnError
}

func newSessionRouter(p session.Persister) (*gin.Engine, *Sessions) {
	gin.SetMode(gin.TestMode)

	s := NewSessions(session.NewService(p), auth.NewManager("secret", time.Hour), false, nil)
	r := gin.New()
	r.Use(s.Middleware())
	r.GET("/", func(c *gin.Context) {
		_, hasStore := session.FromContext(c.Request.Context())
		inbox, _ := notifications.InboxFrom(c.Request.Context())
		tagged := observability.SessionIDFrom(c.Request.Context())
		if !hasStore || inbox != SessionIDFrom(c) || tagged != SessionIDFrom(c) {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, SessionIDFrom(c))
	})
	r.POST("/rotate", func(c *gin.Context) {
		if _, err := s.Rotate(c); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, SessionIDFrom(c))
	})
	return r, s
}

func TestSessionMiddlewareIssuesAndKeepsCookie(t *testing.T) {
	r, _ := newSessionRouter(session.NewMemoryPersister())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, SessionCookie, c.Name)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	sid := w.Body.String()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, sid, w.Body.String())
	assert.Empty(t, w.Result().Cookies(), "a valid cookie is not reissued")

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "tampered"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, sid, w.Body.String())
	assert.Len(t, w.Result().Cookies(), 1)
}

func TestSessionRotateIssuesNewID(t *testing.T) {
	r, _ := newSessionRouter(session.NewMemoryPersister())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	first := w.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodPost, "/rotate", nil)
	req.AddCookie(first)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, first.Value, w.Result().Cookies()[0].Value)
}

func TestSessionMiddlewareStoreDown(t *testing.T) {
	r, _ := newSessionRouter(failingPersister{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "session_unavailable")
}
