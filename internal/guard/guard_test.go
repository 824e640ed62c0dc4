package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/shopadmin/internal/session"
)

func openStore(t *testing.T, now func() time.Time, role string) *session.Store {
	t.Helper()
	svc := session.NewService(session.NewMemoryPersister(), session.WithClock(now))
	st, err := svc.Open(context.Background(), "sid")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if role != "" {
		if err := st.SetAuth(context.Background(), session.User{ID: "u1", Role: role}, "tok", time.Hour); err != nil {
			t.Fatalf("set auth: %v", err)
		}
	}
	return st
}

func TestEvaluate(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	clock := func() time.Time { return now }

	tests := []struct {
		name    string
		role    string
		advance time.Duration
		want    Decision
	}{
		{"anonymous", "", 0, RedirectLogin},
		{"admin", "ADMIN", 0, Allowed},
		{"super admin", "SUPER_ADMIN", 0, Allowed},
		{"wrong role", "CUSTOMER", 0, RedirectUnauthorized},
		{"expired", "ADMIN", 2 * time.Hour, RedirectLogin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now = base
			st := openStore(t, clock, tt.role)
			now = base.Add(tt.advance)

			got, err := Evaluate(context.Background(), st, DefaultRoles, "/admin/brands", http.MethodGet)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("decision = %s want %s", got, tt.want)
			}
		})
	}

	if d, _ := Evaluate(context.Background(), nil, DefaultRoles, "/admin", http.MethodGet); d != RedirectLogin {
		t.Fatalf("missing store must redirect to login")
	}
}

func TestSafeRedirect(t *testing.T) {
	tests := map[string]string{
		"/admin/brands?page=2":  "/admin/brands?page=2",
		"":                      DefaultLanding,
		"https://evil.example":  DefaultLanding,
		"//evil.example/path":   DefaultLanding,
		`/\evil.example`:        DefaultLanding,
		"admin/brands":          DefaultLanding,
		"/login?redirect=/x":    DefaultLanding,
	}
	for in, want := range tests {
		if got := SafeRedirect(in, DefaultLanding); got != want {
			t.Fatalf("SafeRedirect(%q) = %q want %q", in, got, want)
		}
	}
}

func TestLoginURL(t *testing.T) {
	if got := LoginURL("/admin/products?page=2"); got != "/login?redirect=%2Fadmin%2Fproducts%3Fpage%3D2" {
		t.Fatalf("LoginURL = %q", got)
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := func() time.Time { return time.Now() }

	tests := []struct {
		name     string
		role     string
		accept   string
		status   int
		location string
	}{
		{"anonymous page", "", "text/html", http.StatusFound, "/login?redirect=%2Fadmin%2Fbrands"},
		{"anonymous json", "", "application/json", http.StatusUnauthorized, ""},
		{"wrong role", "EDITOR", "text/html", http.StatusFound, UnauthorizedPath},
		{"admin", "ADMIN", "text/html", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := openStore(t, now, tt.role)

			r := gin.New()
			r.Use(func(c *gin.Context) {
				c.Request = c.Request.WithContext(session.WithStore(c.Request.Context(), st))
				c.Next()
			})
			r.Use(Middleware(DefaultRoles))
			r.GET("/admin/brands", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

			req := httptest.NewRequest(http.MethodGet, "/admin/brands", nil)
			req.Header.Set("Accept", tt.accept)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d want %d", w.Code, tt.status)
			}
			if tt.location != "" && w.Header().Get("Location") != tt.location {
				t.Fatalf("location = %q want %q", w.Header().Get("Location"), tt.location)
			}
		})
	}
}

func TestCasbinAuthorizer(t *testing.T) {
	rules := append([]Rule{}, DefaultRules...)
	rules = append(rules, Rule{Role: "ADMIN", Path: "/admin/:entity/delete/:id", Methods: "POST", Deny: true})

	a, err := NewCasbinAuthorizer(rules)
	if err != nil {
		t.Fatalf("new authorizer: %v", err)
	}

	tests := []struct {
		role, path, method string
		want               bool
	}{
		{"ADMIN", "/admin", "GET", true},
		{"SUPER_ADMIN", "/admin", "GET", true},
		{"ADMIN", "/admin/dashboard", "GET", true},
		{"ADMIN", "/admin/brands", "GET", true},
		{"ADMIN", "/admin/brands/delete/1", "POST", false},
		{"ADMIN", "/admin/brands/delete/1", "GET", true},
		{"SUPER_ADMIN", "/admin/brands/delete/1", "POST", true},
		{"CUSTOMER", "/admin", "GET", false},
		{"CUSTOMER", "/admin/brands", "GET", false},
		{"", "/admin/brands", "GET", false},
	}
	for _, tt := range tests {
		got, err := a.Allowed(tt.role, tt.path, tt.method)
		if err != nil {
			t.Fatalf("enforce: %v", err)
		}
		if got != tt.want {
			t.Fatalf("Allowed(%s, %s, %s) = %v want %v", tt.role, tt.path, tt.method, got, tt.want)
		}
	}
}
