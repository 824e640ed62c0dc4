// Package guard gates admin routes on the session store and the role policy.
package guard

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/shopadmin/internal/session"
)

const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
	DefaultLanding   = "/admin/dashboard"
)

type Decision int

const (
	Checking Decision = iota
	Allowed
	RedirectLogin
	RedirectUnauthorized
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case RedirectLogin:
		return "redirect_login"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	default:
		return "checking"
	}
}

// Authorizer decides whether role may access method on path.
type Authorizer interface {
	Allowed(role, path, method string) (bool, error)
}

// RoleSet allows a fixed set of roles everywhere.
type RoleSet []string

var DefaultRoles = RoleSet{"ADMIN", "SUPER_ADMIN"}

func (r RoleSet) Allowed(role, _, _ string) (bool, error) {
	return role != "" && slices.Contains(r, role), nil
}

// Evaluate runs the expiry check, then the auth check, then the role policy.
func Evaluate(ctx context.Context, st *session.Store, authz Authorizer, path, method string) (Decision, error) {
	if st == nil {
		return RedirectLogin, nil
	}
	if !st.CheckExpiry(ctx) || !st.IsAuth(ctx) {
		return RedirectLogin, nil
	}

	role := ""
	if u := st.User(); u != nil {
		role = u.Role
	}
	ok, err := authz.Allowed(role, path, method)
	if err != nil {
		return Checking, err
	}
	if !ok {
		return RedirectUnauthorized, nil
	}
	return Allowed, nil
}

// LoginURL carries the original location for the post-login redirect.
func LoginURL(original string) string {
	if original == "" || original == LoginPath {
		return LoginPath
	}
	return LoginPath + "?redirect=" + url.QueryEscape(original)
}

// SafeRedirect accepts only local absolute paths; anything else yields fallback.
func SafeRedirect(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, `/\`) {
		return fallback
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	if u.Path == LoginPath {
		return fallback
	}
	return raw
}

// Middleware evaluates the guard on every request. Pages are redirected; JSON
// callers get the error envelope.
func Middleware(authz Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		st, _ := session.FromContext(ctx)

		decision, err := Evaluate(ctx, st, authz, c.Request.URL.Path, c.Request.Method)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{
					"code":    "internal_error",
					"message": "Authorization check failed",
				},
			})
			return
		}

		switch decision {
		case Allowed:
			c.Next()
		case RedirectUnauthorized:
			deny(c, http.StatusForbidden, "forbidden", "Your role cannot access this page", UnauthorizedPath)
		default:
			deny(c, http.StatusUnauthorized, "unauthorized", "Login required", LoginURL(c.Request.URL.RequestURI()))
		}
	}
}

func deny(c *gin.Context, status int, code, msg, location string) {
	if wantsJSON(c.Request) {
		c.AbortWithStatusJSON(status, gin.H{
			"error": gin.H{
				"code":    code,
				"message": msg,
			},
		})
		return
	}
	redirect := http.StatusFound
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		redirect = http.StatusSeeOther
	}
	c.Redirect(redirect, location)
	c.Abort()
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") &&
		!strings.Contains(r.Header.Get("Accept"), "text/html")
}
