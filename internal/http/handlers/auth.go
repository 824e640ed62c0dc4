package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/shopadmin/internal/backend"
	"github.com/geocoder89/shopadmin/internal/catalog"
	"github.com/geocoder89/shopadmin/internal/guard"
	"github.com/geocoder89/shopadmin/internal/http/middlewares"
	"github.com/geocoder89/shopadmin/internal/notifications"
	"github.com/geocoder89/shopadmin/internal/session"
	"github.com/geocoder89/shopadmin/internal/table"
)

const (
	RememberExpiry = 30 * 24 * time.Hour
	DefaultExpiry  = 24 * time.Hour
)

const (
	msgMissingCredentials = "Please enter both email and password"
	msgCheckFields        = "Please check the highlighted fields"
	msgInvalidCredentials = "Invalid credentials. Please try again."
	msgAccessDenied       = "Access Denied: You do not have permission to access the admin panel"
	msgLoggedOut          = "You have been successfully logged out."
	msgLogoutFailed       = "Failed to logout. Please try again."
	msgLogoutConfirm      = "Are you sure you want to logout? Any unsaved changes will be lost."
)

type LoginRequest struct {
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required"`
	Remember string `form:"remember"`
	Redirect string `form:"redirect"`
}

// RememberMe reports whether the checkbox was ticked. Browsers post "on" for a
// checkbox without a value.
func (r LoginRequest) RememberMe() bool {
	switch strings.ToLower(strings.TrimSpace(r.Remember)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

type Authenticator interface {
	Login(ctx context.Context, c catalog.Credentials) (catalog.LoginResult, error)
}

type SessionRotator interface {
	Rotate(c *gin.Context) (*session.Store, error)
}

type AuthHandler struct {
	backend  Authenticator
	sessions SessionRotator
	notifier notifications.Notifier
	confirms *table.Confirmations
	pages    *Pages
	roles    guard.RoleSet
	log      *slog.Logger
}

func NewAuthHandler(a Authenticator, sessions SessionRotator, n notifications.Notifier, confirms *table.Confirmations, pages *Pages, roles guard.RoleSet, log *slog.Logger) *AuthHandler {
	if len(roles) == 0 {
		roles = guard.DefaultRoles
	}
	if confirms == nil {
		confirms = table.NewConfirmations(0)
	}
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		backend:  a,
		sessions: sessions,
		notifier: n,
		confirms: confirms,
		pages:    pages,
		roles:    roles,
		log:      log,
	}
}

// LoginPage sends already authenticated visitors straight on.
func (h *AuthHandler) LoginPage(c *gin.Context) {
	ctx := c.Request.Context()
	redirect := c.Query("redirect")

	if st, ok := session.FromContext(ctx); ok && st.CheckExpiry(ctx) && st.IsAuth(ctx) {
		c.Redirect(http.StatusFound, guard.SafeRedirect(redirect, guard.DefaultLanding))
		return
	}

	h.render(c, http.StatusOK, LoginRequest{Redirect: redirect}, nil)
}

func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	var req LoginRequest
	if errs, ok := BindForm(c, &req); !ok {
		msg := msgCheckFields
		if errs["email"].Rule == "required" || errs["password"].Rule == "required" {
			msg = msgMissingCredentials
		}
		_ = notifications.Error(ctx, h.notifier, msg)
		h.render(c, http.StatusUnprocessableEntity, req, fieldMessages(errs, map[string]string{
			"email":    "Email",
			"password": "Password",
		}))
		return
	}

	res, err := h.backend.Login(ctx, catalog.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		// backend errors were already surfaced by the client
		var be *backend.Error
		if !errors.As(err, &be) {
			_ = notifications.Error(ctx, h.notifier, msgInvalidCredentials)
		}
		h.log.InfoContext(ctx, "login failed", "email", req.Email, "err", err)
		h.render(c, http.StatusUnauthorized, req, nil)
		return
	}

	if ok, _ := h.roles.Allowed(res.User.Role, "", ""); !ok {
		_ = notifications.Replace(ctx, h.notifier, notifications.NewToast(notifications.LevelError, msgAccessDenied))
		h.log.WarnContext(ctx, "login rejected for role", "user_id", res.User.ID, "role", res.User.Role)
		h.render(c, http.StatusForbidden, req, nil)
		return
	}

	st, err := h.sessions.Rotate(c)
	if err != nil {
		h.log.ErrorContext(ctx, "session rotation failed", "err", err)
		RespondUnavailable(c, "Session storage is unavailable. Please try again.")
		return
	}
	// the rotated session owns its own toast inbox
	ctx = c.Request.Context()

	expiry := DefaultExpiry
	if req.RememberMe() {
		expiry = RememberExpiry
	}
	if err := st.SetAuth(ctx, res.User, res.Token, expiry); err != nil {
		h.log.ErrorContext(ctx, "failed to persist session", "err", err)
		RespondUnavailable(c, "Session storage is unavailable. Please try again.")
		return
	}

	_ = notifications.Replace(ctx, h.notifier, notifications.NewToast(notifications.LevelSuccess, "Welcome back, "+res.DisplayName()+"!"))
	h.log.InfoContext(ctx, "login succeeded", "user_id", res.User.ID, "role", res.User.Role, "remember", req.RememberMe())

	seeOther(c, guard.SafeRedirect(req.Redirect, guard.DefaultLanding))
}

func (h *AuthHandler) render(c *gin.Context, status int, req LoginRequest, errs map[string]string) {
	if errs == nil {
		errs = map[string]string{}
	}
	h.pages.Render(c, status, "login.html", gin.H{
		"Title":    "Login",
		"Email":    req.Email,
		"Remember": req.RememberMe(),
		"Redirect": req.Redirect,
		"Errors":   errs,
	})
}

// LogoutPage asks for confirmation before the session is cleared.
func (h *AuthHandler) LogoutPage(c *gin.Context) {
	ctx := c.Request.Context()
	st, ok := session.FromContext(ctx)
	if !ok || !st.IsAuth(ctx) {
		c.Redirect(http.StatusFound, guard.LoginPath)
		return
	}

	p := h.confirms.Request(middlewares.SessionIDFrom(c), "session", "", "logout")
	h.pages.Render(c, http.StatusOK, "confirm.html", gin.H{
		"Title":        "Confirm Logout",
		"Heading":      "Confirm Logout",
		"Message":      msgLogoutConfirm,
		"Action":       "/logout",
		"Token":        p.Token,
		"ConfirmLabel": "Logout",
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	st, ok := session.FromContext(ctx)
	if !ok || !st.IsAuth(ctx) {
		seeOther(c, guard.LoginPath)
		return
	}

	if c.PostForm("cancel") != "" {
		h.confirms.Cancel(middlewares.SessionIDFrom(c), c.PostForm("token"))
		seeOther(c, guard.DefaultLanding)
		return
	}

	p, err := h.confirms.Confirm(middlewares.SessionIDFrom(c), c.PostForm("token"))
	if err != nil || p.Action != "logout" {
		_ = notifications.Warn(ctx, h.notifier, "Logout confirmation expired. Please try again.")
		seeOther(c, "/logout")
		return
	}

	if _, err := st.Logout(ctx); err != nil {
		h.log.ErrorContext(ctx, "logout failed", "err", err)
		_ = notifications.Error(ctx, h.notifier, msgLogoutFailed)
		seeOther(c, guard.DefaultLanding)
		return
	}

	_ = notifications.Replace(ctx, h.notifier, notifications.NewToast(notifications.LevelInfo, msgLoggedOut))
	seeOther(c, guard.LoginPath)
}

func (h *AuthHandler) Unauthorized(c *gin.Context) {
	h.pages.Render(c, http.StatusForbidden, "unauthorized.html", gin.H{"Title": "Access Denied"})
}

// fieldMessages turns bind errors into "<Label> <message>" keyed by field.
func fieldMessages(errs map[string]FieldError, labels map[string]string) map[string]string {
	out := make(map[string]string, len(errs))
	for name, fe := range errs {
		label := labels[name]
		if label == "" {
			label = "This field"
		}
		out[name] = label + " " + fe.Message
	}
	return out
}
