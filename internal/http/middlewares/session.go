package middlewares

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/shopadmin/internal/auth"
	"github.com/geocoder89/shopadmin/internal/notifications"
	"github.com/geocoder89/shopadmin/internal/observability"
	"github.com/geocoder89/shopadmin/internal/session"
)

const SessionCookie = "admin_session"

// Sessions binds every request to the browser session named by the signed cookie.
type Sessions struct {
	svc    *session.Service
	tokens *auth.Manager
	secure bool
	log    *slog.Logger
}

func NewSessions(svc *session.Service, tokens *auth.Manager, secure bool, log *slog.Logger) *Sessions {
	if log == nil {
		log = slog.Default()
	}
	return &Sessions{svc: svc, tokens: tokens, secure: secure, log: log}
}

// Middleware verifies the cookie, issuing a fresh one when it is missing or invalid,
// then opens the session store and binds it and the toast inbox to the request context.
func (s *Sessions) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := ""
		if raw, err := c.Cookie(SessionCookie); err == nil && raw != "" {
			if v, err := s.tokens.VerifySession(raw); err == nil {
				sid = v
			} else {
				s.log.DebugContext(c.Request.Context(), "session cookie rejected", "err", err)
			}
		}

		if sid == "" {
			var err error
			if sid, err = s.issue(c); err != nil {
				s.abort(c, err)
				return
			}
		}

		if _, err := s.bind(c, sid); err != nil {
			s.abort(c, err)
			return
		}

		c.Next()
	}
}

// Rotate moves the browser to a new session id and clears the old entry.
// Login calls it so a pre-login id is never authenticated.
func (s *Sessions) Rotate(c *gin.Context) (*session.Store, error) {
	ctx := c.Request.Context()
	if old, ok := session.FromContext(ctx); ok {
		if _, err := old.Logout(ctx); err != nil {
			s.log.WarnContext(ctx, "failed to clear previous session", "err", err)
		}
	}

	sid, err := s.issue(c)
	if err != nil {
		return nil, err
	}
	return s.bind(c, sid)
}

func (s *Sessions) issue(c *gin.Context) (string, error) {
	sid := auth.NewSessionID()
	raw, expiresAt, err := s.tokens.Issue(sid)
	if err != nil {
		return "", fmt.Errorf("sign session cookie: %w", err)
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		SessionCookie,
		raw,
		int(time.Until(expiresAt).Seconds()),
		"/",
		"",
		s.secure,
		true, // HttpOnly.
	)
	return sid, nil
}

func (s *Sessions) bind(c *gin.Context, sid string) (*session.Store, error) {
	st, err := s.svc.Open(c.Request.Context(), sid)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	ctx := session.WithStore(c.Request.Context(), st)
	ctx = notifications.WithInbox(ctx, sid)
	ctx = observability.WithSessionID(ctx, sid)
	c.Request = c.Request.WithContext(ctx)
	c.Set(CtxSessionID, sid)
	return st, nil
}

func (s *Sessions) abort(c *gin.Context, err error) {
	s.log.ErrorContext(c.Request.Context(), "session unavailable", "err", err)
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
		"error": gin.H{
			"code":      "session_unavailable",
			"message":   "Session storage is unavailable. Please try again.",
			"requestId": c.GetString(CtxRequestID),
		},
	})
}
