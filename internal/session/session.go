package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// StorageName is the fixed persistence name; each browser session is stored under StorageName + ":" + sid.
const StorageName = "auth-storage"

// DefaultExpiry applies when SetAuth is called without an expiry.
const DefaultExpiry = 24 * time.Hour

var (
	ErrNotFound   = errors.New("session not found")
	ErrEmptyToken = errors.New("session token is empty")
)

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Session is the persisted auth record. IsAuthenticated implies Token != "".
type Session struct {
	User            *User     `json:"user"`
	Token           string    `json:"token"`
	ExpireAt        time.Time `json:"expireAt"`
	IsAuthenticated bool      `json:"isAuthenticated"`
}

func (s Session) Empty() bool {
	return s.User == nil && s.Token == "" && !s.IsAuthenticated && s.ExpireAt.IsZero()
}

// Persister is the durable key-value store behind the session store.
type Persister interface {
	Load(ctx context.Context, key string) (Session, error)
	Save(ctx context.Context, key string, s Session) error
	Delete(ctx context.Context, key string) error
}

// Store holds the auth state of one browser session. The persisted entry is the source of truth.
type Store struct {
	mu      sync.Mutex
	key     string
	persist Persister
	now     func() time.Time
	state   Session
}

func (s *Store) Key() string { return s.key }

// SetAuth records a successful login. expireAt = now + expiry.
func (s *Store) SetAuth(ctx context.Context, user User, token string, expiry time.Duration) error {
	if token == "" {
		return ErrEmptyToken
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := user
	s.state = Session{
		User:            &u,
		Token:           token,
		ExpireAt:        s.now().Add(expiry),
		IsAuthenticated: true,
	}

	return s.persist.Save(ctx, s.key, s.state)
}

// Logout clears all fields and purges the persisted entry. It reports whether
// there was anything to clear, so callers can tell the first logout from repeats.
func (s *Store) Logout(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.logoutLocked(ctx)
}

func (s *Store) logoutLocked(ctx context.Context) (bool, error) {
	cleared := !s.state.Empty()
	s.state = Session{}

	if err := s.persist.Delete(ctx, s.key); err != nil && !errors.Is(err, ErrNotFound) {
		return cleared, err
	}
	return cleared, nil
}

// CheckExpiry returns false, and logs out, once now is past ExpireAt.
func (s *Store) CheckExpiry(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.checkExpiryLocked(ctx)
}

func (s *Store) checkExpiryLocked(ctx context.Context) bool {
	if !s.state.ExpireAt.IsZero() && s.now().After(s.state.ExpireAt) {
		_, _ = s.logoutLocked(ctx)
		return false
	}
	return true
}

func (s *Store) IsAuth(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.IsAuthenticated && s.checkExpiryLocked(ctx)
}

func (s *Store) HasRole(role string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.User != nil && s.state.User.Role == role
}

func (s *Store) HasAnyRole(roles ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.User != nil && slices.Contains(roles, s.state.User.Role)
}

func (s *Store) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.User == nil {
		return nil
	}
	u := *s.state.User
	return &u
}

func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.Token
}

func (s *Store) Snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.state
	if out.User != nil {
		u := *out.User
		out.User = &u
	}
	return out
}

// Service opens per-browser stores over one persister.
type Service struct {
	persist Persister
	now     func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(p Persister, opts ...Option) *Service {
	s := &Service{persist: p, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func KeyFor(sid string) string {
	return StorageName + ":" + sid
}

// Open loads the persisted session for sid. A missing entry yields an empty store.
func (svc *Service) Open(ctx context.Context, sid string) (*Store, error) {
	key := KeyFor(sid)

	state, err := svc.persist.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		state = Session{}
	}

	// a corrupt entry claiming auth without a token is not trusted
	if state.IsAuthenticated && state.Token == "" {
		state = Session{}
	}

	return &Store{
		key:     key,
		persist: svc.persist,
		now:     svc.now,
		state:   state,
	}, nil
}

// Ping checks the persister when it supports it.
func (svc *Service) Ping(ctx context.Context) error {
	if p, ok := svc.persist.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
