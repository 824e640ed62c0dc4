package table

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/geocoder89/shopadmin/internal/cache"
)

var ErrConfirmationExpired = errors.New("confirmation expired or unknown")

const DefaultConfirmationTTL = 5 * time.Minute

// Pending is a destructive action waiting for the operator to confirm it.
type Pending struct {
	Token  string
	Owner  string
	Entity string
	ID     string
	Action string
}

// Confirmations issues single-use tokens for two-step actions such as delete.
type Confirmations struct {
	c *cache.Cache
}

func NewConfirmations(ttl time.Duration, opts ...cache.Option) *Confirmations {
	if ttl <= 0 {
		ttl = DefaultConfirmationTTL
	}
	return &Confirmations{c: cache.New(ttl, opts...)}
}

// Request records a pending action for owner (the browser session) and returns its token.
func (c *Confirmations) Request(owner, entity, id, action string) Pending {
	p := Pending{
		Token:  uuid.NewString(),
		Owner:  owner,
		Entity: entity,
		ID:     id,
		Action: action,
	}
	c.c.Set(p.Token, p)
	return p
}

// Peek returns the pending action without consuming it.
func (c *Confirmations) Peek(owner, token string) (Pending, error) {
	v, ok := c.c.Get(token)
	if !ok {
		return Pending{}, ErrConfirmationExpired
	}
	p := v.(Pending)
	if p.Owner != owner {
		return Pending{}, ErrConfirmationExpired
	}
	return p, nil
}

// Confirm consumes the token. It succeeds at most once per token.
func (c *Confirmations) Confirm(owner, token string) (Pending, error) {
	if _, err := c.Peek(owner, token); err != nil {
		return Pending{}, err
	}
	v, ok := c.c.Take(token)
	if !ok {
		return Pending{}, ErrConfirmationExpired
	}
	return v.(Pending), nil
}

// Cancel drops the token; nothing is sent to the backend.
func (c *Confirmations) Cancel(owner, token string) {
	if _, err := c.Peek(owner, token); err == nil {
		c.c.Delete(token)
	}
}
