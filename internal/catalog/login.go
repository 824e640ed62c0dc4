package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/geocoder89/shopadmin/internal/session"
)

var ErrMalformedLogin = errors.New("login response carries no user or token")

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	User  session.User
	Token string
}

type loginUser struct {
	ID    string `json:"id"`
	OID   string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type loginBody struct {
	User  *loginUser `json:"user"`
	Token string     `json:"token"`
}

// Login calls POST /api/auth/login. The body may be {user, token} or {data: {user, token}}.
func (g *Gateway) Login(ctx context.Context, c Credentials) (LoginResult, error) {
	raw, err := g.api.Post(ctx, apiBase+"/auth/login", c, "")
	if err != nil {
		return LoginResult{}, err
	}

	var envelope struct {
		loginBody
		Data *loginBody `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return LoginResult{}, fmt.Errorf("decode login: %w", err)
	}

	body := envelope.loginBody
	if envelope.Data != nil && envelope.Data.User != nil {
		body = *envelope.Data
	}
	if body.User == nil || body.Token == "" {
		return LoginResult{}, ErrMalformedLogin
	}

	id := body.User.ID
	if id == "" {
		id = body.User.OID
	}
	return LoginResult{
		User: session.User{
			ID:    id,
			Name:  body.User.Name,
			Email: body.User.Email,
			Role:  body.User.Role,
		},
		Token: body.Token,
	}, nil
}

// DisplayName is the name shown in the welcome toast.
func (r LoginResult) DisplayName() string {
	if r.User.Name != "" {
		return r.User.Name
	}
	return r.User.Email
}
