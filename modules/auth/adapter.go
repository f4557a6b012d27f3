package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/mneiter/nuro/domain/user"
)

// Port is the interface other modules use to reach authentication: it
// resolves a bearer credential to an owner and issues tokens for the
// public auth endpoints.
type Port interface {
	Register(ctx context.Context, email, password string) (TokenResponse, error)
	Login(ctx context.Context, email, password string) (TokenResponse, error)
	ValidateToken(ctx context.Context, token string) (*user.Claims, error)
	GetUser(ctx context.Context, userID string) (GetUserResponse, error)
}

// Adapter implements Port over the mono service container.
type Adapter struct {
	container mono.ServiceContainer
}

var _ Port = (*Adapter)(nil)

// NewAdapter creates an Adapter bound to the auth module's container.
func NewAdapter(container mono.ServiceContainer) *Adapter {
	return &Adapter{container: container}
}

// Register creates an account and returns its first access token.
func (a *Adapter) Register(ctx context.Context, email, password string) (TokenResponse, error) {
	req := RegisterRequest{Email: email, Password: password}
	var resp TokenResponse
	if err := call(a, ctx, "register", &req, &resp); err != nil {
		return TokenResponse{}, err
	}
	return resp, nil
}

// Login exchanges credentials for an access token.
func (a *Adapter) Login(ctx context.Context, email, password string) (TokenResponse, error) {
	req := LoginRequest{Email: email, Password: password}
	var resp TokenResponse
	if err := call(a, ctx, "login", &req, &resp); err != nil {
		return TokenResponse{}, err
	}
	return resp, nil
}

// ValidateToken resolves a bearer token to the authenticated owner.
func (a *Adapter) ValidateToken(ctx context.Context, token string) (*user.Claims, error) {
	req := ValidateTokenRequest{Token: token}
	var resp ValidateTokenResponse
	if err := call(a, ctx, "validate-token", &req, &resp); err != nil {
		return nil, err
	}
	if !resp.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, resp.Error)
	}
	return &user.Claims{
		UserID: resp.UserID,
		Email:  resp.Email,
	}, nil
}

// GetUser retrieves the public view of a user.
func (a *Adapter) GetUser(ctx context.Context, userID string) (GetUserResponse, error) {
	req := GetUserRequest{UserID: userID}
	var resp GetUserResponse
	if err := call(a, ctx, "get-user", &req, &resp); err != nil {
		return GetUserResponse{}, err
	}
	return resp, nil
}

func call[T1 any, T2 any](a *Adapter, ctx context.Context, service string, req *T1, resp *T2) error {
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	return nil
}
