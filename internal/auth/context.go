// Package auth holds the process-wide authentication context: one injected
// object owning the current user, the bearer token, and the role predicates
// that route guards and the request interceptor read. It hydrates from the
// persisted token before the first protected call.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-client/internal/model"
)

// Gateway is the slice of the API the auth context needs.
type Gateway interface {
	Login(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error)
	Register(ctx context.Context, req model.RegisterRequest) (*model.AuthResponse, error)
	Me(ctx context.Context) (*model.User, error)
	Logout(ctx context.Context) error
}

// Context is the shared auth state. Safe for concurrent use.
type Context struct {
	mu    sync.RWMutex
	token string
	user  *model.User

	gw    Gateway
	store *Store
	log   zerolog.Logger
}

// NewContext builds the auth context and hydrates it from the store. A
// locally expired JWT is discarded immediately instead of being sent with
// the first request.
func NewContext(store *Store, log zerolog.Logger) *Context {
	c := &Context{
		store: store,
		log:   log.With().Str("component", "auth").Logger(),
	}

	sess, err := store.Load()
	if err != nil {
		c.log.Warn().Err(err).Msg("Could not hydrate session")
		return c
	}
	if sess == nil {
		return c
	}
	if tokenExpired(sess.Token) {
		c.log.Info().Msg("Persisted token expired, clearing session")
		_ = store.Clear()
		return c
	}

	c.token = sess.Token
	c.user = sess.User
	return c
}

// AttachGateway wires the API client in after construction. The gateway
// needs the context as its token source, so the two are linked in two steps.
func (c *Context) AttachGateway(gw Gateway) { c.gw = gw }

// Token returns the current bearer token, or "". Implements the gateway's
// TokenSource.
func (c *Context) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// CurrentUser returns the logged-in user, or nil.
func (c *Context) CurrentUser() *model.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// IsAuthenticated reports whether a user is logged in.
func (c *Context) IsAuthenticated() bool { return c.CurrentUser() != nil }

// IsAdmin reports whether the current user holds the admin role.
func (c *Context) IsAdmin() bool { return c.hasRole(model.RoleAdmin) }

// IsStudent reports whether the current user holds the student role.
func (c *Context) IsStudent() bool { return c.hasRole(model.RoleStudent) }

func (c *Context) hasRole(role model.Role) bool {
	u := c.CurrentUser()
	return u != nil && u.Role == role
}

// Login authenticates and persists the resulting session.
func (c *Context) Login(ctx context.Context, req model.LoginRequest) (*model.User, error) {
	resp, err := c.gw.Login(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	c.adopt(resp)
	return &resp.User, nil
}

// Register creates an account and adopts the returned session.
func (c *Context) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	resp, err := c.gw.Register(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	c.adopt(resp)
	return &resp.User, nil
}

// Refresh re-fetches the current user from the API and updates local state.
func (c *Context) Refresh(ctx context.Context) (*model.User, error) {
	user, err := c.gw.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch current user: %w", err)
	}

	c.mu.Lock()
	c.user = user
	token := c.token
	c.mu.Unlock()

	if err := c.store.Save(Session{Token: token, User: user}); err != nil {
		c.log.Warn().Err(err).Msg("Could not persist session")
	}
	return user, nil
}

// Logout invalidates the token server-side and clears local state. Local
// state is cleared even when the API call fails.
func (c *Context) Logout(ctx context.Context) error {
	err := c.gw.Logout(ctx)
	c.clear()
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// ForceLogout clears local state without an API call. Wired as the
// gateway's 401 hook: any unauthorized response ends the session globally.
func (c *Context) ForceLogout() {
	c.log.Info().Msg("Session invalidated, forcing logout")
	c.clear()
}

func (c *Context) adopt(resp *model.AuthResponse) {
	c.mu.Lock()
	c.token = resp.Token
	c.user = &resp.User
	c.mu.Unlock()

	if err := c.store.Save(Session{Token: resp.Token, User: &resp.User}); err != nil {
		c.log.Warn().Err(err).Msg("Could not persist session")
	}
}

func (c *Context) clear() {
	c.mu.Lock()
	c.token = ""
	c.user = nil
	c.mu.Unlock()

	if err := c.store.Clear(); err != nil {
		c.log.Warn().Err(err).Msg("Could not clear persisted session")
	}
}

// tokenExpired checks the exp claim without verifying the signature — the
// server stays the authority, this only avoids a guaranteed 401 on startup.
// Opaque (non-JWT) tokens are never treated as expired locally.
func tokenExpired(token string) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Before(time.Now())
}
