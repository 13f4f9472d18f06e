package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-client/internal/model"
)

type fakeGW struct {
	loginResp    *model.AuthResponse
	loginErr     error
	registerResp *model.AuthResponse
	meUser       *model.User
	logoutErr    error
	logoutCalled bool
}

func (f *fakeGW) Login(_ context.Context, _ model.LoginRequest) (*model.AuthResponse, error) {
	return f.loginResp, f.loginErr
}

func (f *fakeGW) Register(_ context.Context, _ model.RegisterRequest) (*model.AuthResponse, error) {
	return f.registerResp, nil
}

func (f *fakeGW) Me(_ context.Context) (*model.User, error) {
	if f.meUser == nil {
		return nil, errors.New("no user")
	}
	return f.meUser, nil
}

func (f *fakeGW) Logout(_ context.Context) error {
	f.logoutCalled = true
	return f.logoutErr
}

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "session.json"))
}

func studentUser() *model.User {
	return &model.User{ID: 1, Name: "Demo", Username: "demo", Email: "demo@example.com", Role: model.RoleStudent}
}

func TestStoreRoundTrip(t *testing.T) {
	store := testStore(t)

	if sess, err := store.Load(); err != nil || sess != nil {
		t.Fatalf("fresh store load = (%v, %v), want (nil, nil)", sess, err)
	}

	if err := store.Save(Session{Token: "opaque-token", User: studentUser()}); err != nil {
		t.Fatalf("save: %v", err)
	}

	sess, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sess.Token != "opaque-token" || sess.User == nil || sess.User.Email != "demo@example.com" {
		t.Fatalf("loaded session = %+v", sess)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if sess, _ := store.Load(); sess != nil {
		t.Fatal("session survived clear")
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("second clear must be a no-op: %v", err)
	}
}

func TestHydrateFromStore(t *testing.T) {
	store := testStore(t)
	if err := store.Save(Session{Token: "opaque-token", User: studentUser()}); err != nil {
		t.Fatalf("save: %v", err)
	}

	c := NewContext(store, zerolog.Nop())
	if !c.IsAuthenticated() {
		t.Fatal("context should hydrate the persisted session")
	}
	if got := c.Token(); got != "opaque-token" {
		t.Fatalf("token = %q", got)
	}
	if !c.IsStudent() || c.IsAdmin() {
		t.Fatal("role predicates wrong for student")
	}
}

func TestHydrateDiscardsExpiredToken(t *testing.T) {
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	tokenStr, err := expired.SignedString([]byte("whatever"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	store := testStore(t)
	if err := store.Save(Session{Token: tokenStr, User: studentUser()}); err != nil {
		t.Fatalf("save: %v", err)
	}

	c := NewContext(store, zerolog.Nop())
	if c.IsAuthenticated() {
		t.Fatal("expired token must not hydrate")
	}
	if sess, _ := store.Load(); sess != nil {
		t.Fatal("expired session must be cleared from disk")
	}
}

func TestLoginAdoptsAndPersists(t *testing.T) {
	store := testStore(t)
	gw := &fakeGW{loginResp: &model.AuthResponse{User: *studentUser(), Token: "fresh-token"}}

	c := NewContext(store, zerolog.Nop())
	c.AttachGateway(gw)

	user, err := c.Login(context.Background(), model.LoginRequest{Email: "demo@example.com", Password: "x"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != 1 {
		t.Fatalf("user = %+v", user)
	}
	if got := c.Token(); got != "fresh-token" {
		t.Fatalf("token = %q", got)
	}

	// A second context sees the persisted session.
	again := NewContext(store, zerolog.Nop())
	if !again.IsAuthenticated() {
		t.Fatal("session did not persist across contexts")
	}
}

func TestLoginFailureLeavesStateEmpty(t *testing.T) {
	store := testStore(t)
	gw := &fakeGW{loginErr: errors.New("bad credentials")}

	c := NewContext(store, zerolog.Nop())
	c.AttachGateway(gw)

	if _, err := c.Login(context.Background(), model.LoginRequest{}); err == nil {
		t.Fatal("expected login error")
	}
	if c.IsAuthenticated() || c.Token() != "" {
		t.Fatal("failed login must not adopt any state")
	}
}

func TestLogoutClearsLocalStateEvenOnAPIError(t *testing.T) {
	store := testStore(t)
	gw := &fakeGW{
		loginResp: &model.AuthResponse{User: *studentUser(), Token: "fresh-token"},
		logoutErr: errors.New("server unreachable"),
	}

	c := NewContext(store, zerolog.Nop())
	c.AttachGateway(gw)
	if _, err := c.Login(context.Background(), model.LoginRequest{}); err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := c.Logout(context.Background()); err == nil {
		t.Fatal("expected logout error to surface")
	}
	if !gw.logoutCalled {
		t.Fatal("logout must hit the API")
	}
	if c.IsAuthenticated() {
		t.Fatal("local state must clear regardless of the API outcome")
	}
	if sess, _ := store.Load(); sess != nil {
		t.Fatal("persisted session must clear regardless of the API outcome")
	}
}

func TestForceLogout(t *testing.T) {
	store := testStore(t)
	if err := store.Save(Session{Token: "opaque-token", User: studentUser()}); err != nil {
		t.Fatalf("save: %v", err)
	}

	c := NewContext(store, zerolog.Nop())
	c.ForceLogout()

	if c.IsAuthenticated() || c.Token() != "" {
		t.Fatal("force logout must clear the session")
	}
}

func TestRefreshUpdatesUser(t *testing.T) {
	store := testStore(t)
	renamed := studentUser()
	renamed.Name = "Renamed"
	gw := &fakeGW{
		loginResp: &model.AuthResponse{User: *studentUser(), Token: "fresh-token"},
		meUser:    renamed,
	}

	c := NewContext(store, zerolog.Nop())
	c.AttachGateway(gw)
	if _, err := c.Login(context.Background(), model.LoginRequest{}); err != nil {
		t.Fatalf("login: %v", err)
	}

	user, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if user.Name != "Renamed" || c.CurrentUser().Name != "Renamed" {
		t.Fatal("refresh did not update the current user")
	}
}

func TestAdminPredicate(t *testing.T) {
	store := testStore(t)
	admin := &model.User{ID: 2, Role: model.RoleAdmin}
	if err := store.Save(Session{Token: "opaque-token", User: admin}); err != nil {
		t.Fatalf("save: %v", err)
	}

	c := NewContext(store, zerolog.Nop())
	if !c.IsAdmin() || c.IsStudent() {
		t.Fatal("role predicates wrong for admin")
	}
}
