package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"financas/internal/core"
	"financas/internal/store/memory"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newTestAuth(t *testing.T) (*Service, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	svc, err := NewService(memory.New(), Config{
		Secret:        "0123456789abcdef0123",
		SessionTTL:    time.Hour,
		RememberMeTTL: 24 * time.Hour,
	}, WithCost(bcrypt.MinCost), WithClock(c.Now))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, c
}

func TestNewService_Config(t *testing.T) {
	if _, err := NewService(memory.New(), Config{Secret: "short", SessionTTL: time.Hour}); err == nil {
		t.Error("expected error for short secret")
	}
	if _, err := NewService(memory.New(), Config{Secret: strings.Repeat("x", 16)}); err == nil {
		t.Error("expected error for missing TTL")
	}
}

func TestRegister(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "  Ana@Example.com ", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.ID == "" || u.Email != "ana@example.com" {
		t.Errorf("unexpected user %+v", u)
	}
	if string(u.PasswordHash) == "secret1" || len(u.PasswordHash) == 0 {
		t.Error("password must be hashed")
	}

	if _, err := svc.Register(ctx, "ANA@example.com", "another"); !errors.Is(err, ErrEmailInUse) {
		t.Errorf("duplicate register = %v, want ErrEmailInUse", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestAuth(t)
	tests := []struct {
		email, password string
		want            error
	}{
		{"not-an-email", "secret1", ErrInvalidEmail},
		{"Ana <ana@example.com>", "secret1", ErrInvalidEmail},
		{"ana@localhost", "secret1", ErrInvalidEmail},
		{"ana@example.com", "12345", ErrWeakPassword},
		{"ana@example.com", strings.Repeat("a", 73), ErrWeakPassword},
	}
	for _, tt := range tests {
		if _, err := svc.Register(context.Background(), tt.email, tt.password); !errors.Is(err, tt.want) {
			t.Errorf("Register(%q, %q) = %v, want %v", tt.email, tt.password, err, tt.want)
		}
	}
}

func TestLoginAndCurrentUser(t *testing.T) {
	svc, c := newTestAuth(t)
	ctx := context.Background()
	registered, _ := svc.Register(ctx, "ana@example.com", "secret1")

	if _, _, err := svc.Login(ctx, "ana@example.com", "wrong-pass", false); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password = %v", err)
	}
	if _, _, err := svc.Login(ctx, "bob@example.com", "secret1", false); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user = %v", err)
	}

	sess, u, err := svc.Login(ctx, "ANA@example.com", "secret1", false)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.ID != registered.ID || sess.UserID != registered.ID {
		t.Errorf("session for wrong user: %+v", sess)
	}
	if !sess.ExpiresAt.Equal(c.t.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v", sess.ExpiresAt)
	}

	current, err := svc.CurrentUser(ctx, sess.Token)
	if err != nil || current.ID != registered.ID {
		t.Fatalf("CurrentUser = %+v, %v", current, err)
	}

	c.t = c.t.Add(2 * time.Hour)
	if _, err := svc.CurrentUser(ctx, sess.Token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expired token = %v, want ErrUnauthorized", err)
	}
}

func TestLogin_RememberMe(t *testing.T) {
	svc, c := newTestAuth(t)
	ctx := context.Background()
	_, _ = svc.Register(ctx, "ana@example.com", "secret1")

	sess, _, err := svc.Login(ctx, "ana@example.com", "secret1", true)
	if err != nil {
		t.Fatal(err)
	}
	if !sess.RememberMe || !sess.ExpiresAt.Equal(c.t.Add(24*time.Hour)) {
		t.Errorf("remember-me session = %+v", sess)
	}

	c.t = c.t.Add(2 * time.Hour)
	if _, err := svc.CurrentUser(ctx, sess.Token); err != nil {
		t.Errorf("remember-me token should outlive the short TTL: %v", err)
	}
}

func TestLogout(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()
	_, _ = svc.Register(ctx, "ana@example.com", "secret1")
	sess, _, _ := svc.Login(ctx, "ana@example.com", "secret1", false)
	other, _, _ := svc.Login(ctx, "ana@example.com", "secret1", false)

	if err := svc.Logout(ctx, sess.Token); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CurrentUser(ctx, sess.Token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("revoked token = %v", err)
	}
	if _, err := svc.CurrentUser(ctx, other.Token); err != nil {
		t.Errorf("other sessions must stay valid: %v", err)
	}
	if err := svc.Logout(ctx, "garbage"); err != nil {
		t.Errorf("logout with invalid token = %v", err)
	}
}

func TestCurrentUser_RejectsTampering(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()
	_, _ = svc.Register(ctx, "ana@example.com", "secret1")
	sess, _, _ := svc.Login(ctx, "ana@example.com", "secret1", false)

	forger, _ := newTestAuth(t)
	forger.secret = []byte("another-secret-of-16+")
	forged, _ := forger.issue(mustUser(t, svc, "ana@example.com"), false)

	for name, token := range map[string]string{
		"empty":      "",
		"garbage":    "abc.def.ghi",
		"truncated":  sess.Token[:len(sess.Token)-4],
		"bad secret": forged.Token,
	} {
		if _, err := svc.CurrentUser(ctx, token); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("%s: err = %v, want ErrUnauthorized", name, err)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail(" Ana.Silva@Example.COM ")
	if err != nil || got != "ana.silva@example.com" {
		t.Errorf("NormalizeEmail = %q, %v", got, err)
	}
}

func mustUser(t *testing.T, svc *Service, email string) core.User {
	t.Helper()
	u, err := svc.users.UserByEmail(context.Background(), email)
	if err != nil {
		t.Fatal(err)
	}
	return u
}
