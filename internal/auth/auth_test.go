package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kokodi-server/internal/config"
	"github.com/kokodi-server/internal/domain"
	"github.com/kokodi-server/internal/memory"
)

func newTestService() (*Service, *memory.Store) {
	store := memory.NewStore()
	cfg := &config.AuthConfig{
		JWTSecret:  "test-secret",
		TokenTTL:   time.Hour,
		BCryptCost: bcrypt.MinCost,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, cfg, logger), store
}

func TestRegisterAndLogin(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{Username: "alice", Password: "hunter2x", Name: "Alice"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("Register returned empty token")
	}

	user, err := store.UserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("user not stored: %v", err)
	}
	if user.PasswordHash == "hunter2x" || user.PasswordHash == "" {
		t.Fatal("password stored in the clear or not at all")
	}

	login, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "hunter2x"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	username, err := svc.VerifyToken(login.Token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if username != "alice" {
		t.Errorf("token subject = %q, want alice", username)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name string
		req  RegisterRequest
	}{
		{"short username", RegisterRequest{Username: "ab", Password: "secret1", Name: "Alice"}},
		{"long username", RegisterRequest{Username: strings.Repeat("a", 51), Password: "secret1", Name: "Alice"}},
		{"short password", RegisterRequest{Username: "alice", Password: "pw", Name: "Alice"}},
		{"short name", RegisterRequest{Username: "alice", Password: "secret1", Name: "A"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tc.req); !errors.Is(err, domain.ErrInvalidRequest) {
				t.Errorf("Register(%+v) = %v, want ErrInvalidRequest", tc.req, err)
			}
		})
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	req := RegisterRequest{Username: "alice", Password: "secret1", Name: "Alice"}
	if _, err := svc.Register(ctx, req); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if _, err := svc.Register(ctx, req); !errors.Is(err, domain.ErrUsernameTaken) {
		t.Errorf("second Register = %v, want ErrUsernameTaken", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterRequest{Username: "alice", Password: "secret1", Name: "Alice"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Unknown user and wrong password are indistinguishable.
	if _, err := svc.Login(ctx, LoginRequest{Username: "nobody", Password: "secret1"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("login unknown user = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "wrong-password"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("login wrong password = %v, want ErrInvalidCredentials", err)
	}
}

func TestVerifyTokenRejectsTampering(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{Username: "alice", Password: "secret1", Name: "Alice"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.VerifyToken("not-a-token"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("garbage token = %v, want ErrInvalidToken", err)
	}

	tampered := resp.Token[:len(resp.Token)-2] + "xx"
	if _, err := svc.VerifyToken(tampered); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("tampered token = %v, want ErrInvalidToken", err)
	}

	// A token signed under a different secret must not verify.
	other, _ := newTestService()
	other.cfg = &config.AuthConfig{JWTSecret: "other-secret", TokenTTL: time.Hour, BCryptCost: bcrypt.MinCost}
	foreign, err := other.issueToken("alice")
	if err != nil {
		t.Fatalf("issuing foreign token: %v", err)
	}
	if _, err := svc.VerifyToken(foreign.Token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("foreign-secret token = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyTokenExpiry(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	issued := time.Now()
	svc.now = func() time.Time { return issued }

	resp, err := svc.Register(ctx, RegisterRequest{Username: "alice", Password: "secret1", Name: "Alice"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.VerifyToken(resp.Token); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}

	svc.now = func() time.Time { return issued.Add(2 * time.Hour) }
	if _, err := svc.VerifyToken(resp.Token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("expired token = %v, want ErrInvalidToken", err)
	}
}
