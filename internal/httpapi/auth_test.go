package httpapi

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"shopmate/backend/internal/domain"
	"shopmate/backend/internal/store"
	"shopmate/backend/internal/store/memory"
)

func TestRegisterStoresBcryptHash(t *testing.T) {
	repo := memory.New()
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	user, err := auth.Register(context.Background(), domain.RegisterRequest{Username: "siti", Password: "rahasia123", FullName: "Siti"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID == "" || user.Username != "siti" {
		t.Fatalf("unexpected user: %+v", user)
	}

	stored, err := repo.GetUserByUsername(context.Background(), "siti")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !isPasswordHash(stored.Password) || stored.Password == "rahasia123" {
		t.Fatalf("expected bcrypt hash, got %q", stored.Password)
	}

	_, err = auth.Register(context.Background(), domain.RegisterRequest{Username: "SITI", Password: "another123"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for duplicate username, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, memory.New())

	cases := []domain.RegisterRequest{
		{Username: "ab", Password: "rahasia123"},
		{Username: "with space", Password: "rahasia123"},
		{Username: "budi", Password: "123"},
	}
	for _, req := range cases {
		if _, err := auth.Register(context.Background(), req); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("expected invalid input for %+v, got %v", req, err)
		}
	}
}

func TestLoginIssuesTokenForUserID(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, memory.New())
	user, err := auth.Register(context.Background(), domain.RegisterRequest{Username: "andi", Password: "rahasia123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := auth.Login(context.Background(), domain.LoginRequest{Username: "andi", Password: "salah"}); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := auth.Login(context.Background(), domain.LoginRequest{Username: "nobody", Password: "rahasia123"}); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}

	resp, err := auth.Login(context.Background(), domain.LoginRequest{Username: "andi", Password: "rahasia123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.UserID != user.ID || actor.Username != "andi" {
		t.Fatalf("unexpected actor: %+v", actor)
	}

	me, err := auth.Me(context.Background(), actor)
	if err != nil || me.ID != user.ID {
		t.Fatalf("me: %+v %v", me, err)
	}
}

func TestParseTokenRejectsForeignSignatures(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, memory.New())
	other := NewAuthManager("another-secret", time.Hour, memory.New())

	forged, err := other.sign("user-1", "mallory", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(forged); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}

	expired, err := auth.sign("user-1", "mallory", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(expired); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}

	unsigned := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, jwtlib.RegisteredClaims{Subject: "user-1"})
	raw, err := unsigned.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := auth.ParseToken(raw); err == nil || !strings.Contains(err.Error(), "invalid") {
		t.Fatalf("expected alg=none token to be rejected, got %v", err)
	}
}
