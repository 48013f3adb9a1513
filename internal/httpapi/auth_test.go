package httpapi

import (
	"context"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"svetafor/backend/internal/domain"
)

// fakeUserStore records password upgrades so tests can assert that legacy
// plain-text passwords get rehashed in place.
type fakeUserStore struct {
	users    []domain.UserAccount
	upgraded map[string]string
}

func (f *fakeUserStore) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	return f.users, nil
}

func (f *fakeUserStore) UpdateUserPassword(_ context.Context, username string, password string) error {
	if f.upgraded == nil {
		f.upgraded = make(map[string]string)
	}
	f.upgraded[username] = password
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	userStore := &fakeUserStore{
		users: []domain.UserAccount{
			{Username: "legacy", Password: "plain-text-pwd", Role: domain.RoleSeller, Stores: []string{"store-main"}, Active: true},
		},
	}

	auth := NewAuthManager("test-secret-key", time.Hour, userStore)

	hash, ok := userStore.upgraded["legacy"]
	if !ok {
		t.Fatalf("expected legacy password to be upgraded in the store")
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Fatalf("expected bcrypt hash, got %q", hash)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte("plain-text-pwd")) != nil {
		t.Fatalf("upgraded hash does not verify the original password")
	}

	if _, err := auth.Login(domain.LoginRequest{Username: "legacy", Password: "plain-text-pwd"}); err != nil {
		t.Fatalf("login with legacy password failed after upgrade: %v", err)
	}
}

func TestLoginTokenCarriesStores(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sellerpass1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	userStore := &fakeUserStore{
		users: []domain.UserAccount{
			{Username: "aziza", Password: string(hash), Role: domain.RoleSeller, Stores: []string{"store-main", "store-branch"}, Active: true},
		},
	}
	auth := NewAuthManager("test-secret-key", time.Hour, userStore)

	resp, err := auth.Login(domain.LoginRequest{Username: "aziza", Password: "sellerpass1"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Username != "aziza" || actor.Role != domain.RoleSeller {
		t.Fatalf("unexpected actor: %+v", actor)
	}
	if len(actor.Stores) != 2 || !actor.CanAccessStore("store-branch") {
		t.Fatalf("expected store grants in token, got %+v", actor.Stores)
	}
	if actor.CanAccessStore("store-unrelated") {
		t.Fatalf("actor should not reach unassigned stores")
	}
}

func TestLoginInactiveAccountRejected(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("oldpass99"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	userStore := &fakeUserStore{
		users: []domain.UserAccount{
			{Username: "fired", Password: string(hash), Role: domain.RoleSeller, Active: false},
		},
	}
	auth := NewAuthManager("test-secret-key", time.Hour, userStore)

	if _, err := auth.Login(domain.LoginRequest{Username: "fired", Password: "oldpass99"}); err == nil {
		t.Fatalf("expected inactive account to be rejected")
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	userStore := &fakeUserStore{}
	signer := NewAuthManager("secret-one", time.Hour, userStore)
	verifier := NewAuthManager("secret-two", time.Hour, userStore)

	token, err := signer.sign("seller", domain.RoleSeller, []string{"store-main"}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := verifier.ParseToken(token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, &fakeUserStore{})

	token, err := auth.sign("seller", domain.RoleSeller, nil, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}
