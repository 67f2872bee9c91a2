package authn

import (
	"context"
	"strings"
	"testing"
	"time"
)

func withSecret(t *testing.T) {
	t.Helper()
	ResetSecretForTests()
	t.Setenv(secretEnvVariable, "test-secret")
	t.Cleanup(ResetSecretForTests)
}

func TestGenerateAndParseToken(t *testing.T) {
	withSecret(t)

	token, err := GenerateToken("user-1", "org-1", "emp-1", []string{"hr", "HR", "Manager"}, time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user-1" || claims.OrganizationID != "org-1" || claims.EmployeeID != "emp-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != "HR" || claims.Roles[1] != "MANAGER" {
		t.Fatalf("roles must be upper-cased and deduplicated: %v", claims.Roles)
	}
	if claims.ID == "" {
		t.Fatal("token id missing")
	}
}

func TestGenerateTokenRequiresSecret(t *testing.T) {
	ResetSecretForTests()
	t.Setenv(secretEnvVariable, "")
	t.Cleanup(ResetSecretForTests)

	if _, err := GenerateToken("user-1", "", "", nil, time.Minute); err == nil {
		t.Fatal("expected error without configured secret")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	withSecret(t)

	token, err := GenerateToken("user-1", "", "", nil, time.Millisecond)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := ParseAndValidate(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	withSecret(t)

	token, err := GenerateToken("user-1", "org-1", "emp-1", []string{"HR"}, time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	parts := strings.Split(token, ".")
	parts[2] = "AAAA" + parts[2][4:]
	if _, err := ParseAndValidate(strings.Join(parts, ".")); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	withSecret(t)
	for _, token := range []string{"", "   ", "not.a.jwt"} {
		if _, err := ParseAndValidate(token); err != ErrInvalidToken {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestIdentityContextRoundTrip(t *testing.T) {
	id := Identity{UserID: " user-1 ", OrganizationID: "org-1", EmployeeID: "emp-1", Roles: []string{"hr"}}
	ctx := ContextWithIdentity(context.Background(), id)

	got, ok := IdentityFromContext(ctx)
	if !ok {
		t.Fatal("identity missing from context")
	}
	if got.UserID != "user-1" || got.OrganizationID != "org-1" {
		t.Fatalf("unexpected identity: %+v", got)
	}
	if !HasRole(ctx, "HR") || !HasRole(ctx, "hr") {
		t.Fatal("role check should be case-insensitive")
	}
	if HasRole(ctx, "MANAGER") {
		t.Fatal("unexpected role match")
	}
}

func TestIdentityFromEmptyContext(t *testing.T) {
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Fatal("expected no identity")
	}
	if HasRole(context.Background(), "HR") {
		t.Fatal("expected no role without identity")
	}
}

func TestSuperAdminIdentity(t *testing.T) {
	if !(Identity{UserID: "u"}).IsSuperAdmin() {
		t.Fatal("identity without organization must be super-admin")
	}
	if (Identity{UserID: "u", OrganizationID: "org-1"}).IsSuperAdmin() {
		t.Fatal("tenant identity must not be super-admin")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := VerifyPassword(hash, "s3cret"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); err == nil {
		t.Fatal("expected mismatch error")
	}
	if _, err := HashPassword(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}
