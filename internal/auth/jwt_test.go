package auth_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/backoffice/internal/auth"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret"
	userID := uuid.New()
	branchID := uuid.New()
	role := "CASHIER"

	token, err := auth.GenerateToken(secret, userID, branchID, role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := auth.ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("user ID: got %v, want %v", claims.UserID, userID)
	}
	if claims.BranchID != branchID {
		t.Errorf("branch ID: got %v, want %v", claims.BranchID, branchID)
	}
	if claims.Role != role {
		t.Errorf("role: got %v, want %v", claims.Role, role)
	}
	if claims.Subject != userID.String() {
		t.Errorf("subject: got %v, want %v", claims.Subject, userID)
	}
}

func TestValidateTokenWithWrongSecret(t *testing.T) {
	token, err := auth.GenerateToken("secret-a", uuid.New(), uuid.New(), "CASHIER")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = auth.ValidateToken("secret-b", token)
	if err == nil {
		t.Fatal("expected error validating with wrong secret")
	}
}

func TestValidateTokenWithInvalidString(t *testing.T) {
	_, err := auth.ValidateToken("secret", "not-a-jwt")
	if err == nil {
		t.Fatal("expected error validating invalid token string")
	}
}

func TestExpiredToken(t *testing.T) {
	token, err := auth.GenerateTokenWithTTL("secret", uuid.New(), uuid.New(), "CASHIER", -time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := auth.ValidateToken("secret", token); err == nil {
		t.Fatal("expected error validating expired token")
	}
}

func TestCanAccessBranch(t *testing.T) {
	own := uuid.New()
	c := &auth.Claims{BranchID: own, Role: "CASHIER"}
	if !c.CanAccessBranch(own) {
		t.Error("cashier should reach own branch")
	}
	if c.CanAccessBranch(uuid.New()) {
		t.Error("cashier should not reach another branch")
	}
	owner := &auth.Claims{BranchID: own, Role: "OWNER"}
	if !owner.CanAccessBranch(uuid.New()) {
		t.Error("owner should reach any branch")
	}
}
