package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sakif/secretum/internal/apperror"
)

const testSecret = "test-secret-at-least-16-chars!!"

// newTestTokenService creates a TokenService whose clock the test controls.
func newTestTokenService(t *testing.T, now *time.Time) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testSecret, 0)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	ts.now = func() time.Time { return *now }
	return ts
}

// =========================================================================
// TOKEN SERVICE CONSTRUCTION TESTS
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService("short", time.Hour)
	if err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_DefaultTTL(t *testing.T) {
	ts, err := NewTokenService("this-is-16-chars", 0)
	if err != nil {
		t.Fatalf("NewTokenService() unexpected error for valid secret: %v", err)
	}
	if ts.ttl != DefaultTokenTTL {
		t.Errorf("ttl = %v, want %v", ts.ttl, DefaultTokenTTL)
	}
}

// =========================================================================
// ISSUE / VERIFY TESTS
// =========================================================================

func TestIssueVerify_RoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ts := newTestTokenService(t, &now)

	token, err := ts.Issue("42", "a@b.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("Issue() token doesn't look like a JWT: %q", token)
	}

	id, err := ts.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if id.UserID != "42" || id.Email != "a@b.com" {
		t.Errorf("Verify() = %+v, want {42 a@b.com}", id)
	}
}

func TestVerify_ExpiresAfterThirtyDays(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ts := newTestTokenService(t, &now)

	token, err := ts.Issue("42", "a@b.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	now = now.Add(29 * 24 * time.Hour)
	if _, err := ts.Verify(token); err != nil {
		t.Fatalf("Verify() on day 29 error = %v", err)
	}

	now = now.Add(2 * 24 * time.Hour)
	_, err = ts.Verify(token)
	if !errors.Is(err, apperror.ErrAuthInvalid) {
		t.Errorf("Verify() on day 31 error = %v, want ErrAuthInvalid", err)
	}
}

func TestIssue_RejectsEmptyUserID(t *testing.T) {
	now := time.Now()
	ts := newTestTokenService(t, &now)

	if _, err := ts.Issue("", "a@b.com"); err == nil {
		t.Error("Issue(\"\") should fail")
	}
}

func TestVerify_Failures(t *testing.T) {
	now := time.Now()
	ts := newTestTokenService(t, &now)

	other, err := NewTokenService("a-completely-different-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	foreign, _ := other.Issue("42", "a@b.com")

	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"user_id": "42",
		"exp":     now.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "42",
	}).SignedString([]byte(testSecret))

	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "a@b.com",
		"exp":   now.Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))

	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"user_id": "42",
		"exp":     now.Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"wrong secret", foreign},
		{"alg none", unsigned},
		{"missing exp", noExpiry},
		{"missing user_id", noUser},
		{"other HMAC algorithm", hs512},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Verify(tt.token)
			if !errors.Is(err, apperror.ErrAuthInvalid) {
				t.Errorf("Verify() error = %v, want ErrAuthInvalid", err)
			}
		})
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	now := time.Now()
	ts := newTestTokenService(t, &now)

	token, _ := ts.Issue("42", "a@b.com")
	parts := strings.Split(token, ".")
	other, _ := ts.Issue("43", "a@b.com")
	forged := parts[0] + "." + strings.Split(other, ".")[1] + "." + parts[2]

	if _, err := ts.Verify(forged); !errors.Is(err, apperror.ErrAuthInvalid) {
		t.Errorf("Verify(forged) error = %v, want ErrAuthInvalid", err)
	}
}
