package authz

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func newTestAuthenticator(now time.Time) *JWTAuthenticator {
	a := NewJWTAuthenticator(JWTConfig{Secret: []byte("test-secret"), Issuer: "catalog-api"})
	a.now = func() time.Time { return now }
	return a
}

func TestJWTAuthenticator_RoundTrip(t *testing.T) {
	a := newTestAuthenticator(time.Now())

	token, err := a.IssueToken(Principal{ID: ownerID, Name: "Acme"})
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	p, err := a.Authenticate("Bearer " + token)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if p.ID != ownerID || p.Name != "Acme" {
		t.Errorf("unexpected principal %+v", p)
	}
}

func TestJWTAuthenticator_Failures(t *testing.T) {
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAuthenticator(issued)
	valid, _ := a.IssueToken(Principal{ID: ownerID})

	other := NewJWTAuthenticator(JWTConfig{Secret: []byte("other-secret")})
	other.now = a.now
	wrongKey, _ := other.IssueToken(Principal{ID: ownerID})

	badSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "not-a-uuid",
			Issuer:    "catalog-api",
			ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))

	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: ownerID.String()},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name    string
		header  string
		now     time.Time
		wantErr error
	}{
		{name: "missing header", header: "", now: issued, wantErr: ErrMissingCredentials},
		{name: "wrong scheme", header: "Basic abc", now: issued, wantErr: ErrMissingCredentials},
		{name: "empty token", header: "Bearer   ", now: issued, wantErr: ErrMissingCredentials},
		{name: "garbage", header: "Bearer abc.def.ghi", now: issued, wantErr: ErrTokenMalformed},
		{name: "wrong key", header: "Bearer " + wrongKey, now: issued, wantErr: ErrTokenMalformed},
		{name: "none algorithm", header: "Bearer " + noneAlg, now: issued, wantErr: ErrTokenMalformed},
		{name: "expired", header: "Bearer " + valid, now: issued.Add(2 * time.Hour), wantErr: ErrTokenExpired},
		{name: "bad subject", header: "Bearer " + badSubject, now: issued, wantErr: ErrInvalidSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := tt.now
			a.now = func() time.Time { return now }

			_, err := a.Authenticate(tt.header)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestJWTAuthenticator_DefaultTTL(t *testing.T) {
	a := NewJWTAuthenticator(JWTConfig{Secret: []byte("s")})
	if a.config.TokenTTL != time.Hour {
		t.Errorf("expected default TTL of 1h, got %v", a.config.TokenTTL)
	}

	token, err := a.IssueToken(Principal{ID: uuid.New()})
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if _, err := a.Authenticate("Bearer " + token); err != nil {
		t.Errorf("expected fresh token to be valid, got %v", err)
	}
}
