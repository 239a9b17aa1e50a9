package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTIssueValidate(t *testing.T) {
	secret := []byte("s3cr3t")
	token, err := IssueJWT(secret, "user1", "contributor", WalletEVM, "0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045", 15*time.Minute)
	if err != nil {
		t.Fatalf("issue jwt: %v", err)
	}
	claims, err := ValidateJWT(token, secret)
	if err != nil {
		t.Fatalf("validate jwt: %v", err)
	}
	if claims.UserID != "user1" || claims.Role != "contributor" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.WalletType != WalletEVM || claims.Address != "0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045" {
		t.Fatalf("wallet claims mismatch: %+v", claims)
	}
	if claims.Subject != "user1" || claims.Issuer != TokenIssuer || claims.ID == "" {
		t.Fatalf("registered claims mismatch: %+v", claims.RegisteredClaims)
	}
	if ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time); ttl != 15*time.Minute {
		t.Fatalf("expected 15m lifetime, got %v", ttl)
	}
}

func TestIssueJWTFailures(t *testing.T) {
	tests := []struct {
		name   string
		secret []byte
		userID string
		ttl    time.Duration
	}{
		{"empty secret", nil, "user1", time.Minute},
		{"empty user", []byte("s"), "", time.Minute},
		{"zero ttl", []byte("s"), "user1", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := IssueJWT(tt.secret, tt.userID, "contributor", WalletEVM, "0xabc", tt.ttl)
			if !errors.Is(err, ErrSigningFailure) {
				t.Fatalf("expected ErrSigningFailure, got %v", err)
			}
		})
	}
}

func TestIssueJWTAtUsesGivenTime(t *testing.T) {
	secret := []byte("s3cr3t")
	issuedAt := time.Now().Add(-3 * time.Minute).Truncate(time.Second)

	token, expiresAt, err := IssueJWTAt(secret, "user1", "contributor", WalletAptos, "0x1", issuedAt, 15*time.Minute)
	if err != nil {
		t.Fatalf("issue jwt: %v", err)
	}
	if !expiresAt.Equal(issuedAt.Add(15 * time.Minute)) {
		t.Fatalf("expected expiry %v, got %v", issuedAt.Add(15*time.Minute), expiresAt)
	}
	claims, err := ValidateJWT(token, secret)
	if err != nil {
		t.Fatalf("validate jwt: %v", err)
	}
	if !claims.IssuedAt.Time.Equal(issuedAt) || !claims.ExpiresAt.Time.Equal(expiresAt) {
		t.Fatalf("claims times mismatch: iat=%v exp=%v", claims.IssuedAt.Time, claims.ExpiresAt.Time)
	}
}

func TestJWTValidationEdgeCases(t *testing.T) {
	tests := []struct {
		name       string
		setupToken func() string
		secret     []byte
		errorType  error
	}{
		{
			name: "valid token with correct secret",
			setupToken: func() string {
				token, _ := IssueJWT([]byte("correct-secret"), "user1", "contributor", WalletSolana, "addr", time.Hour)
				return token
			},
			secret: []byte("correct-secret"),
		},
		{
			name: "valid token with wrong secret",
			setupToken: func() string {
				token, _ := IssueJWT([]byte("correct-secret"), "user1", "contributor", WalletSolana, "addr", time.Hour)
				return token
			},
			secret:    []byte("wrong-secret"),
			errorType: ErrInvalidJWT,
		},
		{
			name: "expired token",
			setupToken: func() string {
				claims := &Claims{
					UserID: "user1",
					Role:   "contributor",
					RegisteredClaims: jwt.RegisteredClaims{
						ExpiresAt: jwt.NewNumericDate(time.Now().Add(-1 * time.Hour)), // Expired 1 hour ago
						IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
					},
				}
				token, _ := signClaims([]byte("test-secret"), claims)
				return token
			},
			secret:    []byte("test-secret"),
			errorType: ErrExpiredJWT,
		},
		{
			name: "missing expiry",
			setupToken: func() string {
				token, _ := signClaims([]byte("test-secret"), &Claims{UserID: "user1"})
				return token
			},
			secret:    []byte("test-secret"),
			errorType: ErrInvalidJWT,
		},
		{
			name: "none algorithm",
			setupToken: func() string {
				claims := &Claims{
					UserID: "user1",
					RegisteredClaims: jwt.RegisteredClaims{
						ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
					},
				}
				token, _ := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
				return token
			},
			secret:    []byte("test-secret"),
			errorType: ErrInvalidJWT,
		},
		{
			name: "tampered payload",
			setupToken: func() string {
				token, _ := IssueJWT([]byte("test-secret"), "user1", "contributor", WalletEVM, "addr", time.Hour)
				parts := strings.Split(token, ".")
				payload := []byte(parts[1])
				if payload[2] == 'A' {
					payload[2] = 'B'
				} else {
					payload[2] = 'A'
				}
				return parts[0] + "." + string(payload) + "." + parts[2]
			},
			secret:    []byte("test-secret"),
			errorType: ErrInvalidJWT,
		},
		{
			name: "malformed token",
			setupToken: func() string {
				return "not.a.valid.jwt.token"
			},
			secret:    []byte("test-secret"),
			errorType: ErrInvalidJWT,
		},
		{
			name: "empty token",
			setupToken: func() string {
				return ""
			},
			secret:    []byte("test-secret"),
			errorType: ErrInvalidJWT,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ValidateJWT(tt.setupToken(), tt.secret)
			if tt.errorType == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if claims == nil || claims.UserID != "user1" {
					t.Fatalf("expected claims for user1, got %+v", claims)
				}
				return
			}
			if !errors.Is(err, tt.errorType) {
				t.Fatalf("expected error %v but got %v", tt.errorType, err)
			}
			if claims != nil {
				t.Fatalf("expected nil claims when error occurs")
			}
		})
	}
}
