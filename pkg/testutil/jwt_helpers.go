package testutil

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/icedoutskay/grainlify/pkg/auth"
)

// JWTTestHelper provides utilities for JWT testing
type JWTTestHelper struct {
	Secret []byte
}

// NewJWTTestHelper creates a new JWT test helper with a default test secret
func NewJWTTestHelper() *JWTTestHelper {
	return &JWTTestHelper{
		Secret: []byte("test-secret-for-unit-tests"),
	}
}

// NewJWTTestHelperWithSecret creates a new JWT test helper with a custom secret
func NewJWTTestHelperWithSecret(secret []byte) *JWTTestHelper {
	return &JWTTestHelper{
		Secret: secret,
	}
}

// GenerateValidJWT generates a valid 15 minute session token for u
func (h *JWTTestHelper) GenerateValidJWT(u TestUser) (string, error) {
	return auth.IssueJWT(h.Secret, u.UserID, u.Role, u.WalletType, u.Address, 15*time.Minute)
}

// GenerateExpiredJWT generates a token that expired an hour ago
func (h *JWTTestHelper) GenerateExpiredJWT(u TestUser) (string, error) {
	return h.GenerateJWTWithCustomExpiry(u, time.Now().Add(-1*time.Hour))
}

// GenerateJWTWithCustomExpiry generates a JWT with custom expiry time
func (h *JWTTestHelper) GenerateJWTWithCustomExpiry(u TestUser, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, u.claims(expiresAt))
	return token.SignedString(h.Secret)
}

// GenerateMalformedJWT generates a malformed JWT for testing error scenarios
func (h *JWTTestHelper) GenerateMalformedJWT() string {
	return "invalid.jwt.token.format"
}

// GenerateJWTWithWrongSecret generates a JWT with wrong secret for testing
func (h *JWTTestHelper) GenerateJWTWithWrongSecret(u TestUser) (string, error) {
	return auth.IssueJWT([]byte("wrong-secret"), u.UserID, u.Role, u.WalletType, u.Address, 15*time.Minute)
}

// GenerateJWTWithNoneAlgorithm generates an unsigned "none" token
func (h *JWTTestHelper) GenerateJWTWithNoneAlgorithm(u TestUser) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, u.claims(time.Now().Add(time.Hour)))
	return token.SignedString(jwt.UnsafeAllowNoneSignatureType)
}

// ValidateJWT validates a JWT using the test helper's secret
func (h *JWTTestHelper) ValidateJWT(tokenString string) (*auth.Claims, error) {
	return auth.ValidateJWT(tokenString, h.Secret)
}

// TestUser represents a wallet session subject for JWT generation
type TestUser struct {
	UserID     string
	Role       string
	WalletType auth.WalletType
	Address    string
}

func (u TestUser) claims(expiresAt time.Time) *auth.Claims {
	return &auth.Claims{
		UserID:     u.UserID,
		Role:       u.Role,
		WalletType: u.WalletType,
		Address:    u.Address,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.UserID,
			Issuer:    auth.TokenIssuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(expiresAt.Add(-time.Hour)),
		},
	}
}

// DefaultTestUser returns a contributor logged in with an EVM wallet
func DefaultTestUser() TestUser {
	return TestUser{
		UserID:     "6f1c2b1e-6a43-4c35-9d43-0d9b0b6b8a11",
		Role:       "contributor",
		WalletType: auth.WalletEVM,
		Address:    "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1",
	}
}

// AdminTestUser returns an admin logged in with a Solana wallet
func AdminTestUser() TestUser {
	return TestUser{
		UserID:     "0b8a9f3c-2f0e-4c8f-bb8f-9b8e7f1b2c33",
		Role:       "admin",
		WalletType: auth.WalletSolana,
		Address:    "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T",
	}
}
