package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenIssuer is the iss claim stamped on every session token.
const TokenIssuer = "grainlify"

// Claims represents JWT claims for a wallet session
type Claims struct {
	UserID     string     `json:"user_id"`
	Role       string     `json:"role"`
	WalletType WalletType `json:"wallet_type"`
	Address    string     `json:"address"`
	jwt.RegisteredClaims
}

// IssueJWT creates a signed HS256 session token valid for ttl from now.
func IssueJWT(secret []byte, userID, role string, walletType WalletType, address string, ttl time.Duration) (string, error) {
	token, _, err := IssueJWTAt(secret, userID, role, walletType, address, time.Now(), ttl)
	return token, err
}

// IssueJWTAt is IssueJWT with an explicit issue time. It returns the exp
// claim as signed, truncated to whole seconds.
func IssueJWTAt(secret []byte, userID, role string, walletType WalletType, address string, issuedAt time.Time, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("%w: ttl must be positive", ErrSigningFailure)
	}
	expiresAt := jwt.NewNumericDate(issuedAt.Add(ttl))
	claims := &Claims{
		UserID:     userID,
		Role:       role,
		WalletType: walletType,
		Address:    address,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    TokenIssuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: expiresAt,
		},
	}
	token, err := signClaims(secret, claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt.Time, nil
}

func signClaims(secret []byte, claims *Claims) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("%w: empty secret", ErrSigningFailure)
	}
	if claims.UserID == "" {
		return "", fmt.Errorf("%w: empty user id", ErrSigningFailure)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigningFailure, err)
	}
	return signed, nil
}

// ValidateJWT validates a JWT token and returns its claims
func ValidateJWT(tokenString string, secret []byte) (*Claims, error) {
	if len(secret) == 0 {
		return nil, ErrInvalidJWT
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify the signing method to prevent algorithm confusion attacks
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredJWT
		}
		return nil, ErrInvalidJWT
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.UserID != "" {
		return claims, nil
	}

	return nil, ErrInvalidJWT
}
