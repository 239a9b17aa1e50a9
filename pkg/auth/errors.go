package auth

import "errors"

var (
	ErrInvalidWalletType  = errors.New("invalid wallet type")
	ErrInvalidAddress     = errors.New("invalid address")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrMissingCredential  = errors.New("missing nonce or signature")
	ErrPublicKeyRequired  = errors.New("public key required for wallet type")
	ErrSigningFailure     = errors.New("token signing failed")
	ErrInvalidJWT         = errors.New("invalid JWT token")
	ErrExpiredJWT         = errors.New("JWT token expired")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrSchemeNotInstalled = errors.New("no signature scheme registered for wallet type")
)
