package service

import (
	"context"
	"errors"

	"github.com/icedoutskay/grainlify/api_auth/internal/store"
	"github.com/icedoutskay/grainlify/api_auth/internal/vault"
	"github.com/icedoutskay/grainlify/pkg/auth"
	"github.com/icedoutskay/grainlify/pkg/clients/github"
	fieldcrypt "github.com/icedoutskay/grainlify/pkg/crypto"
	"github.com/icedoutskay/grainlify/pkg/ratelimit"
)

// Code is a stable, transport independent failure identifier.
type Code string

const (
	CodeInvalidRequest          Code = "invalid_request"
	CodeInvalidWalletType       Code = "invalid_wallet_type"
	CodeInvalidAddress          Code = "invalid_address"
	CodeMissingNonceOrSignature Code = "missing_nonce_or_signature"
	CodeInvalidSignature        Code = "invalid_signature"
	CodeInvalidOrExpiredNonce   Code = "invalid_or_expired_nonce"
	CodeRateLimited             Code = "rate_limited"
	CodeStorageUnavailable      Code = "storage_unavailable"
	CodeSigningFailure          Code = "signing_failure"
	CodeNotLinked               Code = "not_linked"
	CodeDecryptionFailure       Code = "decryption_failure"
	CodeUpstreamUnavailable     Code = "upstream_unavailable"
	CodeUnauthenticated         Code = "unauthenticated"
	CodeInternal                Code = "internal"
)

// Error is returned by every Service operation.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Err.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the Code carried by err, classifying bare errors on the way.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return classify(err).Code
}

// classify maps package sentinels to codes. Order matters: a vault decryption
// failure matches both ErrNotLinked and ErrDecryptionFailure and must surface
// as not linked.
func classify(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, auth.ErrInvalidWalletType), errors.Is(err, auth.ErrSchemeNotInstalled):
		return newError(CodeInvalidWalletType, "unsupported wallet type", err)
	case errors.Is(err, auth.ErrInvalidAddress):
		return newError(CodeInvalidAddress, "address is not valid for the wallet type", err)
	case errors.Is(err, auth.ErrMissingCredential):
		return newError(CodeMissingNonceOrSignature, "nonce and signature are required", err)
	case errors.Is(err, auth.ErrInvalidSignature):
		return newError(CodeInvalidSignature, "signature verification failed", err)
	case errors.Is(err, store.ErrInvalidOrExpiredNonce):
		return newError(CodeInvalidOrExpiredNonce, "nonce is invalid, expired or already used", err)
	case errors.Is(err, ratelimit.ErrRateLimited):
		return newError(CodeRateLimited, "too many nonce requests", err)
	case errors.Is(err, auth.ErrSigningFailure):
		return newError(CodeSigningFailure, "could not issue session token", err)
	case errors.Is(err, vault.ErrNotLinked):
		return newError(CodeNotLinked, "github account not linked", err)
	case errors.Is(err, fieldcrypt.ErrDecryptionFailure):
		return newError(CodeDecryptionFailure, "stored credential could not be decrypted", err)
	case errors.Is(err, github.ErrTokenRejected):
		return newError(CodeInvalidRequest, "github rejected the access token", err)
	case errors.Is(err, github.ErrUpstreamUnavailable):
		return newError(CodeUpstreamUnavailable, "github is unavailable", err)
	case errors.Is(err, store.ErrStorageUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return newError(CodeStorageUnavailable, "storage unavailable", err)
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, store.ErrNotFound):
		return newError(CodeUnauthenticated, "authentication required", err)
	default:
		return newError(CodeInternal, "internal error", err)
	}
}
