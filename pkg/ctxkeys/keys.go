// Package ctxkeys defines typed context keys to avoid SA1029 lint warnings
// and prevent key collisions across packages.
package ctxkeys

import (
	"context"
	"time"
)

// Key is a typed context key to prevent collisions.
type Key string

// Auth context keys
const (
	KeyUserID       Key = "user_id"
	KeyRole         Key = "role"
	KeyJWTExpiresAt Key = "jwt_expires_at"
	KeyWalletType   Key = "wallet_type"
	KeyWalletAddr   Key = "wallet_address"
)

// KeyRequestID carries the X-Request-ID of the current request.
const KeyRequestID Key = "request_id"

// GetUserID extracts user_id from context.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(KeyUserID).(string); ok {
		return v
	}
	return ""
}

// GetRole extracts role from context.
func GetRole(ctx context.Context) string {
	if v, ok := ctx.Value(KeyRole).(string); ok {
		return v
	}
	return ""
}

// GetWalletType extracts wallet_type from context.
func GetWalletType(ctx context.Context) string {
	if v, ok := ctx.Value(KeyWalletType).(string); ok {
		return v
	}
	return ""
}

// GetWalletAddress extracts wallet_address from context.
func GetWalletAddress(ctx context.Context) string {
	if v, ok := ctx.Value(KeyWalletAddr).(string); ok {
		return v
	}
	return ""
}

// GetRequestID extracts request_id from context.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(KeyRequestID).(string); ok {
		return v
	}
	return ""
}

// GetJWTExpiresAt extracts jwt_expires_at from context.
func GetJWTExpiresAt(ctx context.Context) (time.Time, bool) {
	if v, ok := ctx.Value(KeyJWTExpiresAt).(time.Time); ok {
		return v, true
	}
	return time.Time{}, false
}
