// Package store persists login nonces, users, wallet links and linked GitHub
// accounts.
package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/icedoutskay/grainlify/pkg/auth"
)

// DefaultRole is assigned to users created on first wallet login.
const DefaultRole = "contributor"

// NonceBytes is the entropy of a login nonce.
const NonceBytes = 32

var (
	ErrNotFound              = errors.New("record not found")
	ErrInvalidOrExpiredNonce = errors.New("invalid or expired nonce")
	ErrStorageUnavailable    = errors.New("storage unavailable")
)

// Nonce is a single-use login challenge bound to one wallet.
type Nonce struct {
	Nonce      string
	WalletType auth.WalletType
	Address    string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

type User struct {
	ID        string
	Role      string
	CreatedAt time.Time
}

// Wallet links a (wallet type, address) pair to a user.
type Wallet struct {
	ID          string
	UserID      string
	WalletType  auth.WalletType
	Address     string
	PublicKey   string
	CreatedAt   time.Time
	LastLoginAt time.Time
}

// LoginResult is the outcome of a successful nonce consumption.
type LoginResult struct {
	User    User
	Wallet  Wallet
	Created bool
}

// GitHubAccount is a github_accounts row. AccessTokenEnc is always an
// encrypted envelope.
type GitHubAccount struct {
	UserID         string
	GitHubUserID   int64
	Login          string
	AvatarURL      string
	AccessTokenEnc string
	Scopes         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Store is implemented by PostgresStore and MemoryStore.
type Store interface {
	// CreateNonce issues a nonce for the wallet, superseding any live one.
	CreateNonce(ctx context.Context, wt auth.WalletType, address string, ttl time.Duration) (*Nonce, error)
	// ConsumeNonceAndUpsertUser burns the nonce and returns the wallet's user,
	// creating both on first login. Nothing is written unless every step succeeds.
	ConsumeNonceAndUpsertUser(ctx context.Context, wt auth.WalletType, address, nonce, publicKey string) (*LoginResult, error)
	WalletPublicKey(ctx context.Context, wt auth.WalletType, address string) (string, error)
	GetUser(ctx context.Context, userID string) (*User, error)
	// PruneNonces deletes consumed nonces and nonces that expired before the cutoff.
	PruneNonces(ctx context.Context, before time.Time) (int64, error)

	GetGitHubAccount(ctx context.Context, userID string) (*GitHubAccount, error)
	UpsertGitHubAccount(ctx context.Context, acct *GitHubAccount) error
	DeleteGitHubAccount(ctx context.Context, userID string) error
}

// GenerateNonce returns NonceBytes of crypto/rand as lower-case hex.
func GenerateNonce() (string, error) {
	buf := make([]byte, NonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}
