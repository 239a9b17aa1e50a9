// Package vault keeps linked GitHub access tokens encrypted at rest and hands
// out plaintext only for the duration of an outbound call.
package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/icedoutskay/grainlify/api_auth/internal/store"
	fieldcrypt "github.com/icedoutskay/grainlify/pkg/crypto"
	"github.com/icedoutskay/grainlify/pkg/logging"
)

var (
	ErrNotLinked   = errors.New("github account not linked")
	ErrMissingKey  = errors.New("vault: encryption key is required")
	ErrEmptyAccess = errors.New("vault: access token is empty")
)

// AccountStore is the slice of store.Store the vault needs.
type AccountStore interface {
	GetGitHubAccount(ctx context.Context, userID string) (*store.GitHubAccount, error)
	UpsertGitHubAccount(ctx context.Context, acct *store.GitHubAccount) error
	DeleteGitHubAccount(ctx context.Context, userID string) error
}

// LinkedAccount holds a decrypted access token. Do not log or persist it.
type LinkedAccount struct {
	UserID       string
	GitHubUserID int64
	Login        string
	AvatarURL    string
	Scopes       string
	AccessToken  string
}

// Profile is the plaintext cache kept next to the encrypted token.
type Profile struct {
	GitHubUserID int64
	Login        string
	AvatarURL    string
}

type Vault struct {
	store  AccountStore
	enc    *fieldcrypt.FieldEncryptor
	logger logging.Logger
}

func New(s AccountStore, enc *fieldcrypt.FieldEncryptor, logger logging.Logger) (*Vault, error) {
	if enc == nil {
		return nil, ErrMissingKey
	}
	return &Vault{store: s, enc: enc, logger: logger}, nil
}

// Get returns the decrypted account for userID. A token that cannot be
// decrypted is reported as ErrNotLinked (also matching
// fieldcrypt.ErrDecryptionFailure) and logged.
func (v *Vault) Get(ctx context.Context, userID string) (*LinkedAccount, error) {
	acct, err := v.store.GetGitHubAccount(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotLinked
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(acct.AccessTokenEnc) == "" {
		return nil, ErrNotLinked
	}

	token, err := v.enc.Decrypt(acct.AccessTokenEnc)
	if err != nil {
		v.logger.WithError(err).WithFields(logging.Fields{
			"user_id":        userID,
			"github_user_id": acct.GitHubUserID,
		}).Warn("Stored GitHub token could not be decrypted; treating account as not linked")
		return nil, fmt.Errorf("%w: %w", ErrNotLinked, err)
	}

	return &LinkedAccount{
		UserID:       acct.UserID,
		GitHubUserID: acct.GitHubUserID,
		Login:        acct.Login,
		AvatarURL:    acct.AvatarURL,
		Scopes:       acct.Scopes,
		AccessToken:  token,
	}, nil
}

// Link encrypts accessToken and stores it with the profile cache, replacing
// any previous link for the user.
func (v *Vault) Link(ctx context.Context, userID string, profile Profile, accessToken, scopes string) error {
	if strings.TrimSpace(accessToken) == "" {
		return ErrEmptyAccess
	}
	sealed, err := v.enc.Encrypt(accessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	return v.store.UpsertGitHubAccount(ctx, &store.GitHubAccount{
		UserID:         userID,
		GitHubUserID:   profile.GitHubUserID,
		Login:          profile.Login,
		AvatarURL:      profile.AvatarURL,
		AccessTokenEnc: sealed,
		Scopes:         scopes,
	})
}

func (v *Vault) Unlink(ctx context.Context, userID string) error {
	err := v.store.DeleteGitHubAccount(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotLinked
	}
	return err
}

// CachedProfile reads the plaintext login and avatar without touching the
// token.
func (v *Vault) CachedProfile(ctx context.Context, userID string) (*Profile, error) {
	acct, err := v.store.GetGitHubAccount(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotLinked
	}
	if err != nil {
		return nil, err
	}
	return &Profile{
		GitHubUserID: acct.GitHubUserID,
		Login:        acct.Login,
		AvatarURL:    acct.AvatarURL,
	}, nil
}
