package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/icedoutskay/grainlify/pkg/auth"
)

const uniqueViolation = pq.ErrorCode("23505")

// nonceInsertAttempts bounds retries on a primary key collision.
const nonceInsertAttempts = 3

// PostgresStore implements Store on database/sql with lib/pq.
type PostgresStore struct {
	db       *sql.DB
	now      func() time.Time
	newID    func() string
	newNonce func() (string, error)
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:       db,
		now:      time.Now,
		newID:    uuid.NewString,
		newNonce: GenerateNonce,
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *PostgresStore) CreateNonce(ctx context.Context, wt auth.WalletType, address string, ttl time.Duration) (*Nonce, error) {
	for attempt := 1; ; attempt++ {
		n, err := s.createNonce(ctx, wt, address, ttl)
		if err == nil {
			return n, nil
		}
		if !isUniqueViolation(err) || attempt >= nonceInsertAttempts {
			return nil, unavailable("create nonce", err)
		}
	}
}

func (s *PostgresStore) createNonce(ctx context.Context, wt auth.WalletType, address string, ttl time.Duration) (*Nonce, error) {
	token, err := s.newNonce()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	n := &Nonce{
		Nonce:      token,
		WalletType: wt,
		Address:    address,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM auth_nonces
		WHERE wallet_type = $1 AND address = $2 AND consumed_at IS NULL
	`, string(wt), address); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO auth_nonces (nonce, wallet_type, address, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, n.Nonce, string(wt), address, n.CreatedAt, n.ExpiresAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *PostgresStore) ConsumeNonceAndUpsertUser(ctx context.Context, wt auth.WalletType, address, nonce, publicKey string) (*LoginResult, error) {
	now := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin login", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// The WHERE clause is the compare-and-swap: only one transaction can move a
	// live nonce to consumed.
	res, err := tx.ExecContext(ctx, `
		UPDATE auth_nonces
		SET consumed_at = $4
		WHERE nonce = $1 AND wallet_type = $2 AND address = $3
		  AND consumed_at IS NULL AND expires_at > $4
	`, nonce, string(wt), address, now)
	if err != nil {
		return nil, unavailable("consume nonce", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, unavailable("consume nonce", err)
	}
	if affected == 0 {
		return nil, ErrInvalidOrExpiredNonce
	}

	result := &LoginResult{}
	existing, err := s.lockWallet(ctx, tx, wt, address)
	switch {
	case err == nil:
		result.User, result.Wallet = existing.user, existing.wallet
	case errors.Is(err, sql.ErrNoRows):
		created, err := s.insertIdentity(ctx, tx, wt, address, publicKey, now)
		if err != nil {
			return nil, err
		}
		result.User, result.Wallet, result.Created = created.user, created.wallet, created.created
	default:
		return nil, unavailable("lookup wallet", err)
	}

	var storedKey sql.NullString
	if err := tx.QueryRowContext(ctx, `
		UPDATE wallets
		SET public_key = COALESCE(NULLIF($2, ''), public_key),
		    last_login_at = $3
		WHERE id = $1
		RETURNING public_key
	`, result.Wallet.ID, publicKey, now).Scan(&storedKey); err != nil {
		return nil, unavailable("stamp wallet", err)
	}
	result.Wallet.PublicKey = storedKey.String
	result.Wallet.LastLoginAt = now

	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit login", err)
	}
	return result, nil
}

type identity struct {
	user    User
	wallet  Wallet
	created bool
}

func (s *PostgresStore) lockWallet(ctx context.Context, tx *sql.Tx, wt auth.WalletType, address string) (*identity, error) {
	var (
		id        identity
		publicKey sql.NullString
		lastLogin sql.NullTime
	)
	err := tx.QueryRowContext(ctx, `
		SELECT w.id, w.user_id, w.public_key, w.created_at, w.last_login_at, u.role, u.created_at
		FROM wallets w
		JOIN users u ON u.id = w.user_id
		WHERE w.wallet_type = $1 AND w.address = $2
		FOR UPDATE OF w
	`, string(wt), address).Scan(
		&id.wallet.ID, &id.wallet.UserID, &publicKey, &id.wallet.CreatedAt, &lastLogin,
		&id.user.Role, &id.user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	id.user.ID = id.wallet.UserID
	id.wallet.WalletType = wt
	id.wallet.Address = address
	id.wallet.PublicKey = publicKey.String
	id.wallet.LastLoginAt = lastLogin.Time
	return &id, nil
}

// insertIdentity creates the user and wallet link. When a concurrent login
// for the same wallet wins the insert, the new user row is removed and the
// winner's link is returned.
func (s *PostgresStore) insertIdentity(ctx context.Context, tx *sql.Tx, wt auth.WalletType, address, publicKey string, now time.Time) (*identity, error) {
	id := identity{
		user: User{ID: s.newID(), Role: DefaultRole, CreatedAt: now},
		wallet: Wallet{
			ID:         s.newID(),
			WalletType: wt,
			Address:    address,
			CreatedAt:  now,
		},
		created: true,
	}
	id.wallet.UserID = id.user.ID

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, role, created_at) VALUES ($1, $2, $3)
	`, id.user.ID, id.user.Role, id.user.CreatedAt); err != nil {
		return nil, unavailable("create user", err)
	}

	var walletID string
	err := tx.QueryRowContext(ctx, `
		INSERT INTO wallets (id, user_id, wallet_type, address, public_key, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		ON CONFLICT (wallet_type, address) DO NOTHING
		RETURNING id
	`, id.wallet.ID, id.user.ID, string(wt), address, publicKey, now).Scan(&walletID)
	if err == nil {
		return &id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, unavailable("create wallet", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id.user.ID); err != nil {
		return nil, unavailable("drop orphan user", err)
	}
	winner, err := s.lockWallet(ctx, tx, wt, address)
	if err != nil {
		return nil, unavailable("lookup wallet", err)
	}
	return winner, nil
}

func (s *PostgresStore) WalletPublicKey(ctx context.Context, wt auth.WalletType, address string) (string, error) {
	var key sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT public_key FROM wallets WHERE wallet_type = $1 AND address = $2
	`, string(wt), address).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", unavailable("wallet public key", err)
	}
	if !key.Valid || key.String == "" {
		return "", ErrNotFound
	}
	return key.String, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, userID string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, role, created_at FROM users WHERE id = $1
	`, userID).Scan(&u.ID, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get user", err)
	}
	return &u, nil
}

func (s *PostgresStore) PruneNonces(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM auth_nonces
		WHERE consumed_at IS NOT NULL OR expires_at < $1
	`, before.UTC())
	if err != nil {
		return 0, unavailable("prune nonces", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("prune nonces", err)
	}
	return n, nil
}

func (s *PostgresStore) GetGitHubAccount(ctx context.Context, userID string) (*GitHubAccount, error) {
	var a GitHubAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, github_user_id, login, avatar_url, access_token_enc, scopes, created_at, updated_at
		FROM github_accounts
		WHERE user_id = $1
	`, userID).Scan(
		&a.UserID, &a.GitHubUserID, &a.Login, &a.AvatarURL, &a.AccessTokenEnc, &a.Scopes,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get github account", err)
	}
	return &a, nil
}

func (s *PostgresStore) UpsertGitHubAccount(ctx context.Context, acct *GitHubAccount) error {
	now := s.now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO github_accounts (user_id, github_user_id, login, avatar_url, access_token_enc, scopes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			github_user_id = EXCLUDED.github_user_id,
			login = EXCLUDED.login,
			avatar_url = EXCLUDED.avatar_url,
			access_token_enc = EXCLUDED.access_token_enc,
			scopes = EXCLUDED.scopes,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`, acct.UserID, acct.GitHubUserID, acct.Login, acct.AvatarURL, acct.AccessTokenEnc, acct.Scopes, now,
	).Scan(&acct.CreatedAt, &acct.UpdatedAt)
	if err != nil {
		return unavailable("upsert github account", err)
	}
	return nil
}

func (s *PostgresStore) DeleteGitHubAccount(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM github_accounts WHERE user_id = $1`, userID)
	if err != nil {
		return unavailable("delete github account", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("delete github account", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
