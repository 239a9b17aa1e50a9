package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/icedoutskay/grainlify/pkg/auth"
)

type walletKey struct {
	wt      auth.WalletType
	address string
}

type nonceRow struct {
	Nonce
	consumedAt time.Time
}

// MemoryStore is an in-process Store for tests and local development. A
// single mutex stands in for the database's row locking.
type MemoryStore struct {
	mu       sync.Mutex
	nonces   map[string]*nonceRow
	users    map[string]User
	wallets  map[walletKey]Wallet
	accounts map[string]GitHubAccount
	now      func() time.Time
	// failUpsert, when set, makes the identity step fail after the nonce
	// check so tests can observe rollback.
	failUpsert error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nonces:   make(map[string]*nonceRow),
		users:    make(map[string]User),
		wallets:  make(map[walletKey]Wallet),
		accounts: make(map[string]GitHubAccount),
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// FailUpserts makes every subsequent identity upsert return err. Pass nil to reset.
func (m *MemoryStore) FailUpserts(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failUpsert = err
}

func (m *MemoryStore) CreateNonce(ctx context.Context, wt auth.WalletType, address string, ttl time.Duration) (*Nonce, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("create nonce", err)
	}
	token, err := GenerateNonce()
	if err != nil {
		return nil, unavailable("create nonce", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for k, row := range m.nonces {
		if row.WalletType == wt && row.Address == address && row.consumedAt.IsZero() {
			delete(m.nonces, k)
		}
	}
	now := m.now().UTC()
	row := &nonceRow{Nonce: Nonce{
		Nonce:      token,
		WalletType: wt,
		Address:    address,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}}
	m.nonces[token] = row
	n := row.Nonce
	return &n, nil
}

func (m *MemoryStore) ConsumeNonceAndUpsertUser(ctx context.Context, wt auth.WalletType, address, nonce, publicKey string) (*LoginResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("begin login", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	row, ok := m.nonces[nonce]
	if !ok || row.WalletType != wt || row.Address != address || !row.consumedAt.IsZero() || !now.Before(row.ExpiresAt) {
		return nil, ErrInvalidOrExpiredNonce
	}
	if m.failUpsert != nil {
		// Nonce is left untouched, matching a rolled back transaction.
		return nil, unavailable("create user", m.failUpsert)
	}
	row.consumedAt = now

	key := walletKey{wt: wt, address: address}
	result := &LoginResult{}
	w, ok := m.wallets[key]
	if !ok {
		u := User{ID: uuid.NewString(), Role: DefaultRole, CreatedAt: now}
		m.users[u.ID] = u
		w = Wallet{
			ID:         uuid.NewString(),
			UserID:     u.ID,
			WalletType: wt,
			Address:    address,
			CreatedAt:  now,
		}
		result.Created = true
	}
	if publicKey != "" {
		w.PublicKey = publicKey
	}
	w.LastLoginAt = now
	m.wallets[key] = w

	result.Wallet = w
	result.User = m.users[w.UserID]
	return result, nil
}

func (m *MemoryStore) WalletPublicKey(ctx context.Context, wt auth.WalletType, address string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[walletKey{wt: wt, address: address}]
	if !ok || w.PublicKey == "" {
		return "", ErrNotFound
	}
	return w.PublicKey, nil
}

func (m *MemoryStore) GetUser(ctx context.Context, userID string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) PruneNonces(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, row := range m.nonces {
		if !row.consumedAt.IsZero() || row.ExpiresAt.Before(before) {
			delete(m.nonces, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) GetGitHubAccount(ctx context.Context, userID string) (*GitHubAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *MemoryStore) UpsertGitHubAccount(ctx context.Context, acct *GitHubAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	if prev, ok := m.accounts[acct.UserID]; ok {
		acct.CreatedAt = prev.CreatedAt
	} else {
		acct.CreatedAt = now
	}
	acct.UpdatedAt = now
	m.accounts[acct.UserID] = *acct
	return nil
}

func (m *MemoryStore) DeleteGitHubAccount(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[userID]; !ok {
		return ErrNotFound
	}
	delete(m.accounts, userID)
	return nil
}
