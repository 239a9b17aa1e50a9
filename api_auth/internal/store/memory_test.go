package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/icedoutskay/grainlify/pkg/auth"
)

func TestMemoryNonceIsSingleUse(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	n, err := s.CreateNonce(ctx, auth.WalletEVM, testAddr, time.Minute)
	require.NoError(t, err)
	require.Len(t, n.Nonce, 2*NonceBytes)

	first, err := s.ConsumeNonceAndUpsertUser(ctx, auth.WalletEVM, testAddr, n.Nonce, "")
	require.NoError(t, err)
	require.True(t, first.Created)

	_, err = s.ConsumeNonceAndUpsertUser(ctx, auth.WalletEVM, testAddr, n.Nonce, "")
	require.ErrorIs(t, err, ErrInvalidOrExpiredNonce)
}

func TestMemoryNonceBoundToWallet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	n, err := s.CreateNonce(ctx, auth.WalletEVM, testAddr, time.Minute)
	require.NoError(t, err)

	_, err = s.ConsumeNonceAndUpsertUser(ctx, auth.WalletEVM, "0x0000000000000000000000000000000000000001", n.Nonce, "")
	require.ErrorIs(t, err, ErrInvalidOrExpiredNonce)
	_, err = s.ConsumeNonceAndUpsertUser(ctx, auth.WalletSolana, testAddr, n.Nonce, "")
	require.ErrorIs(t, err, ErrInvalidOrExpiredNonce)
}

func TestMemoryNonceExpires(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	n, err := s.CreateNonce(ctx, auth.WalletEVM, testAddr, 10*time.Minute)
	require.NoError(t, err)

	now = now.Add(10 * time.Minute)
	_, err = s.ConsumeNonceAndUpsertUser(ctx, auth.WalletEVM, testAddr, n.Nonce, "")
	require.ErrorIs(t, err, ErrInvalidOrExpiredNonce)
}

func TestMemoryNewNonceSupersedesOld(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	old, err := s.CreateNonce(ctx, auth.WalletEVM, testAddr, time.Minute)
	require.NoError(t, err)
	fresh, err := s.CreateNonce(ctx, auth.WalletEVM, testAddr, time.Minute)
	require.NoError(t, err)
	require.NotEqual(t, old.Nonce, fresh.Nonce)

	_, err = s.ConsumeNonceAndUpsertUser(ctx, auth.WalletEVM, testAddr, old.Nonce, "")
	require.ErrorIs(t, err, ErrInvalidOrExpiredNonce)
	_, err = s.ConsumeNonceAndUpsertUser(ctx, auth.WalletEVM, testAddr, fresh.Nonce, "")
	require.NoError(t, err)
}

func TestMemoryConcurrentConsumeHasOneWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	n, err := s.CreateNonce(ctx, auth.WalletEVM, testAddr, time.Minute)
	require.NoError(t, err)

	const racers = 16
	var (
		wg       sync.WaitGroup
		start    = make(chan struct{})
		mu       sync.Mutex
		wins     int
		rejected int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.ConsumeNonceAndUpsertUser(ctx, auth.WalletEVM, testAddr, n.Nonce, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrInvalidOrExpiredNonce):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, 1, wins)
	require.Equal(t, racers-1, rejected)
}

func TestMemorySecondLoginReusesUser(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	login := func() *LoginResult {
		n, err := s.CreateNonce(ctx, auth.WalletEVM, testAddr, time.Minute)
		require.NoError(t, err)
		res, err := s.ConsumeNonceAndUpsertUser(ctx, auth.WalletEVM, testAddr, n.Nonce, "")
		require.NoError(t, err)
		return res
	}

	first := login()
	second := login()
	require.True(t, first.Created)
	require.False(t, second.Created)
	require.Equal(t, first.User.ID, second.User.ID)
	require.Equal(t, first.Wallet.ID, second.Wallet.ID)

	u, err := s.GetUser(ctx, first.User.ID)
	require.NoError(t, err)
	require.Equal(t, DefaultRole, u.Role)
}

func TestMemoryFailedUpsertLeavesNonceConsumable(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	n, err := s.CreateNonce(ctx, auth.WalletEVM, testAddr, time.Minute)
	require.NoError(t, err)

	s.FailUpserts(errors.New("disk full"))
	_, err = s.ConsumeNonceAndUpsertUser(ctx, auth.WalletEVM, testAddr, n.Nonce, "")
	require.ErrorIs(t, err, ErrStorageUnavailable)

	s.FailUpserts(nil)
	_, err = s.ConsumeNonceAndUpsertUser(ctx, auth.WalletEVM, testAddr, n.Nonce, "")
	require.NoError(t, err)
}

func TestMemoryCancelledContextWritesNothing(t *testing.T) {
	s := NewMemoryStore()
	n, err := s.CreateNonce(context.Background(), auth.WalletEVM, testAddr, time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.ConsumeNonceAndUpsertUser(ctx, auth.WalletEVM, testAddr, n.Nonce, "")
	require.ErrorIs(t, err, ErrStorageUnavailable)
	require.ErrorIs(t, err, context.Canceled)

	_, err = s.ConsumeNonceAndUpsertUser(context.Background(), auth.WalletEVM, testAddr, n.Nonce, "")
	require.NoError(t, err)
}

func TestMemoryPublicKeyPersistence(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	const addr = "0x00000000000000000000000000000000000000000000000000000000000000aa"

	_, err := s.WalletPublicKey(ctx, auth.WalletAptos, addr)
	require.ErrorIs(t, err, ErrNotFound)

	n, err := s.CreateNonce(ctx, auth.WalletAptos, addr, time.Minute)
	require.NoError(t, err)
	_, err = s.ConsumeNonceAndUpsertUser(ctx, auth.WalletAptos, addr, n.Nonce, "0xkey")
	require.NoError(t, err)

	n, err = s.CreateNonce(ctx, auth.WalletAptos, addr, time.Minute)
	require.NoError(t, err)
	res, err := s.ConsumeNonceAndUpsertUser(ctx, auth.WalletAptos, addr, n.Nonce, "")
	require.NoError(t, err)
	require.Equal(t, "0xkey", res.Wallet.PublicKey)

	key, err := s.WalletPublicKey(ctx, auth.WalletAptos, addr)
	require.NoError(t, err)
	require.Equal(t, "0xkey", key)
}

func TestMemoryPruneNonces(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	consumed, err := s.CreateNonce(ctx, auth.WalletEVM, testAddr, time.Hour)
	require.NoError(t, err)
	_, err = s.ConsumeNonceAndUpsertUser(ctx, auth.WalletEVM, testAddr, consumed.Nonce, "")
	require.NoError(t, err)
	_, err = s.CreateNonce(ctx, auth.WalletSolana, "expired", time.Minute)
	require.NoError(t, err)
	live, err := s.CreateNonce(ctx, auth.WalletStellar, "live", time.Hour)
	require.NoError(t, err)

	pruned, err := s.PruneNonces(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 2, pruned)

	_, err = s.ConsumeNonceAndUpsertUser(ctx, auth.WalletStellar, "live", live.Nonce, "")
	require.NoError(t, err)
}

func TestMemoryGitHubAccounts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.GetGitHubAccount(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)

	acct := &GitHubAccount{UserID: "u1", GitHubUserID: 1, Login: "octocat", AccessTokenEnc: "enc:v1:x"}
	require.NoError(t, s.UpsertGitHubAccount(ctx, acct))
	require.False(t, acct.CreatedAt.IsZero())

	got, err := s.GetGitHubAccount(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "octocat", got.Login)

	require.NoError(t, s.DeleteGitHubAccount(ctx, "u1"))
	require.ErrorIs(t, s.DeleteGitHubAccount(ctx, "u1"), ErrNotFound)
}
