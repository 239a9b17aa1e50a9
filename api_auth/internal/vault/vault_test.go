package vault

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/icedoutskay/grainlify/api_auth/internal/store"
	fieldcrypt "github.com/icedoutskay/grainlify/pkg/crypto"
	"github.com/icedoutskay/grainlify/pkg/logging"
)

func newEncryptor(t *testing.T, fill byte) *fieldcrypt.FieldEncryptor {
	t.Helper()
	enc, err := fieldcrypt.NewFieldEncryptor(bytes.Repeat([]byte{fill}, fieldcrypt.KeySize))
	if err != nil {
		t.Fatalf("NewFieldEncryptor: %v", err)
	}
	return enc
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(store.NewMemoryStore(), nil, logging.NewDiscardLogger()); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
}

func TestLinkThenGet(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	v, err := New(s, newEncryptor(t, 1), logging.NewDiscardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	profile := Profile{GitHubUserID: 583231, Login: "octocat", AvatarURL: "https://avatars.example/583231"}
	if err := v.Link(ctx, "user-1", profile, "gho_secret", "read:user"); err != nil {
		t.Fatalf("Link: %v", err)
	}

	stored, err := s.GetGitHubAccount(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetGitHubAccount: %v", err)
	}
	if strings.Contains(stored.AccessTokenEnc, "gho_secret") || !fieldcrypt.IsEncrypted(stored.AccessTokenEnc) {
		t.Fatalf("token stored in plaintext: %q", stored.AccessTokenEnc)
	}

	acct, err := v.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if acct.AccessToken != "gho_secret" || acct.Login != "octocat" || acct.Scopes != "read:user" {
		t.Fatalf("unexpected account: %+v", acct)
	}
}

func TestGetNotLinked(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	v, _ := New(s, newEncryptor(t, 1), logging.NewDiscardLogger())

	if _, err := v.Get(ctx, "nobody"); !errors.Is(err, ErrNotLinked) {
		t.Fatalf("expected ErrNotLinked, got %v", err)
	}

	// A row with only the cached profile has no token to hand out.
	_ = s.UpsertGitHubAccount(ctx, &store.GitHubAccount{UserID: "cache-only", Login: "octocat"})
	if _, err := v.Get(ctx, "cache-only"); !errors.Is(err, ErrNotLinked) {
		t.Fatalf("expected ErrNotLinked for empty token, got %v", err)
	}
}

func TestWrongKeyFailsAsNotLinked(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	writer, _ := New(s, newEncryptor(t, 1), logging.NewDiscardLogger())
	if err := writer.Link(ctx, "user-1", Profile{Login: "octocat"}, "gho_secret", ""); err != nil {
		t.Fatalf("Link: %v", err)
	}

	var buf bytes.Buffer
	logger := logging.NewDiscardLogger()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.WarnLevel)

	reader, _ := New(s, newEncryptor(t, 2), logger)
	acct, err := reader.Get(ctx, "user-1")
	if acct != nil {
		t.Fatalf("wrong key must not yield an account: %+v", acct)
	}
	if !errors.Is(err, ErrNotLinked) || !errors.Is(err, fieldcrypt.ErrDecryptionFailure) {
		t.Fatalf("expected ErrNotLinked wrapping ErrDecryptionFailure, got %v", err)
	}
	if !strings.Contains(buf.String(), "could not be decrypted") {
		t.Fatalf("decryption failure was not logged: %q", buf.String())
	}
	if strings.Contains(buf.String(), "gho_secret") {
		t.Fatal("token leaked into logs")
	}
}

func TestTamperedTokenFails(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	v, _ := New(s, newEncryptor(t, 1), logging.NewDiscardLogger())
	_ = v.Link(ctx, "user-1", Profile{Login: "octocat"}, "gho_secret", "")

	acct, _ := s.GetGitHubAccount(ctx, "user-1")
	raw := []byte(acct.AccessTokenEnc)
	mid := len(raw) / 2
	if raw[mid] == 'A' {
		raw[mid] = 'B'
	} else {
		raw[mid] = 'A'
	}
	acct.AccessTokenEnc = string(raw)
	_ = s.UpsertGitHubAccount(ctx, acct)

	if _, err := v.Get(ctx, "user-1"); !errors.Is(err, fieldcrypt.ErrDecryptionFailure) {
		t.Fatalf("expected decryption failure, got %v", err)
	}
}

func TestCachedProfileIgnoresToken(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	_ = s.UpsertGitHubAccount(ctx, &store.GitHubAccount{
		UserID: "user-1", GitHubUserID: 7, Login: "octocat", AvatarURL: "https://a/7", AccessTokenEnc: "enc:v1:garbage",
	})
	v, _ := New(s, newEncryptor(t, 1), logging.NewDiscardLogger())

	p, err := v.CachedProfile(ctx, "user-1")
	if err != nil {
		t.Fatalf("CachedProfile: %v", err)
	}
	if p.Login != "octocat" || p.AvatarURL != "https://a/7" {
		t.Fatalf("unexpected profile %+v", p)
	}
	if _, err := v.CachedProfile(ctx, "nobody"); !errors.Is(err, ErrNotLinked) {
		t.Fatalf("expected ErrNotLinked, got %v", err)
	}
}

func TestUnlink(t *testing.T) {
	ctx := context.Background()
	v, _ := New(store.NewMemoryStore(), newEncryptor(t, 1), logging.NewDiscardLogger())

	if err := v.Link(ctx, "user-1", Profile{Login: "octocat"}, "", ""); !errors.Is(err, ErrEmptyAccess) {
		t.Fatalf("expected ErrEmptyAccess, got %v", err)
	}
	_ = v.Link(ctx, "user-1", Profile{Login: "octocat"}, "gho_secret", "")
	if err := v.Unlink(ctx, "user-1"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if err := v.Unlink(ctx, "user-1"); !errors.Is(err, ErrNotLinked) {
		t.Fatalf("expected ErrNotLinked, got %v", err)
	}
}
