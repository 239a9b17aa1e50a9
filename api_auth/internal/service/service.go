// Package service implements the wallet login protocol and identity lookup.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/icedoutskay/grainlify/api_auth/internal/store"
	"github.com/icedoutskay/grainlify/api_auth/internal/vault"
	"github.com/icedoutskay/grainlify/pkg/auth"
	"github.com/icedoutskay/grainlify/pkg/cache"
	"github.com/icedoutskay/grainlify/pkg/clients/github"
	"github.com/icedoutskay/grainlify/pkg/logging"
	"github.com/icedoutskay/grainlify/pkg/ratelimit"
)

const (
	DefaultNonceTTL        = 10 * time.Minute
	DefaultJWTTTL          = 15 * time.Minute
	DefaultProfileCacheTTL = 60 * time.Second

	profileFetchTimeout = 10 * time.Second
)

type Config struct {
	JWTSecret       []byte
	NonceTTL        time.Duration
	JWTTTL          time.Duration
	ProfileCacheTTL time.Duration
}

// GitHubClient fetches the profile behind an access token.
type GitHubClient interface {
	GetUser(ctx context.Context, accessToken string) (*github.User, error)
}

// AccountVault is satisfied by *vault.Vault.
type AccountVault interface {
	Get(ctx context.Context, userID string) (*vault.LinkedAccount, error)
	CachedProfile(ctx context.Context, userID string) (*vault.Profile, error)
	Link(ctx context.Context, userID string, profile vault.Profile, accessToken, scopes string) error
	Unlink(ctx context.Context, userID string) error
}

// RateLimiter is satisfied by *ratelimit.FixedWindow.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Result, error)
}

type NonceResponse struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

type VerifyRequest struct {
	WalletType string `json:"wallet_type"`
	Address    string `json:"address"`
	Nonce      string `json:"nonce"`
	Signature  string `json:"signature"`
	PublicKey  string `json:"public_key,omitempty"`
}

type UserInfo struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type WalletInfo struct {
	WalletType auth.WalletType `json:"wallet_type"`
	Address    string          `json:"address"`
}

type LoginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      UserInfo   `json:"user"`
	Wallet    WalletInfo `json:"wallet"`
}

type GitHubProfile struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Location  string `json:"location,omitempty"`
	Bio       string `json:"bio,omitempty"`
	Website   string `json:"website,omitempty"`
}

// Identity is the /me payload. Wallet and SessionExpiresAt describe the
// session token and are filled in by the request layer.
type Identity struct {
	ID               string         `json:"id"`
	Role             string         `json:"role"`
	Wallet           *WalletInfo    `json:"wallet,omitempty"`
	SessionExpiresAt *time.Time     `json:"session_expires_at,omitempty"`
	GitHub           *GitHubProfile `json:"github,omitempty"`
}

type Service struct {
	cfg      Config
	store    store.Store
	vault    AccountVault
	github   GitHubClient
	limiter  RateLimiter
	registry *auth.Registry
	metrics  *Metrics
	profiles *cache.Cache[*github.User]
	logger   logging.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithRateLimiter(l RateLimiter) Option {
	return func(s *Service) { s.limiter = l }
}

func WithRegistry(r *auth.Registry) Option {
	return func(s *Service) { s.registry = r }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(cfg Config, st store.Store, v AccountVault, gh GitHubClient, logger logging.Logger, opts ...Option) (*Service, error) {
	if len(cfg.JWTSecret) == 0 {
		return nil, errors.New("service: JWT secret is required")
	}
	if cfg.NonceTTL <= 0 {
		cfg.NonceTTL = DefaultNonceTTL
	}
	if cfg.JWTTTL <= 0 {
		cfg.JWTTTL = DefaultJWTTTL
	}
	if cfg.ProfileCacheTTL <= 0 {
		cfg.ProfileCacheTTL = DefaultProfileCacheTTL
	}

	s := &Service{
		cfg:      cfg,
		store:    st,
		vault:    v,
		github:   gh,
		registry: auth.DefaultRegistry(),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.profiles = cache.New[*github.User](
		cache.Options{TTL: cfg.ProfileCacheTTL, MaxEntries: 10000},
		cache.MetricsHooks{OnHit: s.metrics.cacheHook("hit"), OnMiss: s.metrics.cacheHook("miss")},
	)
	return s, nil
}

func (s *Service) normalizeWallet(rawType, rawAddress string) (auth.WalletType, string, error) {
	wt, err := auth.NormalizeWalletType(rawType)
	if err != nil {
		return "", "", err
	}
	if _, ok := s.registry.Scheme(wt); !ok {
		return "", "", fmt.Errorf("%w: %s", auth.ErrSchemeNotInstalled, wt)
	}
	addr, err := auth.NormalizeAddress(wt, rawAddress)
	if err != nil {
		return "", "", err
	}
	return wt, addr, nil
}

// IssueNonce creates a login challenge for the wallet and returns the message
// the wallet must sign.
func (s *Service) IssueNonce(ctx context.Context, walletType, address string) (resp *NonceResponse, err error) {
	defer func(start time.Time) { s.metrics.observe("issue_nonce", start, err) }(time.Now())

	wt, addr, err := s.normalizeWallet(walletType, address)
	if err != nil {
		return nil, classify(err)
	}

	if s.limiter != nil {
		if _, err := s.limiter.Allow(ctx, string(wt)+":"+addr); err != nil {
			if errors.Is(err, ratelimit.ErrRateLimited) {
				return nil, classify(err)
			}
			// Limiter outages do not block logins.
			s.logger.WithError(err).Warn("Nonce rate limiter unavailable")
		}
	}

	n, err := s.store.CreateNonce(ctx, wt, addr, s.cfg.NonceTTL)
	if err != nil {
		s.logger.WithError(err).WithField("wallet_type", wt).Error("Failed to create nonce")
		return nil, classify(err)
	}

	return &NonceResponse{
		Nonce:     n.Nonce,
		Message:   auth.LoginMessage(n.Nonce),
		ExpiresAt: n.ExpiresAt,
	}, nil
}

// VerifyAndLogin checks the signature over the nonce, consumes the nonce,
// upserts the wallet's user and issues a session token.
func (s *Service) VerifyAndLogin(ctx context.Context, req VerifyRequest) (resp *LoginResponse, err error) {
	defer func(start time.Time) { s.metrics.observe("verify", start, err) }(time.Now())

	wt, addr, err := s.normalizeWallet(req.WalletType, req.Address)
	if err != nil {
		return nil, classify(err)
	}
	nonce := strings.TrimSpace(req.Nonce)
	signature := strings.TrimSpace(req.Signature)
	if nonce == "" || signature == "" {
		return nil, classify(auth.ErrMissingCredential)
	}
	suppliedKey := strings.TrimSpace(req.PublicKey)

	verifyKey := suppliedKey
	if verifyKey == "" && s.registry.RequiresPublicKey(wt) {
		stored, err := s.store.WalletPublicKey(ctx, wt, addr)
		switch {
		case err == nil:
			verifyKey = stored
		case errors.Is(err, store.ErrNotFound):
		default:
			return nil, classify(err)
		}
	}

	log := s.logger.WithFields(logging.Fields{"wallet_type": wt, "address": addr})

	rendering, err := s.registry.VerifyLogin(wt, addr, nonce, signature, verifyKey)
	if err != nil {
		log.WithError(err).Info("Wallet signature rejected")
		return nil, classify(err)
	}
	s.metrics.rendering(string(wt), rendering.Name)
	log.WithField("rendering", rendering.Name).Debug("Wallet signature verified")

	result, err := s.store.ConsumeNonceAndUpsertUser(ctx, wt, addr, nonce, suppliedKey)
	if err != nil {
		if !errors.Is(err, store.ErrInvalidOrExpiredNonce) {
			log.WithError(err).Error("Failed to consume nonce")
		}
		return nil, classify(err)
	}

	token, expiresAt, err := auth.IssueJWTAt(s.cfg.JWTSecret, result.User.ID, result.User.Role, wt, addr, s.now(), s.cfg.JWTTTL)
	if err != nil {
		log.WithError(err).Error("Failed to sign session token")
		return nil, classify(err)
	}

	log.WithFields(logging.Fields{
		"user_id":   result.User.ID,
		"new_user":  result.Created,
		"rendering": rendering.Name,
	}).Info("Wallet login succeeded")

	return &LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User: UserInfo{
			ID:        result.User.ID,
			Role:      result.User.Role,
			CreatedAt: result.User.CreatedAt,
		},
		Wallet: WalletInfo{WalletType: wt, Address: addr},
	}, nil
}

// Me returns the authenticated user's identity and, when linked, their GitHub
// profile. Profile enrichment never fails the request.
func (s *Service) Me(ctx context.Context, userID, role string) (ident *Identity, err error) {
	defer func(start time.Time) { s.metrics.observe("me", start, err) }(time.Now())

	if userID == "" {
		return nil, classify(auth.ErrUnauthenticated)
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, classify(err)
	}
	if user.Role != "" {
		role = user.Role
	}

	return &Identity{
		ID:     user.ID,
		Role:   role,
		GitHub: s.githubProfile(ctx, userID),
	}, nil
}

func (s *Service) githubProfile(ctx context.Context, userID string) *GitHubProfile {
	log := s.logger.WithField("user_id", userID)

	acct, err := s.vault.Get(ctx, userID)
	if err == nil {
		gh, err := s.profiles.Get(ctx, userID, func(ctx context.Context, _ string) (*github.User, error) {
			// Concurrent callers share this load; the first caller going away
			// must not cancel it for the rest.
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), profileFetchTimeout)
			defer cancel()
			return s.github.GetUser(ctx, acct.AccessToken)
		})
		if err == nil {
			s.metrics.profileSource("github")
			return profileFromUser(gh)
		}
		log.WithError(err).Warn("GitHub profile fetch failed; using cached profile")
	} else if !errors.Is(err, vault.ErrNotLinked) {
		log.WithError(err).Warn("Linked account lookup failed; using cached profile")
	}

	cached, err := s.vault.CachedProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, vault.ErrNotLinked) {
			log.WithError(err).Warn("Cached GitHub profile unavailable")
		}
		s.metrics.profileSource("none")
		return nil
	}
	s.metrics.profileSource("cache")
	return &GitHubProfile{Login: cached.Login, AvatarURL: cached.AvatarURL}
}

func profileFromUser(u *github.User) *GitHubProfile {
	return &GitHubProfile{
		Login:     u.Login,
		AvatarURL: u.AvatarURL,
		Name:      u.Name,
		Email:     u.Email,
		Location:  u.Location,
		Bio:       u.Bio,
		Website:   u.Blog,
	}
}

// LinkGitHub resolves accessToken to a GitHub profile and stores it
// encrypted for userID.
func (s *Service) LinkGitHub(ctx context.Context, userID, accessToken, scopes string) (profile *GitHubProfile, err error) {
	defer func(start time.Time) { s.metrics.observe("link_github", start, err) }(time.Now())

	accessToken = strings.TrimSpace(accessToken)
	if userID == "" {
		return nil, classify(auth.ErrUnauthenticated)
	}
	if accessToken == "" {
		return nil, newError(CodeInvalidRequest, "access_token is required", nil)
	}

	gh, err := s.github.GetUser(ctx, accessToken)
	if err != nil {
		return nil, classify(err)
	}
	if err := s.vault.Link(ctx, userID, vault.Profile{
		GitHubUserID: gh.ID,
		Login:        gh.Login,
		AvatarURL:    gh.AvatarURL,
	}, accessToken, scopes); err != nil {
		return nil, classify(err)
	}
	s.profiles.Set(userID, gh)

	s.logger.WithFields(logging.Fields{"user_id": userID, "github_login": gh.Login}).Info("GitHub account linked")
	return profileFromUser(gh), nil
}

func (s *Service) UnlinkGitHub(ctx context.Context, userID string) (err error) {
	defer func(start time.Time) { s.metrics.observe("unlink_github", start, err) }(time.Now())

	s.profiles.Delete(userID)
	if err := s.vault.Unlink(ctx, userID); err != nil {
		return classify(err)
	}
	return nil
}

// PruneNonces deletes consumed and expired nonces.
func (s *Service) PruneNonces(ctx context.Context) (int64, error) {
	return s.store.PruneNonces(ctx, s.now())
}
