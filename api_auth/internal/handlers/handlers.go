// Package handlers exposes the auth service over HTTP.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/icedoutskay/grainlify/api_auth/internal/service"
	"github.com/icedoutskay/grainlify/pkg/auth"
	"github.com/icedoutskay/grainlify/pkg/ctxkeys"
	"github.com/icedoutskay/grainlify/pkg/logging"
	"github.com/icedoutskay/grainlify/pkg/middleware"
)

// AuthService is satisfied by *service.Service.
type AuthService interface {
	IssueNonce(ctx context.Context, walletType, address string) (*service.NonceResponse, error)
	VerifyAndLogin(ctx context.Context, req service.VerifyRequest) (*service.LoginResponse, error)
	Me(ctx context.Context, userID, role string) (*service.Identity, error)
	LinkGitHub(ctx context.Context, userID, accessToken, scopes string) (*service.GitHubProfile, error)
	UnlinkGitHub(ctx context.Context, userID string) error
}

type Handlers struct {
	svc    AuthService
	logger logging.Logger
}

func New(svc AuthService, logger logging.Logger) *Handlers {
	return &Handlers{svc: svc, logger: logger}
}

// Register mounts the auth routes. Routes under /me require a session token
// signed with jwtSecret.
func (h *Handlers) Register(r gin.IRouter, jwtSecret []byte) {
	authGroup := r.Group("/auth")
	authGroup.POST("/nonce", h.IssueNonce)
	authGroup.POST("/verify", h.Verify)

	me := r.Group("/me", auth.JWTAuthMiddleware(jwtSecret))
	me.GET("", h.Me)
	me.POST("/github", h.LinkGitHub)
	me.DELETE("/github", h.UnlinkGitHub)
}

type nonceRequest struct {
	WalletType string `json:"wallet_type"`
	Address    string `json:"address"`
}

type linkRequest struct {
	AccessToken string `json:"access_token"`
	Scopes      string `json:"scopes"`
}

var statusByCode = map[service.Code]int{
	service.CodeInvalidRequest:          http.StatusBadRequest,
	service.CodeInvalidWalletType:       http.StatusBadRequest,
	service.CodeInvalidAddress:          http.StatusBadRequest,
	service.CodeMissingNonceOrSignature: http.StatusBadRequest,
	service.CodeInvalidSignature:        http.StatusUnauthorized,
	service.CodeInvalidOrExpiredNonce:   http.StatusUnauthorized,
	service.CodeUnauthenticated:         http.StatusUnauthorized,
	service.CodeRateLimited:             http.StatusTooManyRequests,
	service.CodeNotLinked:               http.StatusNotFound,
	service.CodeSigningFailure:          http.StatusInternalServerError,
	service.CodeDecryptionFailure:       http.StatusInternalServerError,
	service.CodeInternal:                http.StatusInternalServerError,
	service.CodeUpstreamUnavailable:     http.StatusBadGateway,
	service.CodeStorageUnavailable:      http.StatusServiceUnavailable,
}

// StatusFor maps a service code to its HTTP status.
func StatusFor(code service.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func (h *Handlers) fail(c *gin.Context, err error) {
	code := service.CodeOf(err)
	message := "internal error"
	var se *service.Error
	if errors.As(err, &se) && se.Message != "" {
		message = se.Message
	}

	status := StatusFor(code)
	if status >= http.StatusInternalServerError {
		middleware.GetContextLogger(c, h.logger).WithError(err).WithField("code", code).Error("Auth request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": string(code), "message": message})
}

func (h *Handlers) badRequest(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   string(service.CodeInvalidRequest),
		"message": "request body must be valid JSON",
	})
}

// IssueNonce handles POST /auth/nonce.
func (h *Handlers) IssueNonce(c *gin.Context) {
	var req nonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c)
		return
	}
	resp, err := h.svc.IssueNonce(c.Request.Context(), req.WalletType, req.Address)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Verify handles POST /auth/verify.
func (h *Handlers) Verify(c *gin.Context) {
	var req service.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c)
		return
	}
	resp, err := h.svc.VerifyAndLogin(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Me handles GET /me.
func (h *Handlers) Me(c *gin.Context) {
	ctx := c.Request.Context()
	ident, err := h.svc.Me(ctx, ctxkeys.GetUserID(ctx), ctxkeys.GetRole(ctx))
	if err != nil {
		h.fail(c, err)
		return
	}
	if wt := ctxkeys.GetWalletType(ctx); wt != "" {
		ident.Wallet = &service.WalletInfo{
			WalletType: auth.WalletType(wt),
			Address:    ctxkeys.GetWalletAddress(ctx),
		}
	}
	if exp, ok := ctxkeys.GetJWTExpiresAt(ctx); ok {
		ident.SessionExpiresAt = &exp
	}
	c.JSON(http.StatusOK, ident)
}

// LinkGitHub handles POST /me/github.
func (h *Handlers) LinkGitHub(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c)
		return
	}
	ctx := c.Request.Context()
	profile, err := h.svc.LinkGitHub(ctx, ctxkeys.GetUserID(ctx), req.AccessToken, req.Scopes)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"github": profile})
}

// UnlinkGitHub handles DELETE /me/github.
func (h *Handlers) UnlinkGitHub(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.svc.UnlinkGitHub(ctx, ctxkeys.GetUserID(ctx)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
