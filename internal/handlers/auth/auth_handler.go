// internal/handlers/auth/auth_handler.go
package auth

import (
	"errors"
	"net/http"

	"pressroom-service/internal/domain/auth"
	"pressroom-service/internal/middleware"
	xerrors "pressroom-service/internal/pkg/errors"
	"pressroom-service/internal/pkg/response"
	authUsecase "pressroom-service/internal/service/auth"
	"pressroom-service/internal/upstream"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *authUsecase.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService *authUsecase.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// ========== Login ==========

// Login handles the first leg of sign-in. Depending on the account, the
// result is either a full session or an OTP challenge the caller must
// complete via VerifyOTP.
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		h.logger.Warn("login failed",
			zap.String("email", req.Email),
			zap.String("site", req.Site),
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		writeAuthError(c, err)
		return
	}

	if result.Status == auth.StatusOTPRequired {
		response.Success(c, http.StatusOK, "verification code required", result)
		return
	}

	h.logger.Info("user logged in",
		zap.String("user_id", result.User.ID),
		zap.String("email", result.User.Email),
	)

	response.Success(c, http.StatusOK, "login successful", result)
}

// VerifyOTP completes a pending challenge. Requires the temporary token
// issued by Login.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	jti := middleware.MustGetJTI(c)

	var req auth.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.authService.VerifyOTP(c.Request.Context(), jti, req.OTP)
	if err != nil {
		h.logger.Warn("otp verification failed",
			zap.String("jti", jti),
			zap.Error(err),
		)
		writeAuthError(c, err)
		return
	}

	h.logger.Info("otp verified",
		zap.String("user_id", result.User.ID),
		zap.String("email", result.User.Email),
	)

	response.Success(c, http.StatusOK, "login successful", result)
}

// ResendOTP requests a fresh code for a pending challenge.
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	jti := middleware.MustGetJTI(c)

	result, err := h.authService.ResendOTP(c.Request.Context(), jti)
	if err != nil {
		h.logger.Warn("otp resend failed",
			zap.String("jti", jti),
			zap.Error(err),
		)
		writeAuthError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "verification code sent", result)
}

// ========== Logout ==========

// Logout ends the current session. Safe to call repeatedly.
func (h *AuthHandler) Logout(c *gin.Context) {
	jti := middleware.MustGetJTI(c)

	if err := h.authService.Logout(c.Request.Context(), jti); err != nil {
		h.logger.Error("logout failed",
			zap.String("jti", jti),
			zap.Error(err),
		)
		response.Error(c, http.StatusInternalServerError, "logout failed", err)
		return
	}

	response.Success(c, http.StatusOK, "logout successful", nil)
}

// LogoutAll revokes every session of the current user.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	if err := h.authService.LogoutAll(c.Request.Context(), user.ID); err != nil {
		response.Error(c, http.StatusInternalServerError, "logout all failed", err)
		return
	}

	response.Success(c, http.StatusOK, "all sessions logged out", nil)
}

// ========== Profile ==========

// GetMe returns the profile attached to the current session.
func (h *AuthHandler) GetMe(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	response.Success(c, http.StatusOK, "profile retrieved", gin.H{
		"user":          user,
		"selected_site": middleware.GetSelectedSite(c),
	})
}

// SelectSite switches the working site for the current session.
func (h *AuthHandler) SelectSite(c *gin.Context) {
	jti := middleware.MustGetJTI(c)

	var req auth.SelectSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	if err := h.authService.SelectSite(c.Request.Context(), jti, req.Site); err != nil {
		writeAuthError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "site selected", gin.H{"site": req.Site})
}

// ========== Session Management ==========

// GetActiveSessions lists the current user's live sessions.
func (h *AuthHandler) GetActiveSessions(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	sessions, err := h.authService.Sessions(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to get sessions", err)
		return
	}

	response.Success(c, http.StatusOK, "sessions retrieved", sessions)
}

// RevokeSession kills one of the current user's sessions by its id.
func (h *AuthHandler) RevokeSession(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	sessionID := c.Param("session_id")

	if err := h.authService.RevokeSession(c.Request.Context(), user.ID, sessionID); err != nil {
		writeAuthError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "session revoked", nil)
}

// writeAuthError maps service errors to HTTP statuses. Upstream failures
// become 502 so the console can tell "your fault" from "try again later".
func writeAuthError(c *gin.Context, err error) {
	var callErr *upstream.CallError
	if errors.As(err, &callErr) {
		switch {
		case callErr.IsForbidden():
			response.Forbidden(c, "not allowed")
		case callErr.IsClient() && callErr.Status == http.StatusUnauthorized:
			response.Unauthorized(c, "invalid credentials")
		case callErr.IsClient():
			response.Error(c, http.StatusBadRequest, callErr.Message, nil)
		default:
			response.UpstreamUnavailable(c, "publishing platform unavailable, try again later", err)
		}
		return
	}

	switch {
	case errors.Is(err, xerrors.ErrRateLimited):
		response.Error(c, http.StatusTooManyRequests, "too many attempts, slow down", err)
	case errors.Is(err, xerrors.ErrChallengeExpired):
		response.Error(c, http.StatusUnauthorized, "verification window expired, sign in again", err)
	case errors.Is(err, xerrors.ErrNotPending):
		response.Error(c, http.StatusConflict, "no pending verification for this session", err)
	case errors.Is(err, xerrors.ErrSessionExpired):
		response.Unauthorized(c, "session expired")
	case errors.Is(err, xerrors.ErrUnauthorized):
		response.Unauthorized(c, xerrors.MessageOrDefault(err, "invalid credentials"))
	case errors.Is(err, xerrors.ErrForbidden):
		response.Forbidden(c, "not allowed")
	case errors.Is(err, xerrors.ErrSiteMismatch), errors.Is(err, xerrors.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, xerrors.MessageOrDefault(err, "invalid request"), err)
	case errors.Is(err, xerrors.ErrNotFound):
		response.NotFound(c, "not found")
	default:
		response.Error(c, http.StatusInternalServerError, "internal error", err)
	}
}
