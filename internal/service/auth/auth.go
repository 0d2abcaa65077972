// internal/service/auth/auth.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"pressroom-service/internal/domain/audit"
	"pressroom-service/internal/domain/auth"
	wstypes "pressroom-service/internal/domain/websocket"
	xerrors "pressroom-service/internal/pkg/errors"
	"pressroom-service/internal/pkg/jwt"
	"pressroom-service/internal/pkg/session"
	"pressroom-service/internal/upstream"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// SessionStore is the slice of the session manager the lifecycle needs.
type SessionStore interface {
	Save(ctx context.Context, rec *session.Record) error
	Get(ctx context.Context, jti string) (*session.Record, error)
	Invalidate(ctx context.Context, jti string) error
	SessionsForUser(ctx context.Context, userID string) ([]*session.Record, error)
	InvalidateAllForUser(ctx context.Context, userID string) error
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsTokenBlacklisted(ctx context.Context, jti string) (bool, error)
}

// Limiter throttles login and OTP attempts.
type Limiter interface {
	CheckLoginAttempt(ctx context.Context, ip, email string) (bool, int64, error)
	ResetLoginAttempts(ctx context.Context, ip, email string) error
	CheckOTPAttempt(ctx context.Context, jti string) (bool, error)
	ResetOTPAttempts(ctx context.Context, jti string) error
}

// Auditor records console auth events. Failures are logged, never fatal.
type Auditor interface {
	Record(ctx context.Context, event *audit.Event) error
}

// Notifier pushes real-time events to a user's connected consoles.
type Notifier interface {
	ForceLogout(userID, jti, reason string)
	NotifyUser(userID string, msg *wstypes.WSMessage)
}

// PreferenceStore receives the article-filter preferences returned alongside
// a successful OTP verification; they are not kept on the session.
type PreferenceStore interface {
	SaveArticleFilters(ctx context.Context, userID string, filters json.RawMessage) error
}

type AuthService struct {
	client     *upstream.Client
	sessions   SessionStore
	limiter    Limiter
	jwtManager *jwt.Manager
	auditor    Auditor
	notifier   Notifier
	prefs      PreferenceStore
	logger     *zap.Logger

	sites      []string
	sessionTTL time.Duration
	now        func() time.Time
}

func NewAuthService(
	client *upstream.Client,
	sessions SessionStore,
	limiter Limiter,
	jwtManager *jwt.Manager,
	auditor Auditor,
	notifier Notifier,
	prefs PreferenceStore,
	sites []string,
	sessionTTL time.Duration,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		client:     client,
		sessions:   sessions,
		limiter:    limiter,
		jwtManager: jwtManager,
		auditor:    auditor,
		notifier:   notifier,
		prefs:      prefs,
		logger:     logger,
		sites:      sites,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// knownSite reports whether the console manages the given site. An empty
// site list disables the check.
func (s *AuthService) knownSite(site string) bool {
	if len(s.sites) == 0 {
		return true
	}
	for _, known := range s.sites {
		if known == site {
			return true
		}
	}
	return false
}

// loginPayload is what the upstream login/verify endpoints answer with.
// Either the session fields (user, token) or the challenge fields are set.
type loginPayload struct {
	RequiresOTP    bool            `json:"requires_otp"`
	TempAuthToken  string          `json:"temp_auth_token"`
	ExpiresIn      int64           `json:"expires_in"`
	TokenExpiresIn int64           `json:"token_expires_in"`
	User           *auth.UserInfo  `json:"user"`
	Token          string          `json:"token"`
	ArticleFilters json.RawMessage `json:"article_filters"`
}

// ========== Login ==========

// Login submits credentials to the upstream platform. Two success shapes
// exist: an immediate session (user + token) or an OTP challenge, in which
// case the returned console token carries the pending sub-state.
func (s *AuthService) Login(ctx context.Context, creds auth.Credentials, ip, userAgent string) (*auth.LoginResult, error) {
	if !s.knownSite(creds.Site) {
		return nil, fmt.Errorf("unknown site %q: %w", creds.Site, xerrors.ErrSiteMismatch)
	}

	allowed, remaining, err := s.limiter.CheckLoginAttempt(ctx, ip, creds.Email)
	if err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	if !allowed {
		return nil, xerrors.ErrRateLimited
	}

	resp, callErr := s.client.Do(ctx, http.MethodPost, "/auth/login", creds, upstream.Options{Site: creds.Site, Quiet: true})
	if callErr != nil {
		if callErr.IsClient() && callErr.Status == http.StatusUnauthorized {
			return nil, fmt.Errorf("invalid credentials (attempts remaining: %d): %w", remaining, xerrors.ErrUnauthorized)
		}
		return nil, callErr
	}

	var payload loginPayload
	if err := resp.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}

	if payload.RequiresOTP {
		return s.enterOTPPending(ctx, creds, &payload, ip, userAgent)
	}

	if payload.User == nil || payload.Token == "" {
		return nil, fmt.Errorf("upstream login response missing user or token: %w", xerrors.ErrUpstream)
	}

	s.limiter.ResetLoginAttempts(ctx, ip, creds.Email)
	return s.establishSession(ctx, payload.User, payload.Token, creds.Site, ip, userAgent, "login.success")
}

// enterOTPPending stores the challenge with created_at set at receipt time
// and hands back a temporary console token bounded by the exchange horizon.
func (s *AuthService) enterOTPPending(ctx context.Context, creds auth.Credentials, payload *loginPayload, ip, userAgent string) (*auth.LoginResult, error) {
	challenge := &auth.OtpChallenge{
		TempAuthToken:  payload.TempAuthToken,
		ExpiresIn:      payload.ExpiresIn,
		TokenExpiresIn: payload.TokenExpiresIn,
		Email:          creds.Email,
		Site:           creds.Site,
		CreatedAt:      s.now().UnixMilli(),
	}

	// The exchange window bounds the token; a lapsed code window must not
	// cut off resend.
	ttl := time.Duration(challenge.TokenExpiresIn) * time.Second
	token, jti, err := s.jwtManager.Generator.GenerateOTPPendingToken(creds.Email, creds.Site, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to generate challenge token: %w", err)
	}

	rec := &session.Record{
		JTI:            jti,
		State:          session.StateOTPPending,
		SelectedSite:   creds.Site,
		Challenge:      challenge,
		IPAddress:      ip,
		UserAgent:      userAgent,
		LoginAt:        s.now(),
		LastActivityAt: s.now(),
	}
	if err := s.sessions.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store pending session: %w", err)
	}

	s.audit(ctx, &audit.Event{
		ActorEmail: creds.Email,
		SessionJTI: jti,
		EventType:  "login.otp_required",
		Site:       creds.Site,
		IPAddress:  ip,
	})

	return &auth.LoginResult{
		Status:         auth.StatusOTPRequired,
		Token:          token,
		TokenType:      "Bearer",
		ExpiresIn:      challenge.ExpiresIn,
		TokenExpiresIn: challenge.TokenExpiresIn,
	}, nil
}

// ========== OTP verification ==========

// VerifyOTP exchanges the second-factor code for a real session. Both expiry
// horizons are validated locally first; a lapsed challenge fails without a
// network round-trip.
func (s *AuthService) VerifyOTP(ctx context.Context, jti, code string) (*auth.LoginResult, error) {
	rec, err := s.sessions.Get(ctx, jti)
	if err != nil {
		return nil, xerrors.ErrSessionExpired
	}
	if !rec.Pending() {
		return nil, xerrors.ErrNotPending
	}

	if rec.Challenge.Expired(s.now().UnixMilli()) {
		s.audit(ctx, &audit.Event{
			ActorEmail: rec.Challenge.Email,
			SessionJTI: jti,
			EventType:  "otp.expired",
			Site:       rec.SelectedSite,
			IPAddress:  rec.IPAddress,
		})
		return nil, xerrors.ErrChallengeExpired
	}

	allowed, err := s.limiter.CheckOTPAttempt(ctx, jti)
	if err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	if !allowed {
		return nil, xerrors.ErrRateLimited
	}

	body := map[string]string{
		"email":           rec.Challenge.Email,
		"otp":             code,
		"temp_auth_token": rec.Challenge.TempAuthToken,
	}
	resp, callErr := s.client.Do(ctx, http.MethodPost, "/auth/otp/verify", body, upstream.Options{Site: rec.SelectedSite, Quiet: true})
	if callErr != nil {
		return nil, callErr
	}

	var payload loginPayload
	if err := resp.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode verify response: %w", err)
	}
	if payload.User == nil || payload.Token == "" {
		return nil, fmt.Errorf("upstream verify response missing user or token: %w", xerrors.ErrUpstream)
	}

	// Filter preferences ride along with the verify response but belong to
	// the preferences collaborator, not the session.
	if len(payload.ArticleFilters) > 0 && s.prefs != nil {
		if err := s.prefs.SaveArticleFilters(ctx, payload.User.ID, payload.ArticleFilters); err != nil {
			s.logger.Warn("failed to store article filter preferences", zap.Error(err))
		}
	}

	s.limiter.ResetOTPAttempts(ctx, jti)
	s.sessions.Invalidate(ctx, jti)

	return s.establishSession(ctx, payload.User, payload.Token, rec.SelectedSite, rec.IPAddress, rec.UserAgent, "otp.verified")
}

// ResendOTP re-issues the challenge and resets created_at. It is permitted
// only while a challenge is pending. A lapsed OTP-code window alone does not
// block resend (resend exists to recover from a missed code); once the
// token-exchange window has lapsed the challenge is gone and resend fails
// with the expired error.
func (s *AuthService) ResendOTP(ctx context.Context, jti string) (*auth.LoginResult, error) {
	rec, err := s.sessions.Get(ctx, jti)
	if err != nil {
		return nil, xerrors.ErrSessionExpired
	}
	if !rec.Pending() {
		return nil, xerrors.ErrNotPending
	}
	if rec.Challenge.TokenExpired(s.now().UnixMilli()) {
		return nil, xerrors.ErrChallengeExpired
	}

	body := map[string]string{
		"email":           rec.Challenge.Email,
		"temp_auth_token": rec.Challenge.TempAuthToken,
	}
	resp, callErr := s.client.Do(ctx, http.MethodPost, "/auth/otp/resend", body, upstream.Options{Site: rec.SelectedSite, Quiet: true})
	if callErr != nil {
		return nil, callErr
	}

	var payload loginPayload
	if err := resp.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode resend response: %w", err)
	}

	creds := auth.Credentials{Email: rec.Challenge.Email, Site: rec.Challenge.Site}
	result, err := s.enterOTPPending(ctx, creds, &payload, rec.IPAddress, rec.UserAgent)
	if err != nil {
		return nil, err
	}

	// The old pending record is superseded by the fresh challenge.
	s.sessions.Invalidate(ctx, jti)
	return result, nil
}

// establishSession creates the authenticated record and mints the console
// access token.
func (s *AuthService) establishSession(ctx context.Context, user *auth.UserInfo, upstreamToken, site, ip, userAgent, eventType string) (*auth.LoginResult, error) {
	token, jti, err := s.jwtManager.Generator.GenerateAccessToken(user.ID, user.Email, user.Roles, user.Permissions, site)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	rec := &session.Record{
		JTI:            jti,
		State:          session.StateAuthenticated,
		UpstreamToken:  upstreamToken,
		SelectedSite:   site,
		User:           user,
		IPAddress:      ip,
		UserAgent:      userAgent,
		LoginAt:        s.now(),
		LastActivityAt: s.now(),
	}
	if err := s.sessions.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.audit(ctx, &audit.Event{
		ActorID:    user.ID,
		ActorEmail: user.Email,
		SessionJTI: jti,
		EventType:  eventType,
		Site:       site,
		Roles:      pq.StringArray(user.Roles),
		IPAddress:  ip,
	})

	s.logger.Info("console session established",
		zap.String("user_id", user.ID),
		zap.String("site", site),
	)

	// Open tabs of the same user learn about the new sign-in.
	s.notifier.NotifyUser(user.ID, wstypes.NewMessage(wstypes.EventTypeNotification, map[string]string{
		"kind": "new_sign_in",
		"site": site,
		"ip":   ip,
	}))

	return &auth.LoginResult{
		Status:    auth.StatusAuthenticated,
		Token:     token,
		TokenType: "Bearer",
		User:      user,
	}, nil
}

// ========== Logout ==========

// Logout invalidates the upstream token (best-effort; local logout proceeds
// regardless of the server outcome) and clears the session. It is
// idempotent: a second call finds no record and succeeds.
func (s *AuthService) Logout(ctx context.Context, jti string) error {
	rec, err := s.sessions.Get(ctx, jti)
	if err != nil {
		return nil
	}

	if rec.Authenticated() {
		_, callErr := s.client.Do(ctx, http.MethodPost, "/auth/logout", nil, upstream.Options{
			Token: rec.UpstreamToken,
			Site:  rec.SelectedSite,
			Quiet: true,
		})
		if callErr != nil {
			s.logger.Warn("upstream logout failed, clearing session anyway", zap.Error(callErr))
		}
	}

	if err := s.sessions.Invalidate(ctx, jti); err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}
	s.sessions.BlacklistToken(ctx, jti, s.sessionTTL)

	if rec.User != nil {
		if s.notifier != nil {
			s.notifier.ForceLogout(rec.User.ID, jti, "user logged out")
		}
		s.audit(ctx, &audit.Event{
			ActorID:    rec.User.ID,
			ActorEmail: rec.User.Email,
			SessionJTI: jti,
			EventType:  "logout",
			Site:       rec.SelectedSite,
			Roles:      pq.StringArray(rec.User.Roles),
			IPAddress:  rec.IPAddress,
		})
	}

	return nil
}

// LogoutAll revokes every console session of a user.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	records, err := s.sessions.SessionsForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	for _, rec := range records {
		s.sessions.BlacklistToken(ctx, rec.JTI, s.sessionTTL)
	}
	if err := s.sessions.InvalidateAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to invalidate sessions: %w", err)
	}

	if s.notifier != nil {
		s.notifier.ForceLogout(userID, "", "all sessions logged out")
	}
	return nil
}

// ========== Site selection ==========

// SelectSite switches the active publishing site on the session record. It
// is legal in any lifecycle state and does not by itself imply
// authentication.
func (s *AuthService) SelectSite(ctx context.Context, jti, site string) error {
	if !s.knownSite(site) {
		return fmt.Errorf("unknown site %q: %w", site, xerrors.ErrSiteMismatch)
	}

	rec, err := s.sessions.Get(ctx, jti)
	if err != nil {
		return xerrors.ErrSessionExpired
	}

	rec.SelectedSite = site
	if err := s.sessions.Save(ctx, rec); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	if rec.User != nil {
		s.notifier.NotifyUser(rec.User.ID, wstypes.NewMessage(wstypes.EventTypeSiteChanged, map[string]string{
			"site": site,
		}))
	}
	return nil
}

// ========== Token validation ==========

// ValidateToken verifies a console access token and rehydrates its session
// record. A record that rehydrated to the unauthenticated state (stale or
// malformed persisted state) is rejected the same way a missing one is.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*jwt.Claims, *session.Record, error) {
	claims, err := s.jwtManager.Verifier.VerifyAccessToken(token)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid token: %w", err)
	}

	blacklisted, err := s.sessions.IsTokenBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check blacklist: %w", err)
	}
	if blacklisted {
		return nil, nil, fmt.Errorf("token has been revoked: %w", xerrors.ErrSessionExpired)
	}

	rec, err := s.sessions.Get(ctx, claims.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("session not found: %w", xerrors.ErrSessionExpired)
	}
	if !rec.Authenticated() {
		return nil, nil, xerrors.ErrSessionExpired
	}

	return claims, rec, nil
}

// ValidatePendingToken verifies an otp_pending console token and loads its
// pending record for the verify/resend endpoints.
func (s *AuthService) ValidatePendingToken(ctx context.Context, token string) (*jwt.Claims, *session.Record, error) {
	claims, err := s.jwtManager.Verifier.VerifyOTPPendingToken(token)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid token: %w", err)
	}

	rec, err := s.sessions.Get(ctx, claims.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("session not found: %w", xerrors.ErrSessionExpired)
	}

	return claims, rec, nil
}

// ========== Session management ==========

// Sessions lists the live console sessions of a user.
func (s *AuthService) Sessions(ctx context.Context, userID string) ([]*session.Record, error) {
	return s.sessions.SessionsForUser(ctx, userID)
}

// RevokeSession revokes one console session of a user.
func (s *AuthService) RevokeSession(ctx context.Context, userID, jti string) error {
	rec, err := s.sessions.Get(ctx, jti)
	if err != nil {
		return nil
	}
	if rec.User == nil || rec.User.ID != userID {
		return xerrors.ErrForbidden
	}

	if err := s.sessions.Invalidate(ctx, jti); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	s.sessions.BlacklistToken(ctx, jti, s.sessionTTL)
	if s.notifier != nil {
		s.notifier.ForceLogout(userID, jti, "session revoked")
	}
	return nil
}

// ========== Helpers ==========

func (s *AuthService) audit(ctx context.Context, event *audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Record(ctx, event); err != nil {
		s.logger.Warn("failed to record audit event",
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
	}
}
