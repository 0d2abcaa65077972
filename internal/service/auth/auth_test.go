package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pressroom-service/internal/domain/audit"
	"pressroom-service/internal/domain/auth"
	wstypes "pressroom-service/internal/domain/websocket"
	xerrors "pressroom-service/internal/pkg/errors"
	"pressroom-service/internal/pkg/jwt"
	"pressroom-service/internal/pkg/session"
	"pressroom-service/internal/upstream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ========== Fakes ==========

type fakeSessionStore struct {
	mu          sync.Mutex
	records     map[string]*session.Record
	blacklisted map[string]bool
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		records:     make(map[string]*session.Record),
		blacklisted: make(map[string]bool),
	}
}

func (f *fakeSessionStore) Save(ctx context.Context, rec *session.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.JTI] = rec
	return nil
}

func (f *fakeSessionStore) Get(ctx context.Context, jti string) (*session.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[jti]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return rec, nil
}

func (f *fakeSessionStore) Invalidate(ctx context.Context, jti string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, jti)
	return nil
}

func (f *fakeSessionStore) SessionsForUser(ctx context.Context, userID string) ([]*session.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*session.Record
	for _, rec := range f.records {
		if rec.User != nil && rec.User.ID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) InvalidateAllForUser(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for jti, rec := range f.records {
		if rec.User != nil && rec.User.ID == userID {
			delete(f.records, jti)
		}
	}
	return nil
}

func (f *fakeSessionStore) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blacklisted[jti] = true
	return nil
}

func (f *fakeSessionStore) IsTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blacklisted[jti], nil
}

func (f *fakeSessionStore) onlyRecord(t *testing.T) *session.Record {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.records, 1)
	for _, rec := range f.records {
		return rec
	}
	return nil
}

type fakeLimiter struct {
	allowLogin  bool
	allowOTP    bool
	remaining   int64
	loginResets int
	otpResets   int
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{allowLogin: true, allowOTP: true, remaining: 4}
}

func (f *fakeLimiter) CheckLoginAttempt(ctx context.Context, ip, email string) (bool, int64, error) {
	return f.allowLogin, f.remaining, nil
}

func (f *fakeLimiter) ResetLoginAttempts(ctx context.Context, ip, email string) error {
	f.loginResets++
	return nil
}

func (f *fakeLimiter) CheckOTPAttempt(ctx context.Context, jti string) (bool, error) {
	return f.allowOTP, nil
}

func (f *fakeLimiter) ResetOTPAttempts(ctx context.Context, jti string) error {
	f.otpResets++
	return nil
}

type fakeAuditor struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (f *fakeAuditor) Record(ctx context.Context, event *audit.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAuditor) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		out = append(out, e.EventType)
	}
	return out
}

type fakeNotifier struct {
	mu       sync.Mutex
	calls    []string
	messages []*wstypes.WSMessage
}

func (f *fakeNotifier) ForceLogout(userID, jti, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
}

func (f *fakeNotifier) NotifyUser(userID string, msg *wstypes.WSMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
}

func (f *fakeNotifier) messagesOfType(eventType wstypes.EventType) []*wstypes.WSMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*wstypes.WSMessage
	for _, m := range f.messages {
		if m.Type == eventType {
			out = append(out, m)
		}
	}
	return out
}

type fakePrefs struct {
	mu    sync.Mutex
	saved map[string]json.RawMessage
}

func (f *fakePrefs) SaveArticleFilters(ctx context.Context, userID string, filters json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = make(map[string]json.RawMessage)
	}
	f.saved[userID] = filters
	return nil
}

// ========== Harness ==========

type harness struct {
	svc      *AuthService
	sessions *fakeSessionStore
	limiter  *fakeLimiter
	auditor  *fakeAuditor
	notifier *fakeNotifier
	prefs    *fakePrefs

	verifyHits *int32
	logoutHits *int32

	clock time.Time
}

var testKey, _ = rsa.GenerateKey(rand.Reader, 2048)

func newTestJWTManager(t *testing.T) *jwt.Manager {
	t.Helper()
	return &jwt.Manager{
		Generator: jwt.NewGenerator(testKey, "pressroom-console", "pressroom-staff", "test-key", time.Hour),
		Verifier:  jwt.NewVerifier(&testKey.PublicKey, "pressroom-console", "pressroom-staff"),
	}
}

// newHarness starts a fake publishing platform and builds the service on
// top of it. The platform asks for an OTP unless directLogin is set.
func newHarness(t *testing.T, directLogin bool) *harness {
	t.Helper()

	h := &harness{
		sessions:   newFakeSessionStore(),
		limiter:    newFakeLimiter(),
		auditor:    &fakeAuditor{},
		notifier:   &fakeNotifier{},
		prefs:      &fakePrefs{},
		verifyHits: new(int32),
		logoutHits: new(int32),
		clock:      time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}

	staff := map[string]interface{}{
		"id":          "u1",
		"email":       "reporter@editoria.it",
		"roles":       []string{"JOURNALIST"},
		"permissions": []string{"view_article", "create_article"},
		"profile":     map[string]string{"full_name": "Test Reporter"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "correct-horse" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"bad credentials"}`))
			return
		}
		if directLogin {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"user":  staff,
				"token": "upstream-token-1",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"requires_otp":     true,
			"temp_auth_token":  "temp-abc",
			"expires_in":       300,
			"token_expires_in": 600,
		})
	})
	mux.HandleFunc("/auth/otp/verify", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(h.verifyHits, 1)
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["otp"] != "123456" || body["temp_auth_token"] == "" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"wrong code"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"user":            staff,
			"token":           "upstream-token-2",
			"article_filters": map[string]string{"status": "draft"},
		})
	})
	mux.HandleFunc("/auth/otp/resend", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"requires_otp":     true,
			"temp_auth_token":  "temp-def",
			"expires_in":       300,
			"token_expires_in": 600,
		})
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(h.logoutHits, 1)
		w.Write([]byte(`{"status":"ok"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := upstream.NewClient(srv.URL, 5*time.Second, zap.NewNop())
	h.svc = NewAuthService(
		client,
		h.sessions,
		h.limiter,
		newTestJWTManager(t),
		h.auditor,
		h.notifier,
		h.prefs,
		[]string{"editoria", "cronaca", "sportweek"},
		12*time.Hour,
		zap.NewNop(),
	)
	h.svc.now = func() time.Time { return h.clock }
	return h
}

func (h *harness) advance(d time.Duration) {
	h.clock = h.clock.Add(d)
}

func (h *harness) login(t *testing.T) *auth.LoginResult {
	t.Helper()
	result, err := h.svc.Login(context.Background(), auth.Credentials{
		Email:    "reporter@editoria.it",
		Password: "correct-horse",
		Site:     "editoria",
	}, "10.0.0.1", "console-test")
	require.NoError(t, err)
	return result
}

// ========== Login ==========

func TestLoginDirectSuccess(t *testing.T) {
	h := newHarness(t, true)

	result := h.login(t)

	assert.Equal(t, auth.StatusAuthenticated, result.Status)
	assert.NotEmpty(t, result.Token)
	require.NotNil(t, result.User)
	assert.Equal(t, "u1", result.User.ID)

	rec := h.sessions.onlyRecord(t)
	assert.True(t, rec.Authenticated())
	assert.Equal(t, "upstream-token-1", rec.UpstreamToken)
	assert.Equal(t, "editoria", rec.SelectedSite)
	assert.Equal(t, 1, h.limiter.loginResets)
	assert.Contains(t, h.auditor.eventTypes(), "login.success")
}

func TestLoginEntersOTPPending(t *testing.T) {
	h := newHarness(t, false)

	result := h.login(t)

	assert.Equal(t, auth.StatusOTPRequired, result.Status)
	assert.NotEmpty(t, result.Token)
	assert.Nil(t, result.User)
	assert.Equal(t, int64(300), result.ExpiresIn)
	assert.Equal(t, int64(600), result.TokenExpiresIn)

	rec := h.sessions.onlyRecord(t)
	assert.True(t, rec.Pending())
	assert.False(t, rec.Authenticated())
	require.NotNil(t, rec.Challenge)
	assert.Equal(t, "temp-abc", rec.Challenge.TempAuthToken)
	assert.Equal(t, h.clock.UnixMilli(), rec.Challenge.CreatedAt)
	assert.Contains(t, h.auditor.eventTypes(), "login.otp_required")
}

func TestPendingTokenBoundByExchangeWindow(t *testing.T) {
	h := newHarness(t, false)

	result := h.login(t)

	// The challenge token must stay valid past the 300s code window so a
	// resend is still reachable, up to the 600s exchange window.
	claims, _, err := h.svc.ValidatePendingToken(context.Background(), result.Token)
	require.NoError(t, err)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(600*time.Second), claims.ExpiresAt.Time, 5*time.Second)
}

func TestLoginBadCredentials(t *testing.T) {
	h := newHarness(t, false)

	_, err := h.svc.Login(context.Background(), auth.Credentials{
		Email:    "reporter@editoria.it",
		Password: "wrong",
		Site:     "editoria",
	}, "10.0.0.1", "console-test")

	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	assert.Contains(t, err.Error(), "attempts remaining")
}

func TestLoginRateLimited(t *testing.T) {
	h := newHarness(t, false)
	h.limiter.allowLogin = false

	_, err := h.svc.Login(context.Background(), auth.Credentials{
		Email:    "reporter@editoria.it",
		Password: "correct-horse",
		Site:     "editoria",
	}, "10.0.0.1", "console-test")

	assert.ErrorIs(t, err, xerrors.ErrRateLimited)
}

// ========== OTP verification ==========

func TestVerifyOTPWithinWindow(t *testing.T) {
	h := newHarness(t, false)
	pendingJTI := h.sessions.onlyJTI(t, h.login(t))

	h.advance(200 * time.Second)

	result, err := h.svc.VerifyOTP(context.Background(), pendingJTI, "123456")

	require.NoError(t, err)
	assert.Equal(t, auth.StatusAuthenticated, result.Status)
	require.NotNil(t, result.User)
	assert.Equal(t, int32(1), atomic.LoadInt32(h.verifyHits))

	// The pending record is superseded by the authenticated one.
	rec := h.sessions.onlyRecord(t)
	assert.True(t, rec.Authenticated())
	assert.Equal(t, "upstream-token-2", rec.UpstreamToken)
	assert.NotEqual(t, pendingJTI, rec.JTI)

	// Filter preferences from the verify response were handed off.
	assert.JSONEq(t, `{"status":"draft"}`, string(h.prefs.saved["u1"]))
	assert.Equal(t, 1, h.limiter.otpResets)
	assert.Contains(t, h.auditor.eventTypes(), "otp.verified")
}

func TestVerifyOTPExpiresLocallyWithoutNetworkCall(t *testing.T) {
	h := newHarness(t, false)
	pendingJTI := h.sessions.onlyJTI(t, h.login(t))

	// Past the 300s code window, inside the 600s token window: still expired.
	h.advance(400 * time.Second)

	_, err := h.svc.VerifyOTP(context.Background(), pendingJTI, "123456")

	assert.ErrorIs(t, err, xerrors.ErrChallengeExpired)
	assert.Equal(t, int32(0), atomic.LoadInt32(h.verifyHits), "expired challenges must fail before any network call")
	assert.Contains(t, h.auditor.eventTypes(), "otp.expired")
}

func TestVerifyOTPExactBoundaryIsExpired(t *testing.T) {
	h := newHarness(t, false)
	pendingJTI := h.sessions.onlyJTI(t, h.login(t))

	h.advance(300 * time.Second)

	_, err := h.svc.VerifyOTP(context.Background(), pendingJTI, "123456")

	assert.ErrorIs(t, err, xerrors.ErrChallengeExpired)
}

func TestVerifyOTPUnknownSession(t *testing.T) {
	h := newHarness(t, false)

	_, err := h.svc.VerifyOTP(context.Background(), "no-such-jti", "123456")

	assert.ErrorIs(t, err, xerrors.ErrSessionExpired)
}

func TestVerifyOTPNotPending(t *testing.T) {
	h := newHarness(t, true)
	h.login(t)
	rec := h.sessions.onlyRecord(t)

	_, err := h.svc.VerifyOTP(context.Background(), rec.JTI, "123456")

	assert.ErrorIs(t, err, xerrors.ErrNotPending)
}

func TestVerifyOTPWrongCode(t *testing.T) {
	h := newHarness(t, false)
	pendingJTI := h.sessions.onlyJTI(t, h.login(t))

	_, err := h.svc.VerifyOTP(context.Background(), pendingJTI, "000000")

	require.Error(t, err)
	var callErr *upstream.CallError
	require.ErrorAs(t, err, &callErr)
	assert.True(t, callErr.IsClient())

	// The challenge survives a wrong code; a retry can still succeed.
	rec := h.sessions.onlyRecord(t)
	assert.True(t, rec.Pending())
}

func TestVerifyOTPRateLimited(t *testing.T) {
	h := newHarness(t, false)
	pendingJTI := h.sessions.onlyJTI(t, h.login(t))
	h.limiter.allowOTP = false

	_, err := h.svc.VerifyOTP(context.Background(), pendingJTI, "123456")

	assert.ErrorIs(t, err, xerrors.ErrRateLimited)
	assert.Equal(t, int32(0), atomic.LoadInt32(h.verifyHits))
}

// ========== OTP resend ==========

func TestResendOTPAfterCodeWindowLapses(t *testing.T) {
	h := newHarness(t, false)
	pendingJTI := h.sessions.onlyJTI(t, h.login(t))

	// The code window (300s) is gone but the exchange window (600s) is not;
	// resend exists exactly for this case.
	h.advance(400 * time.Second)

	result, err := h.svc.ResendOTP(context.Background(), pendingJTI)

	require.NoError(t, err)
	assert.Equal(t, auth.StatusOTPRequired, result.Status)

	rec := h.sessions.onlyRecord(t)
	require.True(t, rec.Pending())
	assert.NotEqual(t, pendingJTI, rec.JTI)
	assert.Equal(t, "temp-def", rec.Challenge.TempAuthToken)
	assert.Equal(t, h.clock.UnixMilli(), rec.Challenge.CreatedAt, "resend restarts the clock")
}

func TestResendOTPAfterTokenWindowLapses(t *testing.T) {
	h := newHarness(t, false)
	pendingJTI := h.sessions.onlyJTI(t, h.login(t))

	h.advance(700 * time.Second)

	_, err := h.svc.ResendOTP(context.Background(), pendingJTI)

	assert.ErrorIs(t, err, xerrors.ErrChallengeExpired)
}

func TestResendOTPNotPending(t *testing.T) {
	h := newHarness(t, true)
	h.login(t)
	rec := h.sessions.onlyRecord(t)

	_, err := h.svc.ResendOTP(context.Background(), rec.JTI)

	assert.ErrorIs(t, err, xerrors.ErrNotPending)
}

// ========== Logout ==========

func TestLogoutIsIdempotent(t *testing.T) {
	h := newHarness(t, true)
	h.login(t)
	rec := h.sessions.onlyRecord(t)

	require.NoError(t, h.svc.Logout(context.Background(), rec.JTI))
	assert.Equal(t, int32(1), atomic.LoadInt32(h.logoutHits))
	assert.True(t, h.sessions.blacklisted[rec.JTI])
	assert.Contains(t, h.notifier.calls, "u1")

	// Second logout finds nothing and still succeeds, without another
	// upstream call.
	require.NoError(t, h.svc.Logout(context.Background(), rec.JTI))
	assert.Equal(t, int32(1), atomic.LoadInt32(h.logoutHits))
}

func TestLogoutAll(t *testing.T) {
	h := newHarness(t, true)
	h.login(t)
	h.login(t)

	require.NoError(t, h.svc.LogoutAll(context.Background(), "u1"))

	records, err := h.svc.Sessions(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Contains(t, h.notifier.calls, "u1")
}

// ========== Token validation ==========

func TestValidateTokenRoundTrip(t *testing.T) {
	h := newHarness(t, true)
	result := h.login(t)

	claims, rec, err := h.svc.ValidateToken(context.Background(), result.Token)

	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "editoria", claims.Site)
	assert.True(t, rec.Authenticated())
}

func TestValidateTokenRejectsRevoked(t *testing.T) {
	h := newHarness(t, true)
	result := h.login(t)
	rec := h.sessions.onlyRecord(t)

	require.NoError(t, h.svc.Logout(context.Background(), rec.JTI))

	_, _, err := h.svc.ValidateToken(context.Background(), result.Token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsPendingToken(t *testing.T) {
	h := newHarness(t, false)
	result := h.login(t)

	_, _, err := h.svc.ValidateToken(context.Background(), result.Token)
	assert.Error(t, err, "a challenge token must not pass full validation")

	_, _, err = h.svc.ValidatePendingToken(context.Background(), result.Token)
	assert.NoError(t, err)
}

func TestValidateTokenRejectsUnauthenticatedRecord(t *testing.T) {
	h := newHarness(t, true)
	result := h.login(t)
	rec := h.sessions.onlyRecord(t)

	// Simulate a record that rehydrated from malformed persisted state.
	h.sessions.Save(context.Background(), &session.Record{JTI: rec.JTI, State: session.StateUnauthenticated})

	_, _, err := h.svc.ValidateToken(context.Background(), result.Token)
	assert.ErrorIs(t, err, xerrors.ErrSessionExpired)
}

func TestValidateTokenRejectsRecordWithoutUser(t *testing.T) {
	h := newHarness(t, true)
	result := h.login(t)
	rec := h.sessions.onlyRecord(t)

	// A stale record can keep its state and token but lose the user
	// snapshot; it must be treated like any other dead session.
	rec.User = nil
	h.sessions.Save(context.Background(), rec)

	_, _, err := h.svc.ValidateToken(context.Background(), result.Token)
	assert.ErrorIs(t, err, xerrors.ErrSessionExpired)
}

// ========== Site selection & session management ==========

func TestSelectSite(t *testing.T) {
	h := newHarness(t, true)
	h.login(t)
	rec := h.sessions.onlyRecord(t)

	require.NoError(t, h.svc.SelectSite(context.Background(), rec.JTI, "cronaca"))

	updated, err := h.sessions.Get(context.Background(), rec.JTI)
	require.NoError(t, err)
	assert.Equal(t, "cronaca", updated.SelectedSite)

	pushed := h.notifier.messagesOfType(wstypes.EventTypeSiteChanged)
	require.Len(t, pushed, 1)
	assert.Equal(t, map[string]string{"site": "cronaca"}, pushed[0].Data)
}

func TestLoginNotifiesOpenConsoles(t *testing.T) {
	h := newHarness(t, true)
	h.login(t)

	pushed := h.notifier.messagesOfType(wstypes.EventTypeNotification)
	require.Len(t, pushed, 1)
	data, ok := pushed[0].Data.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "new_sign_in", data["kind"])
	assert.Equal(t, "editoria", data["site"])
}

func TestSelectSiteUnknownSession(t *testing.T) {
	h := newHarness(t, true)

	err := h.svc.SelectSite(context.Background(), "gone", "cronaca")
	assert.ErrorIs(t, err, xerrors.ErrSessionExpired)
}

func TestSelectSiteRejectsUnmanagedSite(t *testing.T) {
	h := newHarness(t, true)
	h.login(t)
	rec := h.sessions.onlyRecord(t)

	err := h.svc.SelectSite(context.Background(), rec.JTI, "atlantide")
	assert.ErrorIs(t, err, xerrors.ErrSiteMismatch)
}

func TestLoginRejectsUnmanagedSite(t *testing.T) {
	h := newHarness(t, true)

	_, err := h.svc.Login(context.Background(), auth.Credentials{
		Email:    "reporter@editoria.it",
		Password: "correct-horse",
		Site:     "atlantide",
	}, "10.0.0.1", "console-test")

	assert.ErrorIs(t, err, xerrors.ErrSiteMismatch)
}

func TestRevokeSessionOwnershipCheck(t *testing.T) {
	h := newHarness(t, true)
	h.login(t)
	rec := h.sessions.onlyRecord(t)

	err := h.svc.RevokeSession(context.Background(), "someone-else", rec.JTI)
	assert.ErrorIs(t, err, xerrors.ErrForbidden)

	require.NoError(t, h.svc.RevokeSession(context.Background(), "u1", rec.JTI))
	assert.True(t, h.sessions.blacklisted[rec.JTI])
}

// onlyJTI returns the JTI of the single stored record; the login result does
// not expose it directly.
func (f *fakeSessionStore) onlyJTI(t *testing.T, _ *auth.LoginResult) string {
	t.Helper()
	return f.onlyRecord(t).JTI
}
