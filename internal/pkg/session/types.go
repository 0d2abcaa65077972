// internal/pkg/session/types.go
package session

import (
	"time"

	"pressroom-service/internal/domain/auth"
)

// Lifecycle states of a console session record.
const (
	StateUnauthenticated = "unauthenticated"
	StateOTPPending      = "otp_pending"
	StateAuthenticated   = "authenticated"
)

// Record is the server-side session state for one console token (keyed by
// its JTI). UpstreamToken is non-empty iff State is authenticated.
// SelectedSite is set independently and may exist before authentication.
type Record struct {
	JTI            string             `json:"jti"`
	State          string             `json:"state"`
	UpstreamToken  string             `json:"upstream_token,omitempty"`
	SelectedSite   string             `json:"selected_site,omitempty"`
	User           *auth.UserInfo     `json:"user,omitempty"`
	Challenge      *auth.OtpChallenge `json:"challenge,omitempty"`
	IPAddress      string             `json:"ip_address,omitempty"`
	UserAgent      string             `json:"user_agent,omitempty"`
	LoginAt        time.Time          `json:"login_at"`
	LastActivityAt time.Time          `json:"last_activity_at"`
}

// Authenticated reports whether the record holds a live upstream token and
// a user snapshot. A stale persisted record missing either is treated as
// unauthenticated.
func (r *Record) Authenticated() bool {
	return r.State == StateAuthenticated && r.UpstreamToken != "" && r.User != nil
}

// Pending reports whether an OTP challenge is outstanding.
func (r *Record) Pending() bool {
	return r.State == StateOTPPending && r.Challenge != nil
}
