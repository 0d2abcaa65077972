// internal/domain/auth/entity.go
package auth

// Profile holds the display fields the console shows for the signed-in user.
type Profile struct {
	FullName     string `json:"full_name"`
	ProfilePhoto string `json:"profile_photo,omitempty"`
}

// UserInfo is the authenticated staff identity as returned by the upstream
// platform. Roles are coarse identity tags (JOURNALIST, PUBLISHER, ADMIN);
// permissions are fine-grained capability strings (create_article, ...).
type UserInfo struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	Profile     Profile  `json:"profile"`
}

// OtpChallenge is the server-issued token pair allowing a second-factor code
// to be exchanged for a real session token. Two independent expiry horizons
// run from CreatedAt: ExpiresIn bounds the OTP code validity window,
// TokenExpiresIn bounds how long TempAuthToken itself may be exchanged.
type OtpChallenge struct {
	TempAuthToken  string `json:"temp_auth_token"`
	ExpiresIn      int64  `json:"expires_in"`       // seconds
	TokenExpiresIn int64  `json:"token_expires_in"` // seconds
	Email          string `json:"email"`
	Site           string `json:"site"`
	CreatedAt      int64  `json:"created_at"` // epoch millis, set at receipt
}

// CodeExpired reports whether the OTP code window has lapsed at nowMillis.
func (c *OtpChallenge) CodeExpired(nowMillis int64) bool {
	return nowMillis-c.CreatedAt >= c.ExpiresIn*1000
}

// TokenExpired reports whether the token-exchange window has lapsed at nowMillis.
func (c *OtpChallenge) TokenExpired(nowMillis int64) bool {
	return nowMillis-c.CreatedAt >= c.TokenExpiresIn*1000
}

// Expired reports whether either horizon has lapsed; whichever elapses first
// invalidates the challenge.
func (c *OtpChallenge) Expired(nowMillis int64) bool {
	return c.CodeExpired(nowMillis) || c.TokenExpired(nowMillis)
}
