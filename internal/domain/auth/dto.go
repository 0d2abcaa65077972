// internal/domain/auth/dto.go
package auth

// Credentials for a staff login attempt. Input only, never persisted.
type Credentials struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Site     string `json:"site" binding:"required"`
}

// VerifyOTPRequest carries the second-factor code for a pending challenge.
type VerifyOTPRequest struct {
	OTP string `json:"otp" binding:"required"`
}

// LoginResult is returned by login/verify. Status is either "authenticated"
// (Token is a full console token, User is set) or "otp_required" (Token is a
// temporary challenge token and the expiry horizons are set).
type LoginResult struct {
	Status         string    `json:"status"`
	Token          string    `json:"token"`
	TokenType      string    `json:"token_type"`
	User           *UserInfo `json:"user,omitempty"`
	ExpiresIn      int64     `json:"expires_in,omitempty"`
	TokenExpiresIn int64     `json:"token_expires_in,omitempty"`
}

const (
	StatusAuthenticated = "authenticated"
	StatusOTPRequired   = "otp_required"
)

// SelectSiteRequest switches the active publishing site.
type SelectSiteRequest struct {
	Site string `json:"site" binding:"required"`
}
