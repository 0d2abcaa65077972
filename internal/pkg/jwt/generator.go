// internal/pkg/jwt/generator.go
package jwt

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

type Generator struct {
	priv     *rsa.PrivateKey
	issuer   string
	audience string
	kid      string // key id for rotation
	Ttl      time.Duration
}

func NewGenerator(priv *rsa.PrivateKey, issuer, audience, kid string, ttl time.Duration) *Generator {
	return &Generator{
		priv:     priv,
		issuer:   issuer,
		audience: audience,
		kid:      kid,
		Ttl:      ttl,
	}
}

// Generate creates a new JWT token with the given parameters.
// The returned JTI keys the redis session record for this token.
func (g *Generator) Generate(userID, email string, roles, permissions []string, site, purpose string, isTemp bool, ttl time.Duration) (string, string, error) {
	if g.priv == nil {
		return "", "", fmt.Errorf("jwt generator has nil private key")
	}

	now := time.Now()
	jti := ulid.Make().String()

	expiresIn := g.Ttl
	if ttl > 0 {
		expiresIn = ttl
	}

	claims := &Claims{
		UserID:         userID,
		Email:          email,
		Roles:          roles,
		Permissions:    permissions,
		Site:           site,
		IsTemp:         isTemp,
		SessionPurpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   userID,
			Audience:  []string{g.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if g.kid != "" {
		tok.Header["kid"] = g.kid
	}

	signed, err := tok.SignedString(g.priv)
	return signed, jti, err
}

// GenerateAccessToken generates a full console session token.
func (g *Generator) GenerateAccessToken(userID, email string, roles, permissions []string, site string) (string, string, error) {
	return g.Generate(userID, email, roles, permissions, site, "access", false, 0)
}

// GenerateOTPPendingToken generates a temporary token carrying the
// otp_pending sub-state between the login and verify requests. Its TTL is
// bounded by the challenge's shortest expiry horizon.
func (g *Generator) GenerateOTPPendingToken(email, site string, ttl time.Duration) (string, string, error) {
	return g.Generate("", email, nil, nil, site, "otp_pending", true, ttl)
}
