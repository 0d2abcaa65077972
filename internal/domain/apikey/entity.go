// internal/domain/apikey/entity.go
package apikey

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Key is an automation credential for the console API. The secret is stored
// only as a bcrypt hash; the plaintext is shown once at creation.
type Key struct {
	ID         int64          `json:"id" db:"id"`
	Name       string         `json:"name" db:"name"`
	Prefix     string         `json:"prefix" db:"prefix"`
	SecretHash string         `json:"-" db:"secret_hash"`
	Roles      pq.StringArray `json:"roles" db:"roles"`
	Site       string         `json:"site" db:"site"`
	CreatedBy  string         `json:"created_by" db:"created_by"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	RevokedAt  sql.NullTime   `json:"revoked_at,omitempty" db:"revoked_at"`
}

// Active reports whether the key may still authenticate.
func (k *Key) Active() bool {
	return !k.RevokedAt.Valid
}
