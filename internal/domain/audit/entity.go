// internal/domain/audit/entity.go
package audit

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Event is one row of the console audit trail: who did what, on which site,
// with which role snapshot.
type Event struct {
	ID         int64          `json:"id" db:"id"`
	ActorID    string         `json:"actor_id,omitempty" db:"actor_id"`
	ActorEmail string         `json:"actor_email" db:"actor_email"`
	SessionJTI string         `json:"session_jti" db:"session_jti"`
	EventType  string         `json:"event_type" db:"event_type"`
	Site       string         `json:"site,omitempty" db:"site"`
	Roles      pq.StringArray `json:"roles,omitempty" db:"roles"`
	Detail     sql.NullString `json:"detail,omitempty" db:"detail"`
	IPAddress  string         `json:"ip_address,omitempty" db:"ip_address"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}
