package session

import (
	"testing"

	"pressroom-service/internal/domain/auth"

	"github.com/stretchr/testify/assert"
)

func TestRecordAuthenticated(t *testing.T) {
	user := &auth.UserInfo{ID: "u1"}
	rec := &Record{State: StateAuthenticated, UpstreamToken: "tok", User: user}
	assert.True(t, rec.Authenticated())

	// State alone is not enough without the token and user snapshot.
	assert.False(t, (&Record{State: StateAuthenticated, User: user}).Authenticated())
	assert.False(t, (&Record{State: StateAuthenticated, UpstreamToken: "tok"}).Authenticated())
	assert.False(t, (&Record{State: StateOTPPending, UpstreamToken: "tok", User: user}).Authenticated())
	assert.False(t, (&Record{State: StateUnauthenticated}).Authenticated())
}

func TestRecordPending(t *testing.T) {
	rec := &Record{State: StateOTPPending, Challenge: &auth.OtpChallenge{TempAuthToken: "t"}}
	assert.True(t, rec.Pending())

	assert.False(t, (&Record{State: StateOTPPending}).Pending())
	assert.False(t, (&Record{State: StateAuthenticated, Challenge: &auth.OtpChallenge{}}).Pending())
}
