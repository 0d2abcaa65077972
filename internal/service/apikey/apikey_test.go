package apikey

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"pressroom-service/internal/domain/apikey"
	"pressroom-service/internal/domain/audit"
	xerrors "pressroom-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	keys    map[string]*apikey.Key
	nextID  int64
	audited []*audit.Event
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{keys: make(map[string]*apikey.Key)}
}

func (f *fakeRepo) Create(ctx context.Context, key *apikey.Key) error {
	f.nextID++
	key.ID = f.nextID
	key.CreatedAt = time.Now()
	f.keys[key.Prefix] = key
	return nil
}

func (f *fakeRepo) FindByPrefix(ctx context.Context, prefix string) (*apikey.Key, error) {
	key, ok := f.keys[prefix]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return key, nil
}

func (f *fakeRepo) List(ctx context.Context) ([]*apikey.Key, error) {
	var out []*apikey.Key
	for _, k := range f.keys {
		out = append(out, k)
	}
	return out, nil
}

func (f *fakeRepo) Revoke(ctx context.Context, id int64, event *audit.Event) error {
	for _, k := range f.keys {
		if k.ID == id {
			if !k.RevokedAt.Valid {
				k.RevokedAt = sql.NullTime{Time: time.Now(), Valid: true}
			}
			event.Site = k.Site
			f.audited = append(f.audited, event)
			return nil
		}
	}
	return xerrors.ErrNotFound
}

func TestIssueAndVerify(t *testing.T) {
	svc := NewService(newFakeRepo(), zap.NewNop())

	created, err := svc.Issue(context.Background(), &apikey.CreateRequest{
		Name:  "publisher bot",
		Site:  "editoria",
		Roles: []string{"PUBLISHER"},
	}, "admin-1")
	require.NoError(t, err)

	assert.Contains(t, created.Plaintext, ".")
	assert.NotContains(t, created.Key.SecretHash, strings.SplitN(created.Plaintext, ".", 2)[1],
		"the stored hash must not contain the secret")

	key, err := svc.Verify(context.Background(), created.Plaintext)
	require.NoError(t, err)
	assert.Equal(t, "publisher bot", key.Name)
	assert.Equal(t, "editoria", key.Site)
	assert.Equal(t, []string{"PUBLISHER"}, []string(key.Roles))
}

func TestVerifyRejectsBadSecret(t *testing.T) {
	svc := NewService(newFakeRepo(), zap.NewNop())

	created, err := svc.Issue(context.Background(), &apikey.CreateRequest{Name: "bot", Site: "editoria"}, "admin-1")
	require.NoError(t, err)

	prefix, _, _ := strings.Cut(created.Plaintext, ".")

	_, err = svc.Verify(context.Background(), prefix+".wrong-secret")
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
}

func TestVerifyRejectsMalformedKey(t *testing.T) {
	svc := NewService(newFakeRepo(), zap.NewNop())

	for _, plaintext := range []string{"", "no-dot-here", ".leading", "unknown.secret"} {
		_, err := svc.Verify(context.Background(), plaintext)
		assert.ErrorIs(t, err, xerrors.ErrUnauthorized, "plaintext %q", plaintext)
	}
}

func TestVerifyRejectsRevokedKey(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, zap.NewNop())

	created, err := svc.Issue(context.Background(), &apikey.CreateRequest{Name: "bot", Site: "editoria"}, "admin-1")
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(context.Background(), created.Key.ID, "admin-1", "admin@editoria.test", "jti-1", "10.0.0.1"))

	_, err = svc.Verify(context.Background(), created.Plaintext)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
}

func TestRevokeLeavesAuditTrail(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, zap.NewNop())

	created, err := svc.Issue(context.Background(), &apikey.CreateRequest{Name: "bot", Site: "cronaca"}, "admin-1")
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(context.Background(), created.Key.ID, "admin-1", "admin@editoria.test", "jti-1", "10.0.0.1"))

	require.Len(t, repo.audited, 1)
	event := repo.audited[0]
	assert.Equal(t, "apikey.revoked", event.EventType)
	assert.Equal(t, "admin-1", event.ActorID)
	assert.Equal(t, "admin@editoria.test", event.ActorEmail)
	assert.Equal(t, "cronaca", event.Site)
}

func TestRevokeUnknownKey(t *testing.T) {
	svc := NewService(newFakeRepo(), zap.NewNop())

	err := svc.Revoke(context.Background(), 99, "admin-1", "admin@editoria.test", "jti-1", "10.0.0.1")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestIssuedPrefixesAreUnique(t *testing.T) {
	svc := NewService(newFakeRepo(), zap.NewNop())

	a, err := svc.Issue(context.Background(), &apikey.CreateRequest{Name: "a", Site: "editoria"}, "admin-1")
	require.NoError(t, err)
	b, err := svc.Issue(context.Background(), &apikey.CreateRequest{Name: "b", Site: "editoria"}, "admin-1")
	require.NoError(t, err)

	assert.NotEqual(t, a.Key.Prefix, b.Key.Prefix)
}
