// internal/service/apikey/apikey.go
package apikey

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"pressroom-service/internal/domain/apikey"
	"pressroom-service/internal/domain/audit"
	xerrors "pressroom-service/internal/pkg/errors"

	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Repository is the persistence slice the service needs.
type Repository interface {
	Create(ctx context.Context, key *apikey.Key) error
	FindByPrefix(ctx context.Context, prefix string) (*apikey.Key, error)
	List(ctx context.Context) ([]*apikey.Key, error)
	Revoke(ctx context.Context, id int64, event *audit.Event) error
}

// Service issues and verifies console automation keys. A key is
// "<prefix>.<secret>"; only the bcrypt hash of the secret is stored.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Issue creates a key scoped to one site with a role set. The plaintext is
// returned once and never stored.
func (s *Service) Issue(ctx context.Context, req *apikey.CreateRequest, createdBy string) (*apikey.Created, error) {
	secret := generateSecret()

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash api key secret: %w", err)
	}

	key := &apikey.Key{
		Name:       req.Name,
		Prefix:     strings.ToLower(ulid.Make().String()),
		SecretHash: string(hash),
		Roles:      pq.StringArray(req.Roles),
		Site:       req.Site,
		CreatedBy:  createdBy,
	}

	if err := s.repo.Create(ctx, key); err != nil {
		return nil, err
	}

	s.logger.Info("api key issued",
		zap.String("name", key.Name),
		zap.String("prefix", key.Prefix),
		zap.String("site", key.Site),
	)

	return &apikey.Created{
		Key:       key,
		Plaintext: key.Prefix + "." + secret,
	}, nil
}

// Verify resolves a plaintext key back to its record.
func (s *Service) Verify(ctx context.Context, plaintext string) (*apikey.Key, error) {
	prefix, secret, ok := strings.Cut(plaintext, ".")
	if !ok {
		return nil, xerrors.ErrUnauthorized
	}

	key, err := s.repo.FindByPrefix(ctx, prefix)
	if err != nil {
		return nil, xerrors.ErrUnauthorized
	}
	if !key.Active() {
		return nil, xerrors.ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)); err != nil {
		return nil, xerrors.ErrUnauthorized
	}

	return key, nil
}

// List returns every issued key.
func (s *Service) List(ctx context.Context) ([]*apikey.Key, error) {
	return s.repo.List(ctx)
}

// Revoke disables a key and leaves an audit trail entry naming who did it.
func (s *Service) Revoke(ctx context.Context, id int64, actorID, actorEmail, jti, ip string) error {
	event := &audit.Event{
		ActorID:    actorID,
		ActorEmail: actorEmail,
		SessionJTI: jti,
		EventType:  "apikey.revoked",
		IPAddress:  ip,
	}
	return s.repo.Revoke(ctx, id, event)
}

func generateSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
