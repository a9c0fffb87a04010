package apitokens

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/codecampus/campus-core/domain/users"
	"github.com/codecampus/campus-core/internal/config"
	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/logger"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

// Service handles business logic for API tokens.
type Service struct {
	repo  *Repository
	users *users.Service
	log   *slog.Logger
}

// NewService creates a new API token service.
func NewService(repo *Repository, usersSvc *users.Service, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		users: usersSvc,
		log:   log.With(logger.Scope("apitokens.svc")),
	}
}

// Create issues a new token for the caller. The full token appears only in
// this response.
func (s *Service) Create(ctx context.Context, p *rolemodel.Principal, req CreateTokenRequest) (*CreateTokenResponse, error) {
	raw, err := generateToken()
	if err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}

	token := &ApiToken{
		UserID:      p.UserID,
		Name:        req.Name,
		TokenHash:   hashToken(raw),
		TokenPrefix: tokenPrefix(raw),
		Scopes:      req.Scopes,
		ExpiresAt:   req.ExpiresAt,
	}
	if err := s.repo.Create(ctx, token); err != nil {
		return nil, err
	}

	s.log.Info("api token created",
		slog.String("user_id", p.UserID),
		slog.String("prefix", token.TokenPrefix),
	)
	return &CreateTokenResponse{ApiToken: *token, Token: raw}, nil
}

// ListOwn returns the caller's tokens without secrets.
func (s *Service) ListOwn(ctx context.Context, p *rolemodel.Principal) ([]ApiToken, error) {
	return s.repo.ListByUser(ctx, p.UserID)
}

// Revoke revokes one of the caller's tokens.
func (s *Service) Revoke(ctx context.Context, p *rolemodel.Principal, id string) error {
	return s.repo.Revoke(ctx, id, p.UserID)
}

// VerifyAPIToken implements auth.TokenVerifier: format check, hash lookup,
// expiry, then usage accounting.
func (s *Service) VerifyAPIToken(ctx context.Context, raw string) (*rolemodel.Principal, error) {
	if !validFormat(raw) {
		return nil, apperror.ErrInvalidCredentials
	}

	token, err := s.repo.FindByHash(ctx, hashToken(raw))
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, apperror.ErrInvalidCredentials
	}
	if token.ExpiresAt != nil && time.Now().After(*token.ExpiresAt) {
		return nil, apperror.ErrTokenExpired
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	s.repo.RecordUse(ctx, token.ID)
	if user.IsService {
		s.users.TouchService(ctx, user.ID)
	}

	return s.users.ResolvePrincipal(ctx, user)
}

// SeedWorkerServices materializes service accounts and predefined tokens from
// the worker token list. Idempotent across restarts.
func (s *Service) SeedWorkerServices(ctx context.Context, cfg *config.Config) error {
	for slug, token := range cfg.Auth.WorkerTokens() {
		if !strings.HasPrefix(token, "ctp_") {
			s.log.Warn("skipping worker token without ctp_ prefix", slog.String("slug", slug))
			continue
		}
		if err := s.seedWorker(ctx, slug, token); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) seedWorker(ctx context.Context, slug, token string) error {
	user, err := s.users.EnsureServiceAccount(ctx, slug, "worker")
	if err != nil {
		return err
	}

	existing, err := s.repo.FindByHash(ctx, hashToken(token))
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	record := &ApiToken{
		UserID:      user.ID,
		Name:        "worker:" + slug,
		TokenHash:   hashToken(token),
		TokenPrefix: tokenPrefix(token),
		Scopes:      []string{"worker"},
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return err
	}
	s.log.Info("seeded worker service token", slog.String("slug", slug))
	return nil
}
