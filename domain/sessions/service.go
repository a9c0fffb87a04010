package sessions

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/codecampus/campus-core/domain/users"
	"github.com/codecampus/campus-core/internal/config"
	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/logger"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

// Store is the session persistence surface the service depends on. It is
// implemented by Repository.
type Store interface {
	Create(ctx context.Context, s *Session) error
	FindBySID(ctx context.Context, sid string) (*Session, error)
	FindByRefreshHash(ctx context.Context, hash string) (*Session, error)
	ListByUser(ctx context.Context, userID string) ([]Session, error)
	Rotate(ctx context.Context, sessionID, newAccessHash, newRefreshHash string, expiresAt, refreshExpiresAt time.Time) error
	Touch(ctx context.Context, sessionID, ip string)
	End(ctx context.Context, sessionID string) error
	Revoke(ctx context.Context, sessionID string) error
	RevokeAllForUser(ctx context.Context, userID, exceptSessionID string) (int64, error)
	DeleteTerminal(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Service handles login, refresh rotation and session management.
type Service struct {
	repo  Store
	users *users.Service
	cfg   *config.Config
	log   *slog.Logger

	// Per-username login limiters. Entries are pruned lazily.
	limiterMu sync.Mutex
	limiters  map[string]*loginLimiter
}

type loginLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewService creates a new sessions service.
func NewService(repo Store, usersSvc *users.Service, cfg *config.Config, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		users:    usersSvc,
		cfg:      cfg,
		log:      log.With(logger.Scope("sessions.svc")),
		limiters: make(map[string]*loginLimiter),
	}
}

// Login verifies credentials and opens a new device session.
func (s *Service) Login(ctx context.Context, req LoginRequest, ip, userAgent string) (*TokenPair, error) {
	if !s.allowLogin(req.Username) {
		return nil, apperror.ErrRateLimited
	}

	user, err := s.users.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sid := uuid.NewString()

	access, err := signAccessToken([]byte(s.cfg.Auth.SessionSecret), user.ID, sid, s.cfg.Auth.AccessTokenTTL, now)
	if err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}
	refresh, err := newOpaqueToken()
	if err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}

	refreshHash := hashToken(refresh)
	refreshExpires := now.Add(s.cfg.Auth.RefreshTokenTTL)
	session := &Session{
		UserID:           user.ID,
		SID:              sid,
		TokenHash:        hashToken(access),
		RefreshTokenHash: &refreshHash,
		IPCreated:        ip,
		IPLastSeen:       ip,
		UserAgent:        userAgent,
		ExpiresAt:        now.Add(s.cfg.Auth.AccessTokenTTL),
		RefreshExpiresAt: &refreshExpires,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}

	s.log.Info("session opened",
		slog.String("user_id", user.ID),
		slog.String("sid", sid),
	)
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sid,
		ExpiresAt:    session.ExpiresAt,
	}, nil
}

// Refresh rotates the token pair. A refresh token can be spent exactly once;
// presenting it again fails because its hash has been replaced.
func (s *Service) Refresh(ctx context.Context, refreshToken, ip string) (*TokenPair, error) {
	session, err := s.repo.FindByRefreshHash(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperror.ErrTokenExpired
	}

	now := time.Now()
	if session.RevokedAt != nil || session.EndedAt != nil {
		return nil, apperror.ErrTokenExpired
	}
	if session.RefreshExpiresAt == nil || now.After(*session.RefreshExpiresAt) {
		return nil, apperror.ErrTokenExpired
	}

	access, err := signAccessToken([]byte(s.cfg.Auth.SessionSecret), session.UserID, session.SID, s.cfg.Auth.AccessTokenTTL, now)
	if err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}
	refresh, err := newOpaqueToken()
	if err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}

	expiresAt := now.Add(s.cfg.Auth.AccessTokenTTL)
	err = s.repo.Rotate(ctx, session.ID, hashToken(access), hashToken(refresh), expiresAt, *session.RefreshExpiresAt)
	if err != nil {
		return nil, err
	}
	s.repo.Touch(ctx, session.ID, ip)

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    session.SID,
		ExpiresAt:    expiresAt,
	}, nil
}

// VerifyAccessToken authenticates a bearer access token. Rotation invalidates
// earlier access tokens of the same session because the stored hash changes.
func (s *Service) VerifyAccessToken(ctx context.Context, token string) (*rolemodel.Principal, string, error) {
	userID, sid, err := parseAccessToken([]byte(s.cfg.Auth.SessionSecret), token)
	if err != nil {
		return nil, "", apperror.ErrInvalidCredentials.WithInternal(err)
	}

	session, err := s.repo.FindBySID(ctx, sid)
	if err != nil {
		return nil, "", apperror.ErrInvalidCredentials
	}
	if !session.Active(time.Now()) {
		return nil, "", apperror.ErrTokenExpired
	}
	if session.UserID != userID || session.TokenHash != hashToken(token) {
		return nil, "", apperror.ErrInvalidCredentials
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, "", apperror.ErrInvalidCredentials
	}
	p, err := s.users.ResolvePrincipal(ctx, user)
	if err != nil {
		return nil, "", err
	}
	return p, session.ID, nil
}

// Logout ends the session behind the presented credential.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return apperror.ErrBadRequest.WithMessage("not a session credential")
	}
	return s.repo.End(ctx, sessionID)
}

// ListOwn returns the caller's active sessions.
func (s *Service) ListOwn(ctx context.Context, p *rolemodel.Principal, currentSessionID string) ([]SessionDTO, error) {
	list, err := s.repo.ListByUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	currentSID := ""
	for i := range list {
		if list[i].ID == currentSessionID {
			currentSID = list[i].SID
		}
	}
	out := make([]SessionDTO, 0, len(list))
	for i := range list {
		out = append(out, list[i].ToDTO(currentSID))
	}
	return out, nil
}

// RevokeBySID revokes one device session. Only the owner or an admin may.
func (s *Service) RevokeBySID(ctx context.Context, p *rolemodel.Principal, sid string) error {
	session, err := s.repo.FindBySID(ctx, sid)
	if err != nil {
		return err
	}
	if session.UserID != p.UserID && !p.IsAdmin {
		return apperror.NewNotFound("session", sid)
	}
	return s.repo.Revoke(ctx, session.ID)
}

// RevokeAll revokes every session of the caller, optionally sparing the
// current one.
func (s *Service) RevokeAll(ctx context.Context, p *rolemodel.Principal, exceptCurrent bool, currentSessionID string) (int64, error) {
	except := ""
	if exceptCurrent {
		except = currentSessionID
	}
	return s.repo.RevokeAllForUser(ctx, p.UserID, except)
}

// CleanupTerminal removes long-dead sessions. Invoked by the scheduler.
func (s *Service) CleanupTerminal(ctx context.Context) {
	removed, err := s.repo.DeleteTerminal(ctx, 30*24*time.Hour)
	if err != nil {
		s.log.Error("session cleanup failed", logger.Error(err))
		return
	}
	if removed > 0 {
		s.log.Info("session cleanup", slog.Int64("removed", removed))
	}
}

// allowLogin enforces the per-username login rate limit.
func (s *Service) allowLogin(username string) bool {
	perMinute := s.cfg.Auth.LoginRatePerMinute
	if perMinute <= 0 {
		return true
	}

	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()

	now := time.Now()
	for name, l := range s.limiters {
		if now.Sub(l.lastSeen) > 10*time.Minute {
			delete(s.limiters, name)
		}
	}

	l, ok := s.limiters[username]
	if !ok {
		l = &loginLimiter{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		}
		s.limiters[username] = l
	}
	l.lastSeen = now
	return l.limiter.Allow()
}
