package auth

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zitadel/oidc/v3/pkg/client/rs"
	"github.com/zitadel/oidc/v3/pkg/oidc"
	"golang.org/x/sync/singleflight"

	"github.com/codecampus/campus-core/internal/config"
	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/logger"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

const circuitBreakerCooldown = 30 * time.Second

// SSOService introspects external access tokens against the configured OIDC
// provider and maps the resulting identity onto a local user.
type SSOService struct {
	cfg    *config.Config
	log    *slog.Logger
	linker IdentityLinker

	resourceServer rs.ResourceServer
	rsOnce         sync.Once
	rsErr          error

	// Introspection results are coalesced across concurrent requests carrying
	// the same token and cached briefly in memory.
	group   singleflight.Group
	cacheMu sync.Mutex
	cache   map[string]cachedIdentity

	failureMu       sync.RWMutex
	lastFailureTime time.Time
}

type cachedIdentity struct {
	identity  ExternalIdentity
	expiresAt time.Time
}

// NewSSOService creates the SSO introspection service.
func NewSSOService(cfg *config.Config, log *slog.Logger, linker IdentityLinker) *SSOService {
	return &SSOService{
		cfg:    cfg,
		log:    log.With(logger.Scope("auth.sso")),
		linker: linker,
		cache:  make(map[string]cachedIdentity),
	}
}

// Verify introspects the token and resolves it to a local Principal.
func (s *SSOService) Verify(ctx context.Context, token string) (*rolemodel.Principal, error) {
	if !s.cfg.SSO.IsConfigured() {
		return nil, apperror.ErrInvalidCredentials
	}

	s.failureMu.RLock()
	tripped := time.Since(s.lastFailureTime) < circuitBreakerCooldown
	s.failureMu.RUnlock()
	if tripped {
		return nil, apperror.ErrServiceUnavailable
	}

	key := hashToken(token)
	if id, ok := s.getCached(key); ok {
		return s.linker.LinkExternalIdentity(ctx, id)
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.introspect(ctx, token)
	})
	if err != nil {
		return nil, err
	}
	identity := v.(ExternalIdentity)
	s.putCached(key, identity)

	return s.linker.LinkExternalIdentity(ctx, identity)
}

// introspect performs the OIDC introspection call.
func (s *SSOService) introspect(ctx context.Context, token string) (ExternalIdentity, error) {
	s.rsOnce.Do(func() {
		s.resourceServer, s.rsErr = rs.NewResourceServerClientCredentials(
			ctx, s.cfg.SSO.Issuer, s.cfg.SSO.ClientID, s.cfg.SSO.ClientSecret)
		if s.rsErr != nil {
			s.log.Error("resource server init failed", logger.Error(s.rsErr))
		}
	})
	if s.rsErr != nil {
		s.tripCircuitBreaker()
		return ExternalIdentity{}, apperror.ErrServiceUnavailable.WithInternal(s.rsErr)
	}

	resp, err := rs.Introspect[*oidc.IntrospectionResponse](ctx, s.resourceServer, token)
	if err != nil {
		s.tripCircuitBreaker()
		return ExternalIdentity{}, apperror.ErrServiceUnavailable.WithInternal(fmt.Errorf("introspection: %w", err))
	}
	if resp == nil || !resp.Active {
		return ExternalIdentity{}, apperror.ErrInvalidCredentials
	}

	return ExternalIdentity{
		Provider:          s.cfg.SSO.ProviderName,
		ProviderAccountID: resp.Subject,
		Email:             string(resp.Email),
		Username:          resp.PreferredUsername,
		GivenName:         resp.GivenName,
		FamilyName:        resp.FamilyName,
	}, nil
}

func (s *SSOService) getCached(key string) (ExternalIdentity, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	entry, ok := s.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(s.cache, key)
		return ExternalIdentity{}, false
	}
	return entry.identity, true
}

func (s *SSOService) putCached(key string, id ExternalIdentity) {
	ttl := s.cfg.SSO.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	// Drop expired entries opportunistically so the map stays bounded.
	now := time.Now()
	for k, e := range s.cache {
		if now.After(e.expiresAt) {
			delete(s.cache, k)
		}
	}
	s.cache[key] = cachedIdentity{identity: id, expiresAt: now.Add(ttl)}
}

func (s *SSOService) tripCircuitBreaker() {
	s.failureMu.Lock()
	s.lastFailureTime = time.Now()
	s.failureMu.Unlock()
	s.log.Warn("sso circuit breaker tripped")
}

// hashToken keys the introspection cache without retaining the raw token.
func hashToken(token string) string {
	sum := sha512.Sum512([]byte(token))
	return hex.EncodeToString(sum[:])
}
