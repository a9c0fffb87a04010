package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codecampus/campus-core/domain/roles"
	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/auth"
	"github.com/codecampus/campus-core/pkg/logger"
	"github.com/codecampus/campus-core/pkg/password"
	"github.com/codecampus/campus-core/pkg/rolemodel"
)

// dummyHash keeps login timing flat when the username does not exist.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service handles business logic for users and passwords.
type Service struct {
	repo   *Repository
	roles  *roles.Repository
	hasher *password.Hasher
	log    *slog.Logger
}

// NewService creates a new users service.
func NewService(repo *Repository, rolesRepo *roles.Repository, hasher *password.Hasher, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		roles:  rolesRepo,
		hasher: hasher,
		log:    log.With(logger.Scope("users.svc")),
	}
}

// Authenticate verifies a username/password pair. The work factor is the same
// whether or not the username exists. A weaker stored hash is upgraded
// transparently on success.
func (s *Service) Authenticate(ctx context.Context, username, pw string) (*User, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		// Burn the same hashing cost as the success path.
		_, _ = s.hasher.Verify(pw, dummyHash)
		return nil, apperror.ErrInvalidCredentials
	}
	if user.PasswordHash == nil || user.IsService {
		_, _ = s.hasher.Verify(pw, dummyHash)
		return nil, apperror.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(pw, *user.PasswordHash)
	if errors.Is(err, password.ErrLegacyHash) {
		return nil, apperror.ErrInvalidCredentials.WithMessage("Password reset required")
	}
	if err != nil || !ok {
		return nil, apperror.ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(*user.PasswordHash) {
		if rehash, err := s.hasher.Hash(pw); err == nil {
			if err := s.repo.UpdatePassword(ctx, user.ID, &rehash, user.PasswordResetRequired); err != nil {
				s.log.Warn("transparent rehash failed", logger.Error(err), slog.String("user_id", user.ID))
			}
		}
	}

	return user, nil
}

// VerifyPassword implements auth.PasswordVerifier: it authenticates a Basic
// username/password pair and resolves the full Principal.
func (s *Service) VerifyPassword(ctx context.Context, username, pw string) (*rolemodel.Principal, error) {
	user, err := s.Authenticate(ctx, username, pw)
	if err != nil {
		return nil, err
	}
	return s.ResolvePrincipal(ctx, user)
}

// GetByID returns a user by id.
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// ResolvePrincipal assembles the Principal for a user id.
func (s *Service) ResolvePrincipal(ctx context.Context, user *User) (*rolemodel.Principal, error) {
	p, err := s.roles.ResolvePrincipal(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	p.Username = user.Username
	p.IsService = user.IsService
	return p, nil
}

// SetPassword sets the caller's own password. It only succeeds when no usable
// password exists yet (first set, admin reset, or a legacy hash).
func (s *Service) SetPassword(ctx context.Context, p *rolemodel.Principal, pw string) error {
	user, err := s.repo.FindByID(ctx, p.UserID)
	if err != nil {
		return err
	}
	settable := user.PasswordHash == nil ||
		user.PasswordResetRequired ||
		!strings.HasPrefix(*user.PasswordHash, "$argon2")
	if !settable {
		return apperror.NewConflict("CONF_003", "Password already set; use the change endpoint")
	}
	return s.storePassword(ctx, user, pw, false)
}

// ChangePassword verifies the old password and stores the new one.
func (s *Service) ChangePassword(ctx context.Context, p *rolemodel.Principal, oldPw, newPw string) error {
	user, err := s.repo.FindByID(ctx, p.UserID)
	if err != nil {
		return err
	}
	if user.PasswordHash == nil {
		return apperror.ErrInvalidCredentials
	}
	ok, err := s.hasher.Verify(oldPw, *user.PasswordHash)
	if errors.Is(err, password.ErrLegacyHash) {
		return apperror.ErrInvalidCredentials.WithMessage("Password reset required")
	}
	if err != nil || !ok {
		return apperror.ErrInvalidCredentials
	}
	return s.storePassword(ctx, user, newPw, false)
}

// AdminSetPassword sets another user's password. The user must change it on
// next login.
func (s *Service) AdminSetPassword(ctx context.Context, p *rolemodel.Principal, username, pw string) error {
	if err := requireUserManager(p); err != nil {
		return err
	}
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	return s.storePassword(ctx, user, pw, true)
}

// AdminResetPassword clears a user's password, forcing a set on next contact.
func (s *Service) AdminResetPassword(ctx context.Context, p *rolemodel.Principal, username string) error {
	if err := requireUserManager(p); err != nil {
		return err
	}
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, user.ID, nil, true)
}

// PasswordStatus reports whether a user has a usable password. Only the user
// themselves or a user manager may ask.
func (s *Service) PasswordStatus(ctx context.Context, p *rolemodel.Principal, username string) (*PasswordStatusResponse, error) {
	if username == "" || username == p.Username {
		username = p.Username
	} else if err := requireUserManager(p); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	status := &PasswordStatusResponse{
		Username:      user.Username,
		HasPassword:   user.PasswordHash != nil,
		ResetRequired: user.PasswordResetRequired,
	}
	if user.PasswordHash != nil && !strings.HasPrefix(*user.PasswordHash, "$argon2") {
		status.Legacy = true
	}
	return status, nil
}

// storePassword validates strength and persists the hash.
func (s *Service) storePassword(ctx context.Context, user *User, pw string, resetRequired bool) error {
	email := ""
	if user.Email != nil {
		email = *user.Email
	}
	if violations := password.Validate(pw, user.Username, email, nil); len(violations) > 0 {
		return policyError(violations)
	}

	hash, err := s.hasher.Hash(pw)
	if err != nil {
		return apperror.ErrInternal.WithInternal(err)
	}
	return s.repo.UpdatePassword(ctx, user.ID, &hash, resetRequired)
}

// LinkExternalIdentity implements auth.IdentityLinker: it resolves an SSO
// identity to a local user, creating user and account on first sight.
func (s *Service) LinkExternalIdentity(ctx context.Context, id auth.ExternalIdentity) (*rolemodel.Principal, error) {
	user, err := s.repo.FindAccount(ctx, id.Provider, id.ProviderAccountID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user, err = s.createFromIdentity(ctx, id)
		if err != nil {
			return nil, err
		}
	}
	return s.ResolvePrincipal(ctx, user)
}

func (s *Service) createFromIdentity(ctx context.Context, id auth.ExternalIdentity) (*User, error) {
	username := id.Username
	if username == "" && id.Email != "" {
		username = id.Email[:strings.IndexByte(id.Email+"@", '@')]
	}
	if username == "" {
		username = id.Provider + "-" + id.ProviderAccountID
	}

	// Uniquify against existing usernames.
	candidate := username
	for i := 1; ; i++ {
		taken, err := s.repo.UsernameTaken(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if !taken {
			break
		}
		candidate = fmt.Sprintf("%s-%d", username, i)
	}

	user := &User{Username: candidate}
	if id.Email != "" {
		user.Email = &id.Email
	}
	if id.GivenName != "" {
		user.GivenName = &id.GivenName
	}
	if id.FamilyName != "" {
		user.FamilyName = &id.FamilyName
	}

	account := &Account{
		Provider:          id.Provider,
		ProviderAccountID: id.ProviderAccountID,
	}
	if err := s.repo.CreateWithAccount(ctx, user, account); err != nil {
		return nil, err
	}
	s.log.Info("created user from external identity",
		slog.String("provider", id.Provider),
		slog.String("username", user.Username),
	)
	return user, nil
}

// TouchService records activity on a service account.
func (s *Service) TouchService(ctx context.Context, userID string) {
	if err := s.repo.TouchService(ctx, userID); err != nil {
		s.log.Warn("service touch failed", logger.Error(err), slog.String("user_id", userID))
	}
}

// EnsureServiceAccount returns the service user for a slug, creating the
// user and descriptor pair when absent.
func (s *Service) EnsureServiceAccount(ctx context.Context, slug, serviceType string) (*User, error) {
	svc, err := s.repo.FindServiceBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if svc != nil {
		return s.repo.FindByID(ctx, svc.UserID)
	}

	user := &User{
		Username:  "svc-" + slug,
		IsService: true,
	}
	record := &ServiceAccount{
		Slug:        slug,
		ServiceType: serviceType,
	}
	if err := s.repo.CreateService(ctx, user, record); err != nil {
		return nil, err
	}
	s.log.Info("created service account", slog.String("slug", slug))
	return user, nil
}

// policyError turns policy violations into a field-level validation error.
func policyError(violations []password.PolicyViolation) error {
	details := make([]apperror.FieldError, 0, len(violations))
	for _, v := range violations {
		details = append(details, apperror.FieldError{
			Field:   "password",
			Message: v.Message,
			Type:    v.Code,
		})
	}
	return apperror.NewValidation(details...)
}

func requireUserManager(p *rolemodel.Principal) error {
	if p == nil {
		return apperror.ErrMissingCredentials
	}
	if !p.IsAdmin && !p.HasClaim("users", "update") {
		return apperror.ErrForbidden
	}
	return nil
}
