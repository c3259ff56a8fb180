package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"interior_portal_backend/internal/auth"
	"interior_portal_backend/internal/auth/password"
	"interior_portal_backend/internal/auth/repository"
	"interior_portal_backend/internal/auth/token"
	"interior_portal_backend/internal/events"
	"interior_portal_backend/platform/apperr"
	"interior_portal_backend/platform/authz"
	"interior_portal_backend/platform/config"
	"interior_portal_backend/platform/logger"
	"interior_portal_backend/platform/phone"
	"interior_portal_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	errInvalidCredentials = "invalid credentials"
	errTokenInvalid       = "refresh token invalid or expired"

	refreshTokenBytes = 48
)

// Tokens is the credential pair handed to a client after sign-in or refresh.
type Tokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Registration carries the fields shared by sign-up and admin user creation.
type Registration struct {
	Email     string
	Password  string
	FirstName *string
	LastName  *string
	Phone     *string
	Roles     []string
}

type Service struct {
	repo  repository.AuthRepository
	cfg   config.AuthServiceConfig
	phone *phone.Normalizer
	bus   events.Bus
	log   *logger.Logger
	now   func() time.Time
}

func New(repo repository.AuthRepository, cfg config.AuthServiceConfig, phones *phone.Normalizer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, phone: phones, bus: bus, log: log, now: time.Now}
}

// SignUp registers a client account.
func (s *Service) SignUp(ctx context.Context, in Registration) (auth.Profile, error) {
	in.Roles = []string{authz.RoleClient}
	return s.register(ctx, in)
}

// CreateUser provisions an account with arbitrary roles. Admin only.
func (s *Service) CreateUser(ctx context.Context, actor authz.Actor, in Registration) (auth.Profile, error) {
	if !actor.IsAdmin() {
		return auth.Profile{}, apperr.Forbidden("only admins can create users")
	}
	if len(in.Roles) == 0 {
		return auth.Profile{}, apperr.Validation("at least one role is required")
	}
	for _, role := range in.Roles {
		if !authz.ValidRole(role) {
			return auth.Profile{}, apperr.Validation("invalid role: " + role)
		}
	}
	return s.register(ctx, in)
}

func (s *Service) register(ctx context.Context, in Registration) (auth.Profile, error) {
	hash, err := password.Hash(in.Password)
	if err != nil {
		return auth.Profile{}, apperr.Wrap(apperr.KindInternal, "hash password", err)
	}

	var phoneNumber *string
	if in.Phone != nil && strings.TrimSpace(*in.Phone) != "" {
		normalized, ok := s.phone.E164(*in.Phone)
		if !ok {
			return auth.Profile{}, apperr.Validation("invalid phone number")
		}
		phoneNumber = &normalized
	}

	roles := slices.Clone(in.Roles)
	slices.Sort(roles)
	roles = slices.Compact(roles)

	user, err := s.repo.CreateUser(ctx, repository.NewUser{
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		FirstName:    sanitize.TextPtr(in.FirstName),
		LastName:     sanitize.TextPtr(in.LastName),
		Phone:        phoneNumber,
		Roles:        roles,
	})
	if err != nil {
		return auth.Profile{}, err
	}

	s.log.Info("user created", "userId", user.ID, "roles", roles)
	s.bus.Publish(ctx, events.UserCreated{
		BaseEvent: events.NewBaseEvent(),
		UserID:    user.ID,
		Email:     user.Email,
		Roles:     roles,
	})
	return toProfile(user), nil
}

// SignIn verifies the credentials and issues a fresh token pair.
func (s *Service) SignIn(ctx context.Context, email, plainPassword string) (Tokens, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.log.AuthEvent("sign_in", email, false, "unknown email")
			return Tokens{}, apperr.Unauthorized(errInvalidCredentials)
		}
		return Tokens{}, err
	}

	if err := password.Compare(user.PasswordHash, plainPassword); err != nil {
		s.log.AuthEvent("sign_in", email, false, "password mismatch")
		return Tokens{}, apperr.Unauthorized(errInvalidCredentials)
	}

	refresh, refreshExpiresAt, err := s.newRefreshToken()
	if err != nil {
		return Tokens{}, err
	}
	if err := s.repo.CreateRefreshToken(ctx, user.ID, token.HashSHA256(refresh), refreshExpiresAt); err != nil {
		return Tokens{}, err
	}

	tokens, err := s.issueAccess(ctx, user.ID)
	if err != nil {
		return Tokens{}, err
	}
	tokens.RefreshToken = refresh
	tokens.RefreshExpiresAt = refreshExpiresAt

	s.log.AuthEvent("sign_in", email, true, "")
	return tokens, nil
}

// Refresh rotates the refresh token: the presented one is revoked and a new
// pair is issued. Reuse of a revoked token fails.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	if refreshToken == "" {
		return Tokens{}, apperr.Unauthorized(errTokenInvalid)
	}

	next, nextExpiresAt, err := s.newRefreshToken()
	if err != nil {
		return Tokens{}, err
	}

	userID, err := s.repo.RotateRefreshToken(ctx, token.HashSHA256(refreshToken), token.HashSHA256(next), nextExpiresAt)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return Tokens{}, apperr.Unauthorized(errTokenInvalid)
		}
		return Tokens{}, err
	}

	tokens, err := s.issueAccess(ctx, userID)
	if err != nil {
		return Tokens{}, err
	}
	tokens.RefreshToken = next
	tokens.RefreshExpiresAt = nextExpiresAt
	return tokens, nil
}

// SignOut revokes the refresh token. Unknown tokens are ignored.
func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.repo.RevokeRefreshToken(ctx, token.HashSHA256(refreshToken))
}

// GetMe returns the caller's profile.
func (s *Service) GetMe(ctx context.Context, actor authz.Actor) (auth.Profile, error) {
	user, err := s.repo.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return auth.Profile{}, err
	}
	return toProfile(user), nil
}

func (s *Service) issueAccess(ctx context.Context, userID uuid.UUID) (Tokens, error) {
	roles, err := s.repo.GetUserRoles(ctx, userID)
	if err != nil {
		return Tokens{}, err
	}

	access, expiresAt, err := token.SignAccess(userID, roles, s.now(), s.cfg.GetAccessTokenTTL(), s.cfg.GetJWTAccessSecret())
	if err != nil {
		return Tokens{}, apperr.Wrap(apperr.KindInternal, "sign access token", err)
	}
	return Tokens{AccessToken: access, AccessExpiresAt: expiresAt}, nil
}

func (s *Service) newRefreshToken() (string, time.Time, error) {
	raw, err := token.GenerateRandomToken(refreshTokenBytes)
	if err != nil {
		return "", time.Time{}, apperr.Wrap(apperr.KindInternal, "generate refresh token", err)
	}
	return raw, s.now().Add(s.cfg.GetRefreshTokenTTL()), nil
}

func toProfile(user repository.User) auth.Profile {
	return auth.Profile{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
		Roles:     user.Roles,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
