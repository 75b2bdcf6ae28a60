package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/pantry/internal/domain"
	"github.com/prn-tf/pantry/internal/metrics"
	"github.com/prn-tf/pantry/internal/pkg/crypto"
	"github.com/prn-tf/pantry/internal/repository"
)

// UserServiceConfig holds password policy settings.
type UserServiceConfig struct {
	// BcryptCost is the bcrypt work factor.
	BcryptCost int

	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength int
}

// DefaultUserServiceConfig returns the default password policy.
func DefaultUserServiceConfig() UserServiceConfig {
	return UserServiceConfig{
		BcryptCost:        bcrypt.DefaultCost,
		MinPasswordLength: 5,
	}
}

// UserService handles registration, token issue and profiles.
type UserService struct {
	userRepo  repository.UserRepository
	tokenRepo repository.TokenRepository
	config    UserServiceConfig
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewUserService creates a new UserService. m may be nil.
func NewUserService(
	userRepo repository.UserRepository,
	tokenRepo repository.TokenRepository,
	config UserServiceConfig,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *UserService {
	return &UserService{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		config:    config,
		metrics:   m,
		logger:    logger.With().Str("service", "user").Logger(),
	}
}

// MinPasswordLength returns the shortest accepted password.
func (s *UserService) MinPasswordLength() int {
	return s.config.MinPasswordLength
}

// Register creates a new active user.
func (s *UserService) Register(ctx context.Context, input domain.UserInput) (*domain.User, error) {
	return s.create(ctx, input, false)
}

// CreateSuperuser creates an active staff superuser.
func (s *UserService) CreateSuperuser(ctx context.Context, input domain.UserInput) (*domain.User, error) {
	return s.create(ctx, input, true)
}

func (s *UserService) create(ctx context.Context, input domain.UserInput, superuser bool) (*domain.User, error) {
	if err := input.Validate(domain.UpdateFull, s.config.MinPasswordLength); err != nil {
		return nil, err
	}

	email := domain.NormalizeEmail(*input.Email)
	if err := s.checkEmailAvailable(ctx, email); err != nil {
		return nil, err
	}

	passwordHash, err := s.hashPassword(*input.Password)
	if err != nil {
		return nil, err
	}

	var name string
	if input.Name != nil {
		name = strings.TrimSpace(*input.Name)
	}

	user := domain.NewUser(email, name, passwordHash)
	user.IsStaff = superuser
	user.IsSuperuser = superuser

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, domain.NewValidationError("email", domain.MsgEmailTaken)
		}
		s.logger.Error().Err(err).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if s.metrics != nil {
		s.metrics.UsersRegistered.Inc()
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Bool("is_superuser", user.IsSuperuser).
		Msg("user created")

	return user, nil
}

// Authenticate verifies credentials and returns the active user.
// The password is checked before the active flag, so ErrUserInactive is
// only returned to callers who know the password.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Debug().Msg("unknown email during authentication")
			return nil, ErrInvalidCredentials
		}
		s.logger.Error().Err(err).Msg("failed to load user for authentication")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), crypto.PasswordBytes(password)); err != nil {
		s.logger.Debug().Int64("user_id", user.ID).Msg("invalid password during authentication")
		return nil, ErrInvalidCredentials
	}

	if !user.CanAuthenticate() {
		s.logger.Debug().Int64("user_id", user.ID).Msg("inactive user attempted authentication")
		return nil, ErrUserInactive
	}

	return user, nil
}

// IssueTokenInput carries the credentials of a token request.
type IssueTokenInput struct {
	Email    *string
	Password *string
}

// IssueToken verifies credentials and issues a fresh token, replacing the
// user's previous one.
func (s *UserService) IssueToken(ctx context.Context, input IssueTokenInput) (*domain.Token, error) {
	verr := &domain.ValidationError{}
	for field, value := range map[string]*string{"email": input.Email, "password": input.Password} {
		switch {
		case value == nil:
			verr.Add(field, domain.MsgRequired)
		case strings.TrimSpace(*value) == "":
			verr.Add(field, domain.MsgBlank)
		}
	}
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}

	user, err := s.Authenticate(ctx, *input.Email, *input.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrUserInactive) {
			if s.metrics != nil {
				s.metrics.LoginFailures.Inc()
			}
			return nil, domain.NewValidationError(domain.NonFieldErrors, domain.MsgBadCredentials)
		}
		return nil, err
	}

	return s.IssueTokenFor(ctx, user)
}

// IssueTokenFor issues a fresh token for user without checking credentials.
func (s *UserService) IssueTokenFor(ctx context.Context, user *domain.User) (*domain.Token, error) {
	key, err := crypto.GenerateToken()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to generate token")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.tokenRepo.Replace(ctx, user.ID, crypto.HashToken(key)); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to store token")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if s.metrics != nil {
		s.metrics.TokensIssued.Inc()
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("token issued")

	return &domain.Token{Key: key, UserID: user.ID}, nil
}

// ResolveToken maps a plain token to its active owner.
// It implements auth.TokenResolver.
func (s *UserService) ResolveToken(ctx context.Context, key string) (*domain.User, error) {
	if !crypto.ValidateToken(key) {
		return nil, ErrInvalidToken
	}

	userID, err := s.tokenRepo.GetUserID(ctx, crypto.HashToken(key))
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		s.logger.Error().Err(err).Msg("failed to look up token")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.CanAuthenticate() {
		return nil, ErrUserInactive
	}

	return user, nil
}

// GetByID retrieves a user by ID.
func (s *UserService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", id).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error().Err(err).Msg("failed to get user by email")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return user, nil
}

// GetProfile returns the current state of user.
func (s *UserService) GetProfile(ctx context.Context, user *domain.User) (*domain.User, error) {
	return s.GetByID(ctx, user.ID)
}

// UpdateProfile applies input to user. Full mode (PUT) requires email and
// password; partial mode (PATCH) only touches the given fields.
func (s *UserService) UpdateProfile(ctx context.Context, user *domain.User, input domain.UserInput, mode domain.UpdateMode) (*domain.User, error) {
	if err := input.Validate(mode, s.config.MinPasswordLength); err != nil {
		return nil, err
	}

	current, err := s.GetByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if input.Email != nil {
		email := domain.NormalizeEmail(*input.Email)
		if !strings.EqualFold(email, current.Email) {
			if err := s.checkEmailAvailable(ctx, email); err != nil {
				return nil, err
			}
		}
		current.Email = email
	}

	if input.Name != nil {
		current.Name = strings.TrimSpace(*input.Name)
	}

	if input.Password != nil {
		passwordHash, err := s.hashPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		current.PasswordHash = passwordHash
	}

	if err := s.userRepo.Update(ctx, current); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, domain.NewValidationError("email", domain.MsgEmailTaken)
		}
		s.logger.Error().Err(err).Int64("user_id", current.ID).Msg("failed to update user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("user_id", current.ID).
		Str("mode", mode.String()).
		Bool("password_changed", input.Password != nil).
		Msg("profile updated")

	return current, nil
}

// SetActive activates or deactivates a user. Deactivation also revokes
// the user's token.
func (s *UserService) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.userRepo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", id).Msg("failed to set user active flag")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if !active {
		if err := s.tokenRepo.Delete(ctx, id); err != nil {
			s.logger.Error().Err(err).Int64("user_id", id).Msg("failed to revoke token")
			return fmt.Errorf("%w: %v", ErrInternalError, err)
		}
	}

	s.logger.Info().Int64("user_id", id).Bool("active", active).Msg("user active flag changed")
	return nil
}

// List returns users ordered by ID.
func (s *UserService) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	result, err := s.userRepo.List(ctx, opts.Normalize())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return result, nil
}

func (s *UserService) checkEmailAvailable(ctx context.Context, email string) error {
	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to check email existence")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		return domain.NewValidationError("email", domain.MsgEmailTaken)
	}
	return nil
}

func (s *UserService) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(crypto.PasswordBytes(password), s.config.BcryptCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return "", fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}
	return string(hash), nil
}
