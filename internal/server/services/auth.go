package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/contactbook/internal/async"
	"github.com/dmitrijs2005/contactbook/internal/common"
	"github.com/dmitrijs2005/contactbook/internal/logging"
	"github.com/dmitrijs2005/contactbook/internal/server/auth"
	"github.com/dmitrijs2005/contactbook/internal/server/cache"
	"github.com/dmitrijs2005/contactbook/internal/server/config"
	"github.com/dmitrijs2005/contactbook/internal/server/mail"
	"github.com/dmitrijs2005/contactbook/internal/server/models"
	"github.com/dmitrijs2005/contactbook/internal/server/repositories/repomanager"
	"github.com/golang-jwt/jwt/v5"
)

// mailTimeout bounds a single background delivery attempt.
const mailTimeout = 30 * time.Second

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService implements registration, login, token issuance and the
// email-driven account flows. The user cache is optional: a nil cache
// degrades every lookup to the database without affecting correctness.
type AuthService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	cache                        *cache.UserCache
	mailer                       mail.Mailer
	logger                       logging.Logger
	jwtSecret                    []byte
	jwtMethod                    jwt.SigningMethod
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	emailTokenValidityDuration   time.Duration
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, userCache *cache.UserCache,
	mailer mail.Mailer, logger logging.Logger, cfg *config.Config) (*AuthService, error) {

	method := jwt.GetSigningMethod(cfg.JWTAlgorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown JWT algorithm: %s", cfg.JWTAlgorithm)
	}

	return &AuthService{
		db:                           db,
		repomanager:                  m,
		cache:                        userCache,
		mailer:                       mailer,
		logger:                       logger,
		jwtSecret:                    []byte(cfg.SecretKey),
		jwtMethod:                    method,
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		emailTokenValidityDuration:   cfg.EmailTokenValidityDuration,
	}, nil
}

// Register creates an account and queues the confirmation email. Email and
// username collisions report distinct sentinel errors.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*models.User, error) {

	repo := s.repomanager.Users(s.db)

	if _, err := repo.GetByEmail(ctx, email); err == nil {
		return nil, common.ErrEmailTaken
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorInternal
	}

	if _, err := repo.GetByUsername(ctx, username); err == nil {
		return nil, common.ErrUsernameTaken
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorInternal
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, common.ErrorInternal
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         models.RoleUser,
	}

	user, err = repo.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.sendConfirmationMail(user)

	return user, nil
}

// Login verifies credentials and issues a token pair. A missing account and
// a wrong password are indistinguishable to the caller; an unconfirmed email
// is reported separately.
func (s *AuthService) Login(ctx context.Context, username, password string) (*TokenPair, error) {

	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		return nil, common.ErrorUnauthorized
	}

	// Only after the credentials check: an unconfirmed address must not be
	// observable without the password.
	if !user.Confirmed {
		return nil, common.ErrEmailNotConfirmed
	}

	accessToken, err := auth.GenerateToken(username, auth.TokenTypeAccess, s.jwtSecret, s.jwtMethod, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refreshToken, err := auth.GenerateToken(username, auth.TokenTypeRefresh, s.jwtSecret, s.jwtMethod, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	// Single refresh-token slot per user: a second login replaces the first.
	if err := repo.UpdateRefreshToken(ctx, username, &refreshToken); err != nil {
		return nil, common.ErrorInternal
	}

	user.RefreshToken = refreshToken
	s.cacheUser(ctx, user)

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Authenticate resolves an access token to the account it belongs to,
// consulting the cache before the directory.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {

	claims, err := auth.ParseToken(accessToken, s.jwtSecret)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}
	if claims.TokenType != auth.TokenTypeAccess || claims.Subject == "" {
		return nil, common.ErrorUnauthorized
	}

	user, err := s.lookupUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	return user, nil
}

// Refresh exchanges a live refresh token for a fresh access token. The
// refresh token itself is not rotated. The stored slot is read from the
// directory, never the cache, so a superseded token is rejected even when
// a stale snapshot is still cached.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {

	claims, err := auth.ParseToken(refreshToken, s.jwtSecret)
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	if claims.TokenType != auth.TokenTypeRefresh || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	username := claims.Subject

	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, common.ErrorInternal
	}

	if user.RefreshToken != refreshToken {
		return nil, common.ErrRefreshTokenStale
	}

	accessToken, err := auth.GenerateToken(username, auth.TokenTypeAccess, s.jwtSecret, s.jwtMethod, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// RequireRole gates an operation on the caller's role.
func (s *AuthService) RequireRole(user *models.User, role models.Role) error {
	if user.Role != role {
		return common.ErrorForbidden
	}
	return nil
}

// ConfirmEmail marks the address in the token as confirmed. Returns whether
// the address was already confirmed; a second confirmation is a no-op.
func (s *AuthService) ConfirmEmail(ctx context.Context, token string) (bool, error) {

	email, err := auth.GetEmailFromToken(token, s.jwtSecret)
	if err != nil {
		return false, common.ErrInvalidToken
	}

	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, common.ErrorNotFound
		}
		return false, common.ErrorInternal
	}

	if user.Confirmed {
		return true, nil
	}

	if err := repo.ConfirmEmail(ctx, email); err != nil {
		return false, common.ErrorInternal
	}

	user.Confirmed = true
	s.cacheUser(ctx, user)

	return false, nil
}

// RequestConfirmationEmail re-sends the confirmation link. Returns whether
// the address is already confirmed.
func (s *AuthService) RequestConfirmationEmail(ctx context.Context, email string) (bool, error) {

	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, common.ErrorNotFound
		}
		return false, common.ErrorInternal
	}

	if user.Confirmed {
		return true, nil
	}

	s.sendConfirmationMail(user)

	return false, nil
}

// RequestPasswordReset queues a reset email. The outcome is identical
// whether or not the address belongs to an account.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {

	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return common.ErrorInternal
	}

	token, err := auth.GenerateEmailToken(user.Email, s.jwtSecret, s.jwtMethod, s.emailTokenValidityDuration)
	if err != nil {
		return common.ErrorInternal
	}

	async.SafeGo(context.Background(), mailTimeout, "password reset mail", s.logger, func(ctx context.Context) error {
		return s.mailer.SendPasswordReset(ctx, user.Email, user.Username, token)
	})

	return nil
}

// ResetPassword sets a new password for the address in the token. The stored
// refresh token is revoked in the same statement, so previously issued
// refresh tokens stop working immediately.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {

	email, err := auth.GetEmailFromToken(token, s.jwtSecret)
	if err != nil {
		return common.ErrInvalidToken
	}

	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return common.ErrorInternal
	}

	repo := s.repomanager.Users(s.db)

	if err := repo.UpdatePassword(ctx, email, passwordHash); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}

	if user, err := repo.GetByEmail(ctx, email); err == nil {
		s.cacheUser(ctx, user)
	}

	return nil
}

// lookupUser reads a user through the cache. Any cache failure, including a
// corrupt entry, falls back to the directory; a successful directory read
// refreshes the cache best-effort.
func (s *AuthService) lookupUser(ctx context.Context, username string) (*models.User, error) {

	if s.cache != nil {
		user, err := s.cache.GetUser(ctx, username)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, common.ErrCacheMiss) {
			s.logger.Warn(ctx, "cache read failed", "error", err)
		}
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	s.cacheUser(ctx, user)

	return user, nil
}

// cacheUser writes a snapshot best-effort. Failures are logged and absorbed.
func (s *AuthService) cacheUser(ctx context.Context, user *models.User) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetUser(ctx, user); err != nil {
		s.logger.Warn(ctx, "cache write failed", "error", err)
	}
}

// sendConfirmationMail queues the confirmation link without blocking the
// request. Token generation errors are logged, never surfaced.
func (s *AuthService) sendConfirmationMail(user *models.User) {

	token, err := auth.GenerateEmailToken(user.Email, s.jwtSecret, s.jwtMethod, s.emailTokenValidityDuration)
	if err != nil {
		s.logger.Error(context.Background(), "error generating email token", "error", err)
		return
	}

	async.SafeGo(context.Background(), mailTimeout, "confirmation mail", s.logger, func(ctx context.Context) error {
		return s.mailer.SendConfirmation(ctx, user.Email, user.Username, token)
	})
}
