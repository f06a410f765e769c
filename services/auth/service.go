package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/AlessandroSilveira/PlanWriter-sub001/config"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/audit"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/backupcodes"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/clock"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/lockout"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/logging"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/refreshtoken"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/totp"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrInvalidCredentials covers unknown account, wrong password and
	// failed second factor alike so that responses do not reveal which
	// part of the attempt was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrMfaRequired        = errors.New("mfa code required")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrPasswordTooWeak    = errors.New("password does not meet requirements")
)

// SessionIssuer starts a refresh session for an authenticated user.
type SessionIssuer interface {
	Issue(ctx context.Context, userID uint, info refreshtoken.SessionInfo) (*refreshtoken.SessionData, error)
}

// AccessTokenService mints short-lived access tokens.
type AccessTokenService interface {
	GenerateToken(userID uint) (string, error)
	AccessExpirySeconds() int
}

// MfaVerifier checks time-based one-time codes for a user.
type MfaVerifier interface {
	IsEnabled(ctx context.Context, userID uint) bool
	VerifyUserCode(ctx context.Context, userID uint, code string) error
}

// BackupCodeConsumer redeems single-use recovery codes.
type BackupCodeConsumer interface {
	Consume(ctx context.Context, userID uint, code string) error
}

// LockoutGuard throttles repeated failures per identifier and origin.
type LockoutGuard interface {
	Check(identifier, origin string) lockout.Status
	RegisterFailure(identifier, origin string) lockout.Status
	RegisterSuccess(identifier, origin string)
}

type Service struct {
	db       *gorm.DB
	config   *config.Config
	clock    clock.Clock
	logger   *logging.Service
	guard    LockoutGuard
	sessions SessionIssuer
	tokens   AccessTokenService
	mfa      MfaVerifier
	backup   BackupCodeConsumer
	sink     audit.Sink
}

func NewService(db *gorm.DB, cfg *config.Config, clk clock.Clock, logger *logging.Service, guard LockoutGuard, sessions SessionIssuer, tokens AccessTokenService, mfa MfaVerifier, backup BackupCodeConsumer, sink audit.Sink) *Service {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Service{
		db:       db,
		config:   cfg,
		clock:    clk,
		logger:   logger,
		guard:    guard,
		sessions: sessions,
		tokens:   tokens,
		mfa:      mfa,
		backup:   backup,
		sink:     sink,
	}
}

// Login runs one credential attempt end to end: lockout gate, password
// check, second factor for admin accounts, then session issuance. Every
// failure before issuance counts against the same lockout key no matter
// which step rejected the attempt.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	identifier := strings.ToLower(strings.TrimSpace(req.Username))

	if status := s.guard.Check(identifier, req.OriginAddress); status.IsLocked {
		s.record(ctx, audit.EventLoginLocked, audit.ResultFailure, nil, identifier, req)
		return nil, ErrAccountLocked
	}

	user, err := s.findUser(ctx, identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.fail(ctx, audit.EventLoginFailed, nil, identifier, req)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !VerifyPassword(req.Password, user.PasswordHash) {
		s.fail(ctx, audit.EventLoginFailed, &user.ID, identifier, req)
		return nil, ErrInvalidCredentials
	}

	if user.IsAdmin {
		if err := s.checkSecondFactor(ctx, user, req); err != nil {
			if errors.Is(err, ErrMfaRequired) {
				return nil, err
			}
			s.fail(ctx, audit.EventMfaFailed, &user.ID, identifier, req)
			return nil, ErrInvalidCredentials
		}
	}

	s.guard.RegisterSuccess(identifier, req.OriginAddress)

	session, err := s.sessions.Issue(ctx, user.ID, refreshtoken.SessionInfo{
		OriginAddress: req.OriginAddress,
		UserAgent:     req.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	accessToken, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	s.record(ctx, audit.EventLoginSucceeded, audit.ResultSuccess, &user.ID, identifier, req)

	return &LoginResult{
		User:                  user,
		AccessToken:           accessToken,
		RefreshToken:          session.Token,
		AccessTokenExpiresIn:  s.tokens.AccessExpirySeconds(),
		RefreshTokenExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *Service) checkSecondFactor(ctx context.Context, user *User, req LoginRequest) error {
	if !s.mfa.IsEnabled(ctx, user.ID) {
		s.logger.Warnw("admin account without mfa enrolled", "user_id", user.ID)
		return nil
	}

	switch {
	case req.MfaCode != "":
		return s.mfa.VerifyUserCode(ctx, user.ID, req.MfaCode)
	case req.BackupCode != "":
		if err := s.backup.Consume(ctx, user.ID, req.BackupCode); err != nil {
			return err
		}
		s.record(ctx, audit.EventBackupCodeConsumed, audit.ResultSuccess, &user.ID, strings.ToLower(user.Username), req)
		return nil
	default:
		return ErrMfaRequired
	}
}

func (s *Service) findUser(ctx context.Context, identifier string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).
		Where("LOWER(username) = ? OR LOWER(email) = ?", identifier, identifier).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByID loads the authentication record for an account.
func (s *Service) GetUserByID(ctx context.Context, userID uint) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser registers an account after validating the password against
// the configured policy.
func (s *Service) CreateUser(ctx context.Context, username, email, password string, isAdmin bool) (*User, error) {
	if err := s.ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &User{
		Username:     strings.TrimSpace(username),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		IsAdmin:      isAdmin,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *Service) fail(ctx context.Context, eventType string, userID *uint, identifier string, req LoginRequest) {
	status := s.guard.RegisterFailure(identifier, req.OriginAddress)
	if status.IsLocked {
		s.logger.Warnw("login throttle engaged",
			"identifier", identifier,
			"origin", req.OriginAddress,
			"locked_until", status.LockedUntil)
	}
	s.record(ctx, eventType, audit.ResultFailure, userID, identifier, req)
}

func (s *Service) record(ctx context.Context, eventType, result string, userID *uint, identifier string, req LoginRequest) {
	s.sink.Record(ctx, audit.Event{
		OccurredAt:    s.clock.Now(),
		EventType:     eventType,
		Result:        result,
		UserID:        userID,
		OriginAddress: req.OriginAddress,
		UserAgent:     req.UserAgent,
		Details:       "identifier " + identifier,
	})
}

// HashPassword derives a bcrypt hash using the configured cost.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.Auth.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword enforces the configured password policy.
func (s *Service) ValidatePassword(password string) error {
	if len(password) < s.config.Auth.MinLength {
		return fmt.Errorf("%w: minimum length is %d", ErrPasswordTooShort, s.config.Auth.MinLength)
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if s.config.Auth.RequireUpper && !hasUpper {
		return fmt.Errorf("%w: missing uppercase letter", ErrPasswordTooWeak)
	}
	if s.config.Auth.RequireLower && !hasLower {
		return fmt.Errorf("%w: missing lowercase letter", ErrPasswordTooWeak)
	}
	if s.config.Auth.RequireNumber && !hasDigit {
		return fmt.Errorf("%w: missing digit", ErrPasswordTooWeak)
	}
	if s.config.Auth.RequireSpecial && !hasSpecial {
		return fmt.Errorf("%w: missing special character", ErrPasswordTooWeak)
	}
	return nil
}

var _ MfaVerifier = (*totp.Service)(nil)
var _ BackupCodeConsumer = (*backupcodes.Service)(nil)
