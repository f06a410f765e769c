package totp

import (
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AlessandroSilveira/PlanWriter-sub001/config"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/clock"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/logging"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrCodeInvalid       = errors.New("invalid MFA code")
	ErrCodeAlreadyUsed   = errors.New("MFA code has already been used")
	ErrSecretMissing     = errors.New("MFA secret not found for user")
	ErrSecretInvalid     = errors.New("MFA secret is not valid base32")
	ErrAlreadyEnabled    = errors.New("MFA is already enabled for user")
	ErrEnrollmentMissing = errors.New("no pending MFA enrollment for user")
	ErrEnrollmentExpired = errors.New("pending MFA enrollment has expired")
)

const period = 30

type Service struct {
	config *config.Config
	db     *gorm.DB
	clock  clock.Clock
	logger *logging.Service
}

func NewService(cfg *config.Config, db *gorm.DB, clk clock.Clock, logger *logging.Service) *Service {
	return &Service{
		config: cfg,
		db:     db,
		clock:  clk,
		logger: logger,
	}
}

// BeginEnrollment generates a fresh pending secret for the user and
// returns it with the provisioning URI. The account stays in its
// current state until the first valid code commits the secret.
func (s *Service) BeginEnrollment(ctx context.Context, userID uint, accountName string) (*Enrollment, error) {
	settings, err := s.getOrCreateSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	if settings.Enabled {
		s.logger.Warn("MFA enrollment attempted but already enabled",
			zap.Uint("user_id", userID))
		return nil, ErrAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.config.MFA.Issuer,
		AccountName: accountName,
		SecretSize:  uint(s.config.MFA.SecretSize),
		Period:      period,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		s.logger.Error("failed to generate MFA secret",
			zap.Error(err),
			zap.Uint("user_id", userID))
		return nil, fmt.Errorf("failed to generate MFA secret: %w", err)
	}

	now := s.clock.Now()
	settings.PendingSecret = key.Secret()
	settings.PendingGeneratedAt = &now

	if err := s.db.WithContext(ctx).Save(settings).Error; err != nil {
		return nil, fmt.Errorf("failed to store pending MFA secret: %w", err)
	}

	s.logger.Info("MFA enrollment started",
		zap.Uint("user_id", userID),
		zap.String("account_name", accountName))

	return &Enrollment{
		Secret:     key.Secret(),
		OtpAuthURI: key.URL(),
	}, nil
}

// ConfirmEnrollment commits the pending secret once the user proves
// possession of it with a valid code.
func (s *Service) ConfirmEnrollment(ctx context.Context, userID uint, code string) error {
	settings, err := s.getSettings(ctx, userID)
	if err != nil {
		return err
	}

	if settings.PendingSecret == "" || settings.PendingGeneratedAt == nil {
		return ErrEnrollmentMissing
	}

	now := s.clock.Now()
	if now.Sub(*settings.PendingGeneratedAt) > s.config.MFA.PendingTTL {
		s.logger.Warn("MFA enrollment confirmation failed - pending secret expired",
			zap.Uint("user_id", userID))
		return ErrEnrollmentExpired
	}

	if err := s.ValidateCode(settings.PendingSecret, code); err != nil {
		s.logger.Warn("MFA enrollment confirmation failed - invalid code",
			zap.Uint("user_id", userID))
		return err
	}

	settings.Secret = settings.PendingSecret
	settings.Enabled = true
	settings.PendingSecret = ""
	settings.PendingGeneratedAt = nil

	if err := s.db.WithContext(ctx).Save(settings).Error; err != nil {
		return fmt.Errorf("failed to enable MFA: %w", err)
	}

	s.logger.Info("MFA enabled", zap.Uint("user_id", userID))

	return nil
}

// ValidateCode checks a 6-digit code against a base32 secret at the
// injected clock's current instant, accepting the configured number of
// drift steps each side. The comparison inside the otp library is
// constant-time.
func (s *Service) ValidateCode(secret, code string) error {
	code = normalizeCode(code)
	if len(code) != 6 {
		return ErrCodeInvalid
	}

	normalizedSecret := strings.ToUpper(strings.TrimSpace(secret))
	if _, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(normalizedSecret); err != nil {
		return ErrSecretInvalid
	}

	valid, err := totp.ValidateCustom(code, normalizedSecret, s.clock.Now(), totp.ValidateOpts{
		Period:    period,
		Skew:      uint(s.config.MFA.DriftSteps),
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return ErrSecretInvalid
	}
	if !valid {
		return ErrCodeInvalid
	}

	return nil
}

// VerifyUserCode validates a code for an MFA-enabled user and records
// it so the same code cannot be replayed within the validity horizon.
func (s *Service) VerifyUserCode(ctx context.Context, userID uint, code string) error {
	settings, err := s.getSettings(ctx, userID)
	if err != nil {
		return err
	}

	if !settings.Enabled || settings.Secret == "" {
		return ErrSecretMissing
	}

	code = normalizeCode(code)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		cutoff := now.Add(-s.config.MFA.ReplayHorizon).Unix()

		var existing UsedCode
		if err := tx.Where("user_id = ? AND code = ? AND used_at > ?", userID, code, cutoff).First(&existing).Error; err == nil {
			s.logger.Warn("MFA verification failed - code already used",
				zap.Uint("user_id", userID))
			return ErrCodeAlreadyUsed
		}

		if err := s.ValidateCode(settings.Secret, code); err != nil {
			s.logger.Warn("MFA verification failed - invalid code",
				zap.Uint("user_id", userID))
			return err
		}

		usedCode := &UsedCode{
			UserID: userID,
			Code:   code,
			UsedAt: now.Unix(),
		}
		if err := tx.Create(usedCode).Error; err != nil {
			return fmt.Errorf("failed to store used code: %w", err)
		}

		s.logger.Info("MFA code verified", zap.Uint("user_id", userID))

		return nil
	})
}

// IsEnabled reports whether the user has committed an MFA secret.
func (s *Service) IsEnabled(ctx context.Context, userID uint) bool {
	settings, err := s.getSettings(ctx, userID)
	if err != nil {
		return false
	}
	return settings.Enabled
}

// Disable removes the user's MFA state and replay records.
func (s *Service) Disable(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("user_id = ?", userID).Delete(&MfaSettings{})
		if result.Error != nil {
			return fmt.Errorf("failed to disable MFA: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrSecretMissing
		}

		if err := tx.Where("user_id = ?", userID).Delete(&UsedCode{}).Error; err != nil {
			return fmt.Errorf("failed to clean up used codes: %w", err)
		}

		s.logger.Info("MFA disabled", zap.Uint("user_id", userID))

		return nil
	})
}

// CleanupUsedCodes removes replay records past the validity horizon.
func (s *Service) CleanupUsedCodes(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.config.MFA.ReplayHorizon).Unix()

	result := s.db.WithContext(ctx).Where("used_at < ?", cutoff).Delete(&UsedCode{})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		s.logger.Debug("cleaned up used MFA codes",
			zap.Int64("count", result.RowsAffected))
	}

	return nil
}

func (s *Service) StartCleanupWorker() {
	go func() {
		ticker := time.NewTicker(s.config.MFA.CleanupInterval)
		defer ticker.Stop()

		for range ticker.C {
			if err := s.CleanupUsedCodes(context.Background()); err != nil {
				s.logger.Error("used MFA code cleanup failed", zap.Error(err))
			}
		}
	}()
}

func (s *Service) getSettings(ctx context.Context, userID uint) (*MfaSettings, error) {
	var settings MfaSettings
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSecretMissing
		}
		return nil, fmt.Errorf("failed to retrieve MFA settings: %w", err)
	}
	return &settings, nil
}

func (s *Service) getOrCreateSettings(ctx context.Context, userID uint) (*MfaSettings, error) {
	settings, err := s.getSettings(ctx, userID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, ErrSecretMissing) {
		return nil, err
	}

	settings = &MfaSettings{UserID: userID}
	if err := s.db.WithContext(ctx).Create(settings).Error; err != nil {
		return nil, fmt.Errorf("failed to create MFA settings: %w", err)
	}
	return settings, nil
}

func normalizeCode(code string) string {
	var b strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
