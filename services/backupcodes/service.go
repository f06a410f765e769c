package backupcodes

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/AlessandroSilveira/PlanWriter-sub001/config"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/clock"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Alphabet excludes 0/O/1/I so codes survive being read aloud or
// copied by hand.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

var (
	ErrCodeInvalid          = errors.New("invalid backup code")
	ErrCodeGenerationFailed = errors.New("failed to generate backup codes")
)

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

// Replace atomically swaps the user's backup-code set: the old set is
// invalidated in the same transaction that activates the new one.
// Returned plaintext codes are never persisted.
func (s *Service) Replace(ctx context.Context, userID uint) ([]string, error) {
	codes, err := s.generateCodes()
	if err != nil {
		s.logger.Error("failed to generate backup codes",
			zap.Error(err),
			zap.Uint("user_id", userID))
		return nil, ErrCodeGenerationFailed
	}

	now := s.clock.Now()
	rows := make([]BackupCode, 0, len(codes))
	for _, code := range codes {
		rows = append(rows, BackupCode{
			UserID:    userID,
			CodeHash:  HashCode(code),
			CreatedAt: now,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&BackupCode{}).Error; err != nil {
			return fmt.Errorf("failed to invalidate old backup codes: %w", err)
		}

		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to store backup codes: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("backup codes replaced",
		zap.Uint("user_id", userID),
		zap.Int("count", len(codes)))

	return codes, nil
}

// Consume marks a backup code used. The guarded conditional update is
// the same at-most-once pattern as refresh-token rotation: exactly one
// concurrent attempt can flip is_used, everyone else sees zero
// affected rows.
func (s *Service) Consume(ctx context.Context, userID uint, code string) error {
	normalized := Normalize(code)
	if normalized == "" {
		return ErrCodeInvalid
	}

	now := s.clock.Now()
	result := s.db.WithContext(ctx).Model(&BackupCode{}).
		Where("user_id = ? AND code_hash = ? AND is_used = ?", userID, HashCode(normalized), false).
		Updates(map[string]any{
			"is_used": true,
			"used_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to consume backup code: %w", result.Error)
	}

	if result.RowsAffected != 1 {
		s.logger.Warn("backup code rejected",
			zap.Uint("user_id", userID))
		return ErrCodeInvalid
	}

	s.logger.Info("backup code consumed", zap.Uint("user_id", userID))

	return nil
}

// Remaining counts the user's unused codes.
func (s *Service) Remaining(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&BackupCode{}).
		Where("user_id = ? AND is_used = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count backup codes: %w", err)
	}
	return count, nil
}

// RemoveAll deletes the user's backup codes, used when MFA is
// disabled.
func (s *Service) RemoveAll(ctx context.Context, userID uint) error {
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&BackupCode{}).Error; err != nil {
		return fmt.Errorf("failed to remove backup codes: %w", err)
	}
	return nil
}

func (s *Service) generateCodes() ([]string, error) {
	count := s.config.BackupCodes.Count
	if count <= 0 {
		count = 8
	}
	length := s.config.BackupCodes.Length
	if length <= 0 {
		length = 8
	}

	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		code, err := randomCode(length)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}

	return codes, nil
}

// randomCode draws length characters from the alphabet and formats
// them as XXXX-XXXX.
func randomCode(length int) (string, error) {
	chars := make([]byte, length)
	max := big.NewInt(int64(len(Alphabet)))
	for i := range chars {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		chars[i] = Alphabet[n.Int64()]
	}

	half := length / 2
	return string(chars[:half]) + "-" + string(chars[half:]), nil
}

// Normalize strips separators and case so user input matches the
// stored hash regardless of formatting.
func Normalize(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(code) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HashCode hex-encodes the SHA-256 of the normalized code.
func HashCode(code string) string {
	hash := sha256.Sum256([]byte(Normalize(code)))
	return hex.EncodeToString(hash[:])
}
