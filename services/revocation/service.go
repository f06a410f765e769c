package revocation

import (
	"sync"
	"time"

	"github.com/AlessandroSilveira/PlanWriter-sub001/config"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/clock"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RevokedJTI persists individual access-token revocations across
// restarts. Per-user watermarks are memory-only: they only need to
// outlive the short access-token window.
type RevokedJTI struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	JTI       string    `json:"jti" gorm:"uniqueIndex;size:36;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
}

func (RevokedJTI) TableName() string {
	return "revoked_jtis"
}

// Service is the access-token kill switch. Refresh sessions are
// revoked in their own store; this service covers the already-minted
// short-lived access tokens that logout-all must also invalidate.
type Service struct {
	config *config.Config
	db     *gorm.DB
	clock  clock.Clock
	logger *logging.Service

	mu         sync.RWMutex
	jtis       map[string]time.Time
	watermarks map[uint]time.Time
}

func NewService(cfg *config.Config, db *gorm.DB, clk clock.Clock, logger *logging.Service) *Service {
	s := &Service{
		config:     cfg,
		db:         db,
		clock:      clk,
		logger:     logger,
		jtis:       make(map[string]time.Time),
		watermarks: make(map[uint]time.Time),
	}

	if err := s.loadFromDatabase(); err != nil {
		logger.Error("failed to load revoked access tokens", zap.Error(err))
	}

	return s
}

func (s *Service) RevokeJTI(jti string, expiresAt time.Time) error {
	if !s.config.Revocation.Enabled {
		return nil
	}

	s.mu.Lock()
	s.jtis[jti] = expiresAt
	s.mu.Unlock()

	if err := s.db.Create(&RevokedJTI{JTI: jti, ExpiresAt: expiresAt}).Error; err != nil {
		s.logger.Error("failed to persist revoked JTI",
			zap.Error(err),
			zap.String("jti", jti))
		return err
	}

	return nil
}

// RevokeAllUserTokens invalidates every access token for the user
// issued before the given instant.
func (s *Service) RevokeAllUserTokens(userID uint, issuedBefore time.Time) error {
	if !s.config.Revocation.Enabled {
		return nil
	}

	s.mu.Lock()
	if existing, ok := s.watermarks[userID]; !ok || issuedBefore.After(existing) {
		s.watermarks[userID] = issuedBefore
	}
	s.mu.Unlock()

	s.logger.Info("revoked all user access tokens",
		zap.Uint("user_id", userID),
		zap.Time("issued_before", issuedBefore))

	return nil
}

func (s *Service) IsJTIRevoked(jti string, userID uint, issuedAt time.Time) (bool, error) {
	if !s.config.Revocation.Enabled {
		return false, nil
	}

	now := s.clock.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if watermark, ok := s.watermarks[userID]; ok && issuedAt.Before(watermark) {
		return true, nil
	}

	expiresAt, ok := s.jtis[jti]
	if !ok {
		return false, nil
	}

	return now.Before(expiresAt), nil
}

func (s *Service) CleanupExpired() error {
	now := s.clock.Now()

	s.mu.Lock()
	for jti, expiresAt := range s.jtis {
		if !now.Before(expiresAt) {
			delete(s.jtis, jti)
		}
	}
	for userID, watermark := range s.watermarks {
		if now.Sub(watermark) > s.config.JWT.AccessExpiry {
			delete(s.watermarks, userID)
		}
	}
	s.mu.Unlock()

	result := s.db.Where("expires_at <= ?", now).Delete(&RevokedJTI{})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		s.logger.Debug("cleaned up expired revoked JTIs",
			zap.Int64("count", result.RowsAffected))
	}

	return nil
}

func (s *Service) StartCleanupWorker() {
	go func() {
		ticker := time.NewTicker(s.config.Revocation.CleanupPeriod)
		defer ticker.Stop()

		for range ticker.C {
			if err := s.CleanupExpired(); err != nil {
				s.logger.Error("revoked JTI cleanup failed", zap.Error(err))
			}
		}
	}()
}

func (s *Service) loadFromDatabase() error {
	var rows []RevokedJTI
	if err := s.db.Where("expires_at > ?", s.clock.Now()).Find(&rows).Error; err != nil {
		return err
	}

	s.mu.Lock()
	for _, row := range rows {
		s.jtis[row.JTI] = row.ExpiresAt
	}
	s.mu.Unlock()

	if len(rows) > 0 {
		s.logger.Info("loaded revoked access tokens",
			zap.Int("count", len(rows)))
	}

	return nil
}
