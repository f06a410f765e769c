package refreshtoken

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/AlessandroSilveira/PlanWriter-sub001/config"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/audit"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/clock"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/logging"
	"github.com/google/uuid"
	"github.com/mileusna/useragent"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrSessionInvalid is the single outward failure for the refresh
	// path. Not-found, expired, reused and lost-race are distinguished
	// only in the audit trail so responses cannot be used as an oracle.
	ErrSessionInvalid        = errors.New("invalid session")
	ErrTokenGenerationFailed = errors.New("failed to generate secure token")
)

// JWTService mints the short-lived access token returned alongside a
// rotated refresh token.
type JWTService interface {
	GenerateToken(userID uint) (string, error)
	AccessExpirySeconds() int
}

// SecurityNotifier is told about reuse detections after the family has
// been revoked. Notification is best-effort and must not block.
type SecurityNotifier interface {
	NotifyTokenReuse(userID uint, device, originAddress string)
}

type Service struct {
	db       *gorm.DB
	config   *config.Config
	clock    clock.Clock
	logger   *logging.Service
	audit    audit.Sink
	notifier SecurityNotifier
}

func NewService(db *gorm.DB, cfg *config.Config, clk clock.Clock, logger *logging.Service, sink audit.Sink) *Service {
	if sink == nil {
		sink = audit.NopSink{}
	}

	return &Service{
		db:     db,
		config: cfg,
		clock:  clk,
		logger: logger,
		audit:  sink,
	}
}

func (s *Service) SetSecurityNotifier(notifier SecurityNotifier) {
	s.notifier = notifier
}

// Issue creates a brand-new session family for the user. Called on
// successful login.
func (s *Service) Issue(ctx context.Context, userID uint, info SessionInfo) (*SessionData, error) {
	token, err := s.generateSecureToken()
	if err != nil {
		s.logger.Error("failed to generate refresh token", zap.Error(err))
		return nil, ErrTokenGenerationFailed
	}

	now := s.clock.Now()
	row := RefreshToken{
		ID:          uuid.New().String(),
		UserID:      userID,
		FamilyID:    uuid.New().String(),
		TokenHash:   s.hashToken(token),
		Device:      deviceName(info.UserAgent),
		CreatedByIP: info.OriginAddress,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.config.RefreshToken.Expiry),
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logger.Error("failed to store refresh token session",
			zap.Error(err),
			zap.Uint("user_id", userID))
		return nil, fmt.Errorf("failed to store refresh token session: %w", err)
	}

	s.logger.Info("refresh token session issued",
		zap.Uint("user_id", userID),
		zap.String("session_id", row.ID),
		zap.String("family_id", row.FamilyID),
		zap.Time("expires_at", row.ExpiresAt))

	s.audit.Record(ctx, audit.Event{
		OccurredAt:    now,
		EventType:     audit.EventSessionIssued,
		Result:        audit.ResultSuccess,
		UserID:        &userID,
		OriginAddress: info.OriginAddress,
		UserAgent:     info.UserAgent,
		Details:       "family " + row.FamilyID,
	})

	return &SessionData{
		Token:     token,
		SessionID: row.ID,
		FamilyID:  row.FamilyID,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

// Refresh exchanges a presented refresh token for a new refresh token
// plus a fresh access token. Presenting an already-rotated token burns
// the whole family: a legitimate client only ever presents each token
// once, so a second presentation means the token was captured.
func (s *Service) Refresh(ctx context.Context, presentedToken string, info SessionInfo, jwtService JWTService) (*RotationResult, error) {
	now := s.clock.Now()

	var current RefreshToken
	err := s.db.WithContext(ctx).Where("token_hash = ?", s.hashToken(presentedToken)).First(&current).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("refresh failed - token not found")
			s.audit.Record(ctx, audit.Event{
				OccurredAt:    now,
				EventType:     audit.EventSessionNotFound,
				Result:        audit.ResultFailure,
				OriginAddress: info.OriginAddress,
				UserAgent:     info.UserAgent,
			})
			return nil, ErrSessionInvalid
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if current.Revoked() {
		s.logger.Warn("refresh token reuse detected",
			zap.Uint("user_id", current.UserID),
			zap.String("session_id", current.ID),
			zap.String("family_id", current.FamilyID),
			zap.String("revoked_reason", current.RevokedReason))
		if err := s.burnFamily(ctx, &current, info, now); err != nil {
			return nil, err
		}
		return nil, ErrSessionInvalid
	}

	if !current.ExpiresAt.After(now) {
		// Ordinary expiry is not evidence of theft; the family stays
		// untouched.
		s.logger.Warn("refresh failed - token expired",
			zap.Uint("user_id", current.UserID),
			zap.String("session_id", current.ID),
			zap.Time("expired_at", current.ExpiresAt))
		s.audit.Record(ctx, audit.Event{
			OccurredAt:    now,
			EventType:     audit.EventSessionExpired,
			Result:        audit.ResultFailure,
			UserID:        &current.UserID,
			OriginAddress: info.OriginAddress,
			UserAgent:     info.UserAgent,
		})
		return nil, ErrSessionInvalid
	}

	newToken, err := s.generateSecureToken()
	if err != nil {
		s.logger.Error("failed to generate replacement token", zap.Error(err))
		return nil, ErrTokenGenerationFailed
	}

	device := deviceName(info.UserAgent)
	if device == "" {
		device = current.Device
	}

	child := RefreshToken{
		ID:          uuid.New().String(),
		UserID:      current.UserID,
		FamilyID:    current.FamilyID,
		ParentID:    &current.ID,
		TokenHash:   s.hashToken(newToken),
		Device:      device,
		CreatedByIP: info.OriginAddress,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.config.RefreshToken.Expiry),
	}

	if err := s.db.WithContext(ctx).Create(&child).Error; err != nil {
		return nil, fmt.Errorf("failed to store replacement session: %w", err)
	}

	// The guarded conditional update is the sole synchronization point
	// for a family: exactly one concurrent Refresh on the same token
	// wins; everyone else observes zero affected rows.
	result := s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("id = ? AND revoked_at IS NULL", current.ID).
		Updates(map[string]any{
			"revoked_at":     now,
			"revoked_reason": ReasonRotated,
			"replaced_by_id": child.ID,
			"last_used_at":   now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to rotate session: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		s.logger.Warn("refresh lost rotation race - treating as reuse",
			zap.Uint("user_id", current.UserID),
			zap.String("session_id", current.ID),
			zap.String("family_id", current.FamilyID))
		if err := s.burnFamily(ctx, &current, info, now); err != nil {
			return nil, err
		}
		return nil, ErrSessionInvalid
	}

	accessToken, err := jwtService.GenerateToken(current.UserID)
	if err != nil {
		s.logger.Error("failed to mint access token during rotation",
			zap.Error(err),
			zap.Uint("user_id", current.UserID))
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	s.logger.Info("refresh token rotated",
		zap.Uint("user_id", current.UserID),
		zap.String("old_session_id", current.ID),
		zap.String("new_session_id", child.ID),
		zap.String("family_id", current.FamilyID))

	s.audit.Record(ctx, audit.Event{
		OccurredAt:    now,
		EventType:     audit.EventSessionRotated,
		Result:        audit.ResultSuccess,
		UserID:        &current.UserID,
		OriginAddress: info.OriginAddress,
		UserAgent:     info.UserAgent,
		Details:       "family " + current.FamilyID,
	})

	return &RotationResult{
		AccessToken:           accessToken,
		RefreshToken:          newToken,
		AccessTokenExpiresIn:  jwtService.AccessExpirySeconds(),
		RefreshTokenExpiresAt: child.ExpiresAt,
		SessionID:             child.ID,
		UserID:                current.UserID,
	}, nil
}

// Logout revokes the presented token's whole family. Unknown tokens
// are treated as already logged out.
func (s *Service) Logout(ctx context.Context, presentedToken string, info SessionInfo) error {
	now := s.clock.Now()

	var current RefreshToken
	err := s.db.WithContext(ctx).Where("token_hash = ?", s.hashToken(presentedToken)).First(&current).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Debug("logout for unknown token - treating as already logged out")
			return nil
		}
		return fmt.Errorf("database error: %w", err)
	}

	count, err := s.revokeFamily(ctx, current.FamilyID, ReasonLogout, now)
	if err != nil {
		return err
	}

	s.logger.Info("session family logged out",
		zap.Uint("user_id", current.UserID),
		zap.String("family_id", current.FamilyID),
		zap.Int64("revoked", count))

	s.audit.Record(ctx, audit.Event{
		OccurredAt:    now,
		EventType:     audit.EventLogout,
		Result:        audit.ResultSuccess,
		UserID:        &current.UserID,
		OriginAddress: info.OriginAddress,
		UserAgent:     info.UserAgent,
	})

	return nil
}

// LogoutAll revokes every active session for the user and returns how
// many rows were revoked.
func (s *Service) LogoutAll(ctx context.Context, userID uint, info SessionInfo) (int64, error) {
	now := s.clock.Now()

	result := s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Updates(map[string]any{
			"revoked_at":     now,
			"revoked_reason": ReasonLogoutAll,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to revoke user sessions: %w", result.Error)
	}

	s.logger.Info("all user sessions revoked",
		zap.Uint("user_id", userID),
		zap.Int64("count", result.RowsAffected))

	s.audit.Record(ctx, audit.Event{
		OccurredAt:    now,
		EventType:     audit.EventLogoutAll,
		Result:        audit.ResultSuccess,
		UserID:        &userID,
		OriginAddress: info.OriginAddress,
		UserAgent:     info.UserAgent,
		Details:       fmt.Sprintf("revoked %d sessions", result.RowsAffected),
	})

	return result.RowsAffected, nil
}

// ActiveSessions lists the user's non-revoked, unexpired sessions.
func (s *Service) ActiveSessions(ctx context.Context, userID uint) ([]RefreshToken, error) {
	now := s.clock.Now()

	var sessions []RefreshToken
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, now).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return sessions, nil
}

// burnFamily revokes every live row in the family synchronously before
// the caller returns its unauthorized response, then records the reuse
// event and kicks off the best-effort notification.
func (s *Service) burnFamily(ctx context.Context, current *RefreshToken, info SessionInfo, now time.Time) error {
	count, err := s.revokeFamily(ctx, current.FamilyID, ReasonReuseDetected, now)
	if err != nil {
		return err
	}

	s.logger.Warn("session family revoked after reuse detection",
		zap.Uint("user_id", current.UserID),
		zap.String("family_id", current.FamilyID),
		zap.Int64("revoked", count))

	s.audit.Record(ctx, audit.Event{
		OccurredAt:    now,
		EventType:     audit.EventSessionReuseDetected,
		Result:        audit.ResultFailure,
		UserID:        &current.UserID,
		OriginAddress: info.OriginAddress,
		UserAgent:     info.UserAgent,
		Details:       "family " + current.FamilyID,
	})

	if s.notifier != nil {
		go s.notifier.NotifyTokenReuse(current.UserID, current.Device, info.OriginAddress)
	}

	return nil
}

func (s *Service) revokeFamily(ctx context.Context, familyID, reason string, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("family_id = ? AND revoked_at IS NULL", familyID).
		Updates(map[string]any{
			"revoked_at":     now,
			"revoked_reason": reason,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to revoke session family: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// CleanupExpired removes rows past the retention window. Revoked rows
// inside the window are kept as the audit trail.
func (s *Service) CleanupExpired(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.config.RefreshToken.Retention)

	result := s.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&RefreshToken{})
	if result.Error != nil {
		return fmt.Errorf("failed to cleanup expired sessions: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.logger.Info("cleaned up expired refresh token sessions",
			zap.Int64("count", result.RowsAffected))
	}

	return nil
}

func (s *Service) StartCleanupWorker() {
	go func() {
		ticker := time.NewTicker(s.config.RefreshToken.CleanupInterval)
		defer ticker.Stop()

		for range ticker.C {
			if err := s.CleanupExpired(context.Background()); err != nil {
				s.logger.Error("refresh token cleanup worker failed", zap.Error(err))
			}
		}
	}()

	s.logger.Info("started refresh token cleanup worker",
		zap.Duration("interval", s.config.RefreshToken.CleanupInterval))
}

func (s *Service) generateSecureToken() (string, error) {
	tokenBytes := make([]byte, s.config.RefreshToken.TokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(tokenBytes), nil
}

func (s *Service) hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func deviceName(userAgentString string) string {
	if userAgentString == "" {
		return ""
	}

	ua := useragent.Parse(userAgentString)
	if ua.Name == "" {
		return "Unknown"
	}

	device := ua.Name
	if ua.OS != "" {
		device += " on " + ua.OS
	}

	return device
}
