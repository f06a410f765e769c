package audit

import (
	"context"

	"github.com/AlessandroSilveira/PlanWriter-sub001/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

const (
	EventLoginSucceeded       = "login_succeeded"
	EventLoginFailed          = "login_failed"
	EventLoginLocked          = "login_locked"
	EventSessionIssued        = "session_issued"
	EventSessionRotated       = "session_rotated"
	EventSessionReuseDetected = "session_reuse_detected"
	EventSessionExpired       = "session_expired"
	EventSessionNotFound      = "session_not_found"
	EventLogout               = "logout"
	EventLogoutAll            = "logout_all"
	EventMfaEnrollmentStarted = "mfa_enrollment_started"
	EventMfaEnabled           = "mfa_enabled"
	EventMfaValidated         = "mfa_validated"
	EventMfaFailed            = "mfa_failed"
	EventBackupCodeConsumed   = "backup_code_consumed"
	EventBackupCodesReplaced  = "backup_codes_replaced"
)

// Sink receives security events. Recording is best-effort: a sink must
// never block the security decision that produced the event.
type Sink interface {
	Record(ctx context.Context, event Event)
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Record(context.Context, Event) {}

// DBSink persists events through a buffered channel and a single
// writer goroutine. When the buffer is full the event is dropped and
// a warning logged; callers are never blocked.
type DBSink struct {
	db     *gorm.DB
	logger *logging.Service
	events chan Event
	done   chan struct{}
}

func NewDBSink(db *gorm.DB, logger *logging.Service, buffer int) *DBSink {
	if buffer <= 0 {
		buffer = 256
	}

	s := &DBSink{
		db:     db,
		logger: logger,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}

	go s.run()

	return s
}

func (s *DBSink) Record(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	default:
		s.logger.Warn("audit event dropped - buffer full",
			zap.String("event_type", event.EventType))
	}
}

func (s *DBSink) run() {
	for event := range s.events {
		if err := s.db.Create(&event).Error; err != nil {
			s.logger.Error("failed to persist audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType))
		}
	}
	close(s.done)
}

// Close drains the buffer and stops the writer.
func (s *DBSink) Close() {
	close(s.events)
	<-s.done
}
