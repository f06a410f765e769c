package mail

import (
	"context"
	"time"

	"github.com/AlessandroSilveira/PlanWriter-sub001/services/auth"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReuseNotifier bridges reuse detections to the mail service. It runs
// outside the request path, so failures are logged and swallowed.
type ReuseNotifier struct {
	db      *gorm.DB
	mail    *Service
	logger  *logging.Service
	timeout time.Duration
}

func NewReuseNotifier(db *gorm.DB, mailService *Service, logger *logging.Service) *ReuseNotifier {
	return &ReuseNotifier{
		db:      db,
		mail:    mailService,
		logger:  logger,
		timeout: 10 * time.Second,
	}
}

func (n *ReuseNotifier) NotifyTokenReuse(userID uint, device, originAddress string) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	var user auth.User
	if err := n.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		n.logger.Error("reuse alert skipped, user lookup failed",
			zap.Error(err),
			zap.Uint("user_id", userID))
		return
	}

	if err := n.mail.SendReuseAlert(user.Email, device, originAddress); err != nil {
		n.logger.Error("reuse alert delivery failed",
			zap.Error(err),
			zap.Uint("user_id", userID))
	}
}
