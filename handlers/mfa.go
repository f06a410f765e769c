package handlers

import (
	"errors"
	"net/http"

	jwtmw "github.com/AlessandroSilveira/PlanWriter-sub001/middleware/jwt"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/audit"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/auth"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/backupcodes"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/clock"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/logging"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/totp"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type MfaHandler struct {
	auth   *auth.Service
	mfa    *totp.Service
	backup *backupcodes.Service
	sink   audit.Sink
	clock  clock.Clock
	logger *logging.Service
}

func NewMfaHandler(authService *auth.Service, mfa *totp.Service, backup *backupcodes.Service, sink audit.Sink, clk clock.Clock, logger *logging.Service) *MfaHandler {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &MfaHandler{
		auth:   authService,
		mfa:    mfa,
		backup: backup,
		sink:   sink,
		clock:  clk,
		logger: logger,
	}
}

// RequireAdmin gates the MFA management surface to privileged accounts.
func (h *MfaHandler) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := h.auth.GetUserByID(c.Request().Context(), jwtmw.GetUserID(c))
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}
		if !user.IsAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "admin account required")
		}
		c.Set("_user", user)
		return next(c)
	}
}

func currentUser(c echo.Context) *auth.User {
	user, _ := c.Get("_user").(*auth.User)
	return user
}

func (h *MfaHandler) Enroll(c echo.Context) error {
	user := currentUser(c)

	enrollment, err := h.mfa.BeginEnrollment(c.Request().Context(), user.ID, user.Email)
	if err != nil {
		if errors.Is(err, totp.ErrAlreadyEnabled) {
			return echo.NewHTTPError(http.StatusConflict, "mfa is already enabled")
		}
		h.logger.Error("mfa enrollment failed", zap.Error(err), zap.Uint("user_id", user.ID))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.record(c, audit.EventMfaEnrollmentStarted, audit.ResultSuccess, user.ID)

	return c.JSON(http.StatusOK, map[string]string{
		"pendingSecret": enrollment.Secret,
		"otpAuthUri":    enrollment.OtpAuthURI,
	})
}

type codeRequest struct {
	Code string `json:"code"`
}

func (h *MfaHandler) ConfirmEnrollment(c echo.Context) error {
	user := currentUser(c)

	var req codeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code is required")
	}

	if err := h.mfa.ConfirmEnrollment(c.Request().Context(), user.ID, req.Code); err != nil {
		switch {
		case errors.Is(err, totp.ErrEnrollmentMissing):
			return echo.NewHTTPError(http.StatusBadRequest, "no pending enrollment")
		case errors.Is(err, totp.ErrEnrollmentExpired):
			return echo.NewHTTPError(http.StatusBadRequest, "enrollment expired, restart it")
		case errors.Is(err, totp.ErrCodeInvalid):
			h.record(c, audit.EventMfaFailed, audit.ResultFailure, user.ID)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid code")
		default:
			h.logger.Error("mfa confirmation failed", zap.Error(err), zap.Uint("user_id", user.ID))
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	h.record(c, audit.EventMfaEnabled, audit.ResultSuccess, user.ID)

	return c.JSON(http.StatusOK, map[string]string{"message": "mfa enabled"})
}

type validateRequest struct {
	Code       string `json:"code,omitempty"`
	BackupCode string `json:"backupCode,omitempty"`
}

func (h *MfaHandler) Validate(c echo.Context) error {
	user := currentUser(c)

	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	switch {
	case req.Code != "":
		if err := h.mfa.VerifyUserCode(c.Request().Context(), user.ID, req.Code); err != nil {
			h.record(c, audit.EventMfaFailed, audit.ResultFailure, user.ID)
			// Wrong code and replayed code surface identically.
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid code")
		}
		h.record(c, audit.EventMfaValidated, audit.ResultSuccess, user.ID)
	case req.BackupCode != "":
		if err := h.backup.Consume(c.Request().Context(), user.ID, req.BackupCode); err != nil {
			h.record(c, audit.EventMfaFailed, audit.ResultFailure, user.ID)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid code")
		}
		h.record(c, audit.EventBackupCodeConsumed, audit.ResultSuccess, user.ID)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "code or backupCode is required")
	}

	return c.JSON(http.StatusOK, map[string]bool{"valid": true})
}

func (h *MfaHandler) RegenerateBackupCodes(c echo.Context) error {
	user := currentUser(c)

	codes, err := h.backup.Replace(c.Request().Context(), user.ID)
	if err != nil {
		h.logger.Error("backup code regeneration failed", zap.Error(err), zap.Uint("user_id", user.ID))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.record(c, audit.EventBackupCodesReplaced, audit.ResultSuccess, user.ID)

	// Plaintext appears in this response and nowhere else.
	return c.JSON(http.StatusOK, map[string]any{"backupCodes": codes})
}

func (h *MfaHandler) Disable(c echo.Context) error {
	user := currentUser(c)

	if err := h.mfa.Disable(c.Request().Context(), user.ID); err != nil {
		h.logger.Error("mfa disable failed", zap.Error(err), zap.Uint("user_id", user.ID))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if err := h.backup.RemoveAll(c.Request().Context(), user.ID); err != nil {
		h.logger.Error("backup code removal failed", zap.Error(err), zap.Uint("user_id", user.ID))
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "mfa disabled"})
}

func (h *MfaHandler) record(c echo.Context, eventType, result string, userID uint) {
	h.sink.Record(c.Request().Context(), audit.Event{
		OccurredAt:    h.clock.Now(),
		EventType:     eventType,
		Result:        result,
		UserID:        &userID,
		OriginAddress: c.RealIP(),
		UserAgent:     c.Request().UserAgent(),
	})
}
