package handlers

import (
	"errors"
	"net/http"

	jwtmw "github.com/AlessandroSilveira/PlanWriter-sub001/middleware/jwt"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/auth"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/clock"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/jwt"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/logging"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/refreshtoken"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/revocation"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type AuthHandler struct {
	auth       *auth.Service
	sessions   *refreshtoken.Service
	tokens     *jwt.Service
	revocation *revocation.Service
	clock      clock.Clock
	logger     *logging.Service
}

func NewAuthHandler(authService *auth.Service, sessions *refreshtoken.Service, tokens *jwt.Service, revocationService *revocation.Service, clk clock.Clock, logger *logging.Service) *AuthHandler {
	return &AuthHandler{
		auth:       authService,
		sessions:   sessions,
		tokens:     tokens,
		revocation: revocationService,
		clock:      clk,
		logger:     logger,
	}
}

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	MfaCode    string `json:"mfaCode,omitempty"`
	BackupCode string `json:"backupCode,omitempty"`
}

type loginResponse struct {
	AccessToken           string `json:"accessToken"`
	RefreshToken          string `json:"refreshToken"`
	AccessTokenExpiresIn  int    `json:"accessTokenExpiresInSeconds"`
	RefreshTokenExpiresAt string `json:"refreshTokenExpiresAtUtc"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	result, err := h.auth.Login(c.Request().Context(), auth.LoginRequest{
		Username:      req.Username,
		Password:      req.Password,
		MfaCode:       req.MfaCode,
		BackupCode:    req.BackupCode,
		OriginAddress: c.RealIP(),
		UserAgent:     c.Request().UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAccountLocked):
			// Locked is surfaced distinctly so the caller knows retrying
			// with the right password will not help.
			return echo.NewHTTPError(http.StatusLocked, "account temporarily locked")
		case errors.Is(err, auth.ErrMfaRequired):
			return echo.NewHTTPError(http.StatusUnauthorized, "mfa code required")
		case errors.Is(err, auth.ErrInvalidCredentials):
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		default:
			h.logger.Error("login failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	return c.JSON(http.StatusOK, loginResponse{
		AccessToken:           result.AccessToken,
		RefreshToken:          result.RefreshToken,
		AccessTokenExpiresIn:  result.AccessTokenExpiresIn,
		RefreshTokenExpiresAt: result.RefreshTokenExpiresAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	Device       string `json:"device,omitempty"`
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "refreshToken is required")
	}

	userAgent := req.Device
	if userAgent == "" {
		userAgent = c.Request().UserAgent()
	}

	result, err := h.sessions.Refresh(c.Request().Context(), req.RefreshToken, refreshtoken.SessionInfo{
		OriginAddress: c.RealIP(),
		UserAgent:     userAgent,
	}, h.tokens)
	if err != nil {
		// Every rotation failure collapses to one body; the audit trail
		// holds the precise reason.
		if errors.Is(err, refreshtoken.ErrSessionInvalid) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
		}
		h.logger.Error("refresh failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, loginResponse{
		AccessToken:           result.AccessToken,
		RefreshToken:          result.RefreshToken,
		AccessTokenExpiresIn:  result.AccessTokenExpiresIn,
		RefreshTokenExpiresAt: result.RefreshTokenExpiresAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Logout is idempotent: unknown or already-revoked tokens still get 200
// so the endpoint cannot be used to probe token validity.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req logoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.RefreshToken != "" {
		if err := h.sessions.Logout(c.Request().Context(), req.RefreshToken, refreshtoken.SessionInfo{
			OriginAddress: c.RealIP(),
			UserAgent:     c.Request().UserAgent(),
		}); err != nil {
			h.logger.Warn("logout did not complete cleanly", zap.Error(err))
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) LogoutAll(c echo.Context) error {
	userID := jwtmw.GetUserID(c)

	count, err := h.sessions.LogoutAll(c.Request().Context(), userID, refreshtoken.SessionInfo{
		OriginAddress: c.RealIP(),
		UserAgent:     c.Request().UserAgent(),
	})
	if err != nil {
		h.logger.Error("logout-all failed", zap.Error(err), zap.Uint("user_id", userID))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	// Outstanding access tokens die with the sessions.
	if h.revocation != nil {
		if err := h.revocation.RevokeAllUserTokens(userID, h.clock.Now()); err != nil {
			h.logger.Error("failed to revoke outstanding access tokens",
				zap.Error(err),
				zap.Uint("user_id", userID))
		}
	}

	return c.JSON(http.StatusOK, map[string]int64{"revokedCount": count})
}

func (h *AuthHandler) Sessions(c echo.Context) error {
	userID := jwtmw.GetUserID(c)

	sessions, err := h.sessions.ActiveSessions(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("failed to list sessions", zap.Error(err), zap.Uint("user_id", userID))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, map[string]any{"sessions": sessions})
}
