package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/AlessandroSilveira/PlanWriter-sub001/config"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/clock"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/logging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken     = errors.New("invalid access token")
	ErrExpiredToken     = errors.New("access token has expired")
	ErrMalformedToken   = errors.New("malformed access token")
	ErrInvalidSignature = errors.New("invalid access token signature")
	ErrTokenRevoked     = errors.New("access token has been revoked")
)

type Claims struct {
	UserID uint   `json:"user_id"`
	JTI    string `json:"jti"`
	jwt.RegisteredClaims
}

// RevocationService is consulted on validation so logout-all can kill
// outstanding access tokens before they expire.
type RevocationService interface {
	IsJTIRevoked(jti string, userID uint, issuedAt time.Time) (bool, error)
}

type Service struct {
	config            *config.Config
	clock             clock.Clock
	logger            *logging.Service
	revocationService RevocationService
}

func NewService(cfg *config.Config, clk clock.Clock, logger *logging.Service) *Service {
	return &Service{
		config: cfg,
		clock:  clk,
		logger: logger,
	}
}

func (s *Service) SetRevocationService(revocationService RevocationService) {
	s.revocationService = revocationService
}

func (s *Service) AccessExpirySeconds() int {
	return int(s.config.JWT.AccessExpiry.Seconds())
}

func (s *Service) GenerateToken(userID uint) (string, error) {
	now := s.clock.Now()
	jti := uuid.New().String()
	claims := Claims{
		UserID: userID,
		JTI:    jti,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.config.JWT.Issuer,
			Subject:   fmt.Sprintf("%d", userID),
			Audience:  []string{s.config.JWT.Issuer},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.JWT.AccessExpiry)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.JWT.SecretKey))
	if err != nil {
		s.logger.Error("failed to sign access token", zap.Error(err))
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return tokenString, nil
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() == "none" {
			return nil, errors.New("'none' algorithm is not allowed")
		}

		if token.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unexpected algorithm: expected HS256, got %s", token.Method.Alg())
		}

		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid algorithm family: %v", token.Header["alg"])
		}

		return []byte(s.config.JWT.SecretKey), nil
	}, jwt.WithTimeFunc(s.clock.Now))

	if err != nil {
		s.logger.Warn("access token validation failed", zap.Error(err))

		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedToken
		case errors.Is(err, jwt.ErrSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if s.revocationService != nil {
		issuedAt := time.Time{}
		if claims.IssuedAt != nil {
			issuedAt = claims.IssuedAt.Time
		}

		revoked, err := s.revocationService.IsJTIRevoked(claims.JTI, claims.UserID, issuedAt)
		if err != nil {
			s.logger.Error("failed to check token revocation status", zap.Error(err))
		} else if revoked {
			s.logger.Warn("access token validation failed - token revoked",
				zap.Uint("user_id", claims.UserID))
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}

func (s *Service) ExtractJTI(tokenString string) (string, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	return claims.JTI, nil
}
