package testutils

import (
	"time"

	"github.com/AlessandroSilveira/PlanWriter-sub001/config"
	"golang.org/x/crypto/bcrypt"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "PlanWriter Test",
			URL:  "http://localhost:8080",
		},
		Auth: config.AuthConfig{
			MinLength:     8,
			RequireUpper:  true,
			RequireLower:  true,
			RequireNumber: true,
			BcryptCost:    bcrypt.MinCost,
		},
		JWT: config.JWTConfig{
			SecretKey:    "test-secret-key-32-chars-long!!",
			Issuer:       "test-issuer",
			AccessExpiry: 15 * time.Minute,
		},
		RefreshToken: config.RefreshTokenConfig{
			TokenLength:     64,
			Expiry:          30 * 24 * time.Hour,
			CleanupInterval: time.Hour,
			Retention:       90 * 24 * time.Hour,
		},
		Lockout: config.LockoutConfig{
			Threshold:    5,
			BaseDuration: time.Minute,
			MaxDuration:  10 * time.Minute,
		},
		MFA: config.MFAConfig{
			Issuer:        "PlanWriter Test",
			SecretSize:    20,
			DriftSteps:    1,
			PendingTTL:      15 * time.Minute,
			ReplayHorizon:   90 * time.Second,
			CleanupInterval: time.Hour,
		},
		BackupCodes: config.BackupCodesConfig{
			Count:  8,
			Length: 8,
		},
		Revocation: config.RevocationConfig{
			Enabled:       true,
			CleanupPeriod: time.Hour,
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    ":memory:",
		},
	}
}
