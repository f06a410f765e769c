package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App          AppConfig          `envPrefix:"PW_APP_"`
	Server       ServerConfig       `envPrefix:"PW_SERVER_"`
	Log          LogConfig          `envPrefix:"PW_LOG_"`
	Database     DatabaseConfig     `envPrefix:"PW_DATABASE_"`
	Auth         AuthConfig         `envPrefix:"PW_AUTH_"`
	JWT          JWTConfig          `envPrefix:"PW_JWT_"`
	RefreshToken RefreshTokenConfig `envPrefix:"PW_REFRESH_TOKEN_"`
	Lockout      LockoutConfig      `envPrefix:"PW_LOCKOUT_"`
	MFA          MFAConfig          `envPrefix:"PW_MFA_"`
	BackupCodes  BackupCodesConfig  `envPrefix:"PW_BACKUP_CODES_"`
	Revocation   RevocationConfig   `envPrefix:"PW_REVOCATION_"`
	Mail         MailConfig         `envPrefix:"PW_MAIL_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"PlanWriter"`
	URL  string `env:"URL" envDefault:"http://localhost:8080"`
}

type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Host string `env:"HOST" envDefault:"localhost"`
}

type LogConfig struct {
	Level      string `env:"LEVEL" envDefault:"info"`
	Format     string `env:"FORMAT" envDefault:"json"`
	OutputPath string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"planwriter.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type AuthConfig struct {
	MinLength      int  `env:"MIN_LENGTH" envDefault:"8"`
	RequireUpper   bool `env:"REQUIRE_UPPER" envDefault:"true"`
	RequireLower   bool `env:"REQUIRE_LOWER" envDefault:"true"`
	RequireNumber  bool `env:"REQUIRE_NUMBER" envDefault:"true"`
	RequireSpecial bool `env:"REQUIRE_SPECIAL" envDefault:"false"`
	BcryptCost     int  `env:"BCRYPT_COST" envDefault:"12"`
}

type JWTConfig struct {
	SecretKey    string        `env:"SECRET_KEY"`
	Issuer       string        `env:"ISSUER" envDefault:"planwriter"`
	AccessExpiry time.Duration `env:"ACCESS_EXPIRY" envDefault:"15m"`
}

type RefreshTokenConfig struct {
	TokenLength     int           `env:"TOKEN_LENGTH" envDefault:"64"`
	Expiry          time.Duration `env:"EXPIRY" envDefault:"720h"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
	Retention       time.Duration `env:"RETENTION" envDefault:"2160h"`
}

type LockoutConfig struct {
	Threshold    int           `env:"THRESHOLD" envDefault:"5"`
	BaseDuration time.Duration `env:"BASE_DURATION" envDefault:"1m"`
	MaxDuration  time.Duration `env:"MAX_DURATION" envDefault:"10m"`
}

type MFAConfig struct {
	Issuer        string        `env:"ISSUER" envDefault:"PlanWriter"`
	SecretSize    int           `env:"SECRET_SIZE" envDefault:"20"`
	DriftSteps    int           `env:"DRIFT_STEPS" envDefault:"1"`
	PendingTTL      time.Duration `env:"PENDING_TTL" envDefault:"15m"`
	ReplayHorizon   time.Duration `env:"REPLAY_HORIZON" envDefault:"90s"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
}

type BackupCodesConfig struct {
	Count  int `env:"COUNT" envDefault:"8"`
	Length int `env:"LENGTH" envDefault:"8"`
}

type RevocationConfig struct {
	Enabled       bool          `env:"ENABLED" envDefault:"true"`
	CleanupPeriod time.Duration `env:"CLEANUP_PERIOD" envDefault:"1h"`
}

type MailConfig struct {
	Enabled     bool   `env:"ENABLED" envDefault:"false"`
	Host        string `env:"HOST" envDefault:"localhost"`
	Port        int    `env:"PORT" envDefault:"587"`
	Username    string `env:"USERNAME"`
	Password    string `env:"PASSWORD"`
	Encryption  string `env:"ENCRYPTION" envDefault:"starttls"`
	FromAddress string `env:"FROM_ADDRESS"`
	FromName    string `env:"FROM_NAME" envDefault:"PlanWriter Security"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	return env.Parse(cfg)
}
