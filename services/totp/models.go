package totp

import (
	"time"
)

// MfaSettings holds one user's TOTP state. The lifecycle is
// Disabled -> Pending (enrollment issued) -> Enabled (first valid code
// against the pending secret commits it).
type MfaSettings struct {
	ID                 uint       `json:"id" gorm:"primaryKey"`
	UserID             uint       `json:"user_id" gorm:"uniqueIndex;not null"`
	Enabled            bool       `json:"enabled" gorm:"not null;default:false"`
	Secret             string     `json:"-" gorm:"size:64"`
	PendingSecret      string     `json:"-" gorm:"size:64"`
	PendingGeneratedAt *time.Time `json:"pending_generated_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (MfaSettings) TableName() string {
	return "mfa_settings"
}

// Enrollment is returned when enrollment begins: the pending secret
// and the otpauth:// URI the authenticator app consumes.
type Enrollment struct {
	Secret     string
	OtpAuthURI string
}
