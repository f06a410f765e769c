package refreshtoken

import (
	"time"
)

const (
	ReasonRotated       = "Rotated"
	ReasonLogout        = "LogoutCurrentSession"
	ReasonLogoutAll     = "LogoutAllSessions"
	ReasonReuseDetected = "RefreshTokenReuseDetected"
)

// RefreshToken is one issued refresh token. Rows are never deleted
// inside the retention window: the parent/replaced-by chain is the
// forensic record of each session family.
type RefreshToken struct {
	ID            string     `json:"id" gorm:"primaryKey;size:36"`
	UserID        uint       `json:"user_id" gorm:"not null;index"`
	FamilyID      string     `json:"family_id" gorm:"size:36;not null;index"`
	ParentID      *string    `json:"parent_id,omitempty" gorm:"size:36"`
	ReplacedByID  *string    `json:"replaced_by_id,omitempty" gorm:"size:36"`
	TokenHash     string     `json:"-" gorm:"uniqueIndex;size:64;not null"`
	Device        string     `json:"device" gorm:"size:255"`
	CreatedByIP   string     `json:"created_by_ip" gorm:"size:64"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at" gorm:"not null;index"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty" gorm:"index"`
	RevokedReason string     `json:"revoked_reason,omitempty" gorm:"size:64"`
}

func (RefreshToken) TableName() string {
	return "refresh_token_sessions"
}

func (rt *RefreshToken) Revoked() bool {
	return rt.RevokedAt != nil
}

// SessionInfo carries request metadata stamped onto new session rows.
type SessionInfo struct {
	OriginAddress string
	UserAgent     string
}

// SessionData is the result of issuing a brand-new session.
type SessionData struct {
	Token     string
	SessionID string
	FamilyID  string
	ExpiresAt time.Time
}

// RotationResult is the outward shape of a successful refresh.
type RotationResult struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresIn  int
	RefreshTokenExpiresAt time.Time
	SessionID             string
	UserID                uint
}
