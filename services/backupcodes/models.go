package backupcodes

import (
	"time"
)

// BackupCode stores one recovery credential. Only the SHA-256 hash of
// the normalized code is persisted; the plaintext is shown exactly
// once at generation time.
type BackupCode struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	UserID    uint       `json:"user_id" gorm:"not null;index"`
	CodeHash  string     `json:"-" gorm:"size:64;not null;index"`
	IsUsed    bool       `json:"is_used" gorm:"not null;default:false"`
	CreatedAt time.Time  `json:"created_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

func (BackupCode) TableName() string {
	return "backup_codes"
}
