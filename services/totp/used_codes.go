package totp

// UsedCode records a successfully verified code so it cannot be
// replayed within its validity horizon.
type UsedCode struct {
	ID     uint   `gorm:"primaryKey"`
	UserID uint   `gorm:"index:idx_user_code,priority:1;not null"`
	Code   string `gorm:"index:idx_user_code,priority:2;size:8;not null"`
	UsedAt int64  `gorm:"index:idx_used_at;not null"`
}

func (UsedCode) TableName() string {
	return "mfa_used_codes"
}
