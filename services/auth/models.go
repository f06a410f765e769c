package auth

import (
	"time"
)

// User is the authentication view of an account. Profile data (display
// name, goals, project membership) lives with the CRUD layer and is
// not part of this subsystem.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"uniqueIndex;size:64;not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"`
	IsAdmin      bool      `json:"is_admin" gorm:"not null;default:false"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// LoginRequest carries one credential attempt. MfaCode and BackupCode
// are alternatives for the second factor; at most one is consulted.
type LoginRequest struct {
	Username      string
	Password      string
	MfaCode       string
	BackupCode    string
	OriginAddress string
	UserAgent     string
}

type LoginResult struct {
	User                  *User
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresIn  int
	RefreshTokenExpiresAt time.Time
}
