package audit

import (
	"time"
)

type Event struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	OccurredAt    time.Time `json:"occurred_at" gorm:"not null;index"`
	EventType     string    `json:"event_type" gorm:"size:64;not null;index"`
	Result        string    `json:"result" gorm:"size:16;not null"`
	UserID        *uint     `json:"user_id,omitempty" gorm:"index"`
	OriginAddress string    `json:"origin_address,omitempty" gorm:"size:64"`
	UserAgent     string    `json:"user_agent,omitempty" gorm:"size:512"`
	TraceID       string    `json:"trace_id,omitempty" gorm:"size:64"`
	CorrelationID string    `json:"correlation_id,omitempty" gorm:"size:64"`
	Details       string    `json:"details,omitempty" gorm:"size:1024"`
}

func (Event) TableName() string {
	return "audit_events"
}
