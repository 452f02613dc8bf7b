package models

import "time"

type AttemptType string

const (
	AttemptLogin       AttemptType = "LOGIN"
	AttemptContact     AttemptType = "CONTACT"
	AttemptTestimonial AttemptType = "TESTIMONIAL"
)

func (AttemptType) EnumValues() []any {
	return []any{string(AttemptLogin), string(AttemptContact), string(AttemptTestimonial)}
}

type FailedAttempt struct {
	ID        uint        `json:"id" gorm:"primaryKey"`
	Type      AttemptType `json:"type" gorm:"size:16;not null;index"`
	IP        string      `json:"ip" gorm:"size:64;index"`
	UserAgent string      `json:"userAgent" gorm:"size:500"`
	Client    string      `json:"client" gorm:"size:120"`
	Reason    string      `json:"reason" gorm:"size:255"`
	CreatedAt time.Time   `json:"createdAt" gorm:"index"`
}

func (FailedAttempt) TableName() string {
	return "failed_attempts"
}

// All returns every model the API persists, in migration order.
func All() []any {
	return []any{&Account{}, &FailedAttempt{}}
}
