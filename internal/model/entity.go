package model

import "time"

type Operation string

const (
	OperationCreate Operation = "ticket.created"
	OperationUpdate Operation = "ticket.updated"
	OperationReply  Operation = "ticket.replied"
)

// Activity is one row of the mutating-operation log. Tickets themselves are never stored locally.
type Activity struct {
	ID         uint64    `gorm:"primaryKey" json:"id"`
	Operation  Operation `gorm:"type:varchar(32);index;not null" json:"operation"`
	TicketID   int64     `gorm:"index" json:"ticket_id,omitempty"`
	Email      string    `gorm:"type:varchar(255);index;not null" json:"email"`
	UserID     string    `gorm:"type:varchar(64);index" json:"user_id,omitempty"`
	StatusCode int       `gorm:"not null" json:"status_code"`
	RequestID  string    `gorm:"type:varchar(64)" json:"request_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (Activity) TableName() string {
	return "ticket_activities"
}
