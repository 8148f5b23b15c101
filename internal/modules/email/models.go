package email

import "time"

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Outbox is one queued message. Rows are written in the same transaction as
// the business change that triggers them and delivered by the Worker.
type Outbox struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	To            string     `gorm:"column:to_addr;size:255;not null" json:"to"`
	Template      string     `gorm:"size:64" json:"template,omitempty"`
	Subject       string     `gorm:"size:255;not null" json:"subject"`
	TextBody      string     `gorm:"type:text" json:"text_body"`
	HTMLBody      string     `gorm:"column:html_body;type:text" json:"html_body"`
	Status        string     `gorm:"size:16;not null;index:ix_email_outbox_due,priority:1" json:"status"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	LastError     *string    `gorm:"size:1024" json:"last_error,omitempty"`
	NextAttemptAt time.Time  `gorm:"not null;index:ix_email_outbox_due,priority:2" json:"next_attempt_at"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Outbox) TableName() string { return "email_outbox" }

func Models() []any { return []any{&Outbox{}} }
