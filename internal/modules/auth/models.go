package auth

import "time"

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

type User struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	Email           string     `gorm:"size:255;not null;uniqueIndex:ux_users_email" json:"email"`
	PasswordHash    string     `gorm:"size:255;not null" json:"-"`
	Name            string     `gorm:"size:120;not null;default:''" json:"name"`
	Role            string     `gorm:"size:20;not null;default:customer;index:ix_users_role" json:"role"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"` // set once the address is confirmed
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

func (u User) EmailVerified() bool { return u.EmailVerifiedAt != nil }

// Session is a database-backed login session. The cookie carries the raw
// token; only its sha256 is stored.
type Session struct {
	ID         string    `gorm:"primaryKey;size:36"`
	UserID     string    `gorm:"size:36;not null;index:ix_sessions_user_id"`
	TokenHash  string    `gorm:"size:64;not null;uniqueIndex:ux_sessions_token_hash"`
	ExpiresAt  time.Time `gorm:"not null;index:ix_sessions_expires_at"`
	LastSeenAt time.Time `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Session) TableName() string { return "sessions" }
