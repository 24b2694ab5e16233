package model

import "time"

type User struct {
	ID              int64      `json:"id"`
	Email           string     `json:"email"`
	UserName        string     `json:"user_name"`
	UserDescription string     `json:"user_description"`
	LineUserID      *string    `json:"line_user_id,omitempty"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	LastActivityAt  *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (u *User) LineLinked() bool {
	return u.LineUserID != nil && *u.LineUserID != ""
}

type BanEntry struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
