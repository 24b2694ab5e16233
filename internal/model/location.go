package model

import "time"

type Location struct {
	ID        int64     `json:"id"`
	Name      string    `json:"location_name"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Member struct {
	ID         int64     `json:"id"`
	LocationID int64     `json:"location_id"`
	UserID     int64     `json:"user_id"`
	JoinedAt   time.Time `json:"joined_at"`
}

// MemberProfile is a membership row joined with the member's user record.
type MemberProfile struct {
	Member
	UserName  string `json:"user_name"`
	Email     string `json:"email"`
	IsCreator bool   `json:"is_creator"`
}

// LocationDetail is everything a member sees for one location.
type LocationDetail struct {
	Location
	Items   []Item          `json:"items"`
	Members []MemberProfile `json:"members"`
}
