package model

import "time"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
	PurchaseCancelled PurchaseStatus = "cancelled"
)

type TemporaryPurchase struct {
	ID           int64          `json:"id"`
	RequestedBy  int64          `json:"requested_by"`
	RequestedFor int64          `json:"requested_for"`
	ItemName     string         `json:"item_name"`
	Description  string         `json:"description"`
	Priority     Priority       `json:"priority"`
	Status       PurchaseStatus `json:"status"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	CompletedBy  *int64         `json:"completed_by,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`

	RequesterName string `json:"requester_name,omitempty"`
	TargetName    string `json:"target_name,omitempty"`
}

func (p *TemporaryPurchase) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && !now.Before(*p.ExpiresAt)
}
