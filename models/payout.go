package models

import "time"

// Payout is an immutable ledger entry written when an admin settles a
// salesperson's outstanding commission. Rows are never updated or
// deleted; the ledger is the audit trail for mark-paid actions.
type Payout struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"not null;index" json:"user_id"`
	Amount    float64   `gorm:"type:decimal(15,2);not null" json:"amount"`
	PaidBy    int64     `gorm:"not null" json:"paid_by"`
	CreatedAt time.Time `json:"created_at"`
}

func (Payout) TableName() string {
	return "payouts"
}
