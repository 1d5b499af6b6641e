package models

import "time"

// Order statuses. Transitions are forward-only: PENDING may move to
// COMPLETED or CANCELLED exactly once and is never reversed.
const (
	OrderStatusPending   = "PENDING"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
)

// Order records a logged sale. Product name and price are snapshots
// taken at sale time so later catalog edits never alter history.
// ProductID references the catalog row the sale consumed and is nil for
// ad-hoc sales; restock on rejection goes through this reference.
type Order struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	SalespersonID    int64     `gorm:"not null;index" json:"salesperson_id"`
	ProductID        *uint     `gorm:"index" json:"product_id,omitempty"`
	ProductName      string    `gorm:"size:120;not null" json:"product_name"`
	ProductPrice     float64   `gorm:"type:decimal(15,2);not null" json:"product_price"`
	CustomerName     string    `gorm:"size:120;not null" json:"customer_name"`
	CustomerPhone    string    `gorm:"size:20;not null" json:"customer_phone"`
	Status           string    `gorm:"size:20;not null;default:'PENDING'" json:"status"`
	CommissionEarned float64   `gorm:"type:decimal(15,2);not null" json:"commission_earned"`
	CreatedAt        time.Time `json:"created_at"`

	Salesperson *User `gorm:"foreignKey:SalespersonID" json:"-"`
}

func (Order) TableName() string {
	return "orders"
}
