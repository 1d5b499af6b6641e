package models

import "time"

// User lifecycle statuses. ADMIN is seed-only and never assigned at runtime.
const (
	UserStatusPending  = "PENDING"
	UserStatusApproved = "APPROVED"
	UserStatusAdmin    = "ADMIN"
)

// User is a salesperson identified by their Telegram user ID. IDs are
// issued by the platform and never generated locally.
type User struct {
	ID               int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	FirstName        string    `gorm:"size:80;not null" json:"first_name"`
	Username         *string   `gorm:"size:80" json:"username,omitempty"`
	PhoneNumber      *string   `gorm:"size:20" json:"phone_number"`
	Status           string    `gorm:"size:20;not null;default:'PENDING'" json:"status"`
	PromoCode        *string   `gorm:"size:20;uniqueIndex" json:"promo_code,omitempty"`
	UnpaidCommission float64   `gorm:"type:decimal(15,2);not null;default:0" json:"unpaid_commission"`
	CreatedAt        time.Time `json:"created_at"`

	Orders []Order `gorm:"foreignKey:SalespersonID" json:"-"`
}

func (User) TableName() string {
	return "users"
}
