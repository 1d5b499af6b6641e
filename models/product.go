package models

// Product is a catalog item. Quantity never goes negative: it is
// decremented once per inventory-backed sale and incremented once if
// that sale is later rejected.
type Product struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Name     string  `gorm:"size:120;not null" json:"name"`
	Price    float64 `gorm:"type:decimal(15,2);not null" json:"price"`
	Quantity int     `gorm:"not null" json:"quantity"`
	Specs    string  `gorm:"size:500" json:"specs"`
}

func (Product) TableName() string {
	return "products"
}
