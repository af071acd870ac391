package model

import "time"

// Listing is owned by the listings subsystem; the messaging core reads it to
// resolve the seller and to denormalize title/price into conversation views.
type Listing struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SellerUID   string    `gorm:"column:seller_uid;size:128;index;not null" json:"sellerUid"`
	Title       string    `gorm:"size:120;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Price       uint      `gorm:"not null" json:"price"`
	ImageURL    *string   `gorm:"size:512" json:"imageUrl,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Listing) TableName() string {
	return "listings"
}
