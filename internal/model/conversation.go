package model

import "time"

// Conversation is the single thread between one buyer and one seller about one
// listing. The unique index over (listing_id, buyer_uid) is what makes the
// resolver's find-or-create safe under concurrent callers.
type Conversation struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ListingID uint64    `gorm:"column:listing_id;index:idx_listing_buyer,unique" json:"listingId"`
	SellerUID string    `gorm:"column:seller_uid;size:128;index" json:"sellerUid"`
	BuyerUID  string    `gorm:"column:buyer_uid;size:128;index:idx_listing_buyer,unique" json:"buyerUid"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;index" json:"updatedAt"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Participant reports whether uid is the buyer or the seller.
func (c *Conversation) Participant(uid string) bool {
	return uid != "" && (c.BuyerUID == uid || c.SellerUID == uid)
}

// Counterpart returns the other participant's uid.
func (c *Conversation) Counterpart(uid string) string {
	if c.BuyerUID == uid {
		return c.SellerUID
	}
	return c.BuyerUID
}
