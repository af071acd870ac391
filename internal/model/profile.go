package model

import "time"

// Profile carries the public subset of a user's profile. The profile
// subsystem owns the full row; only safe-to-show columns are mapped here.
type Profile struct {
	UID         string    `gorm:"column:uid;size:128;primaryKey" json:"uid"`
	DisplayName string    `gorm:"column:display_name;size:120" json:"displayName"`
	AvatarURL   *string   `gorm:"column:avatar_url;size:512" json:"avatarUrl,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Profile) TableName() string {
	return "profiles"
}
