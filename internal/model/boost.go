package model

import "time"

// Boost is one entitlement slot. ServerID nil means the boost sits in the
// owner's inventory. (MembershipID, Slot) is unique so a retried grant batch
// cannot mint extra boosts.
type Boost struct {
	ID           string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OwnerID      string     `gorm:"index;not null;type:varchar(64)" json:"owner_id"`
	MembershipID string     `gorm:"uniqueIndex:idx_boosts_membership_slot;not null;type:varchar(64)" json:"membership_id"`
	Slot         int        `gorm:"uniqueIndex:idx_boosts_membership_slot;not null" json:"slot"`
	ServerID     *string    `gorm:"index;type:varchar(64)" json:"server_id"`
	AssignedAt   *time.Time `json:"assigned_at"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Boost) TableName() string {
	return "boosts"
}

func (b Boost) IsAssigned() bool {
	return b.ServerID != nil
}
