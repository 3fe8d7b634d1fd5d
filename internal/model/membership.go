package model

import (
	"time"

	"gorm.io/datatypes"
)

// MembershipTier is a purchasable catalog entry. Prices are kept in minor
// units (paise and cents).
type MembershipTier struct {
	ID                  string                      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name                string                      `gorm:"uniqueIndex;not null;type:varchar(64)" json:"name"`
	PriceINRPaise       int64                       `gorm:"not null" json:"price_inr_paise"`
	PriceUSDCents       int64                       `gorm:"not null" json:"price_usd_cents"`
	Description         string                      `gorm:"type:text" json:"description"`
	Features            datatypes.JSONSlice[string] `json:"features"`
	GrantsInitialBoosts bool                        `gorm:"not null" json:"grants_initial_boosts"`
	InitialBoostCount   int                         `gorm:"not null;default:0" json:"initial_boost_count"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (MembershipTier) TableName() string {
	return "membership_tiers"
}

// InitialBoosts is the number of boosts a grant of this tier hands out.
func (t MembershipTier) InitialBoosts() int {
	if !t.GrantsInitialBoosts || t.InitialBoostCount < 0 {
		return 0
	}
	return t.InitialBoostCount
}

type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "active"
	MembershipCanceled MembershipStatus = "canceled"
)

// MembershipMetadata holds client-facing markers. Nil fields are unset.
type MembershipMetadata struct {
	WelcomeShownAt      *time.Time `json:"welcome_shown_at,omitempty"`
	ExpiryNoticeShownAt *time.Time `json:"expiry_notice_shown_at,omitempty"`
}

// Merge applies patch on top of m: every field set in patch wins.
func (m MembershipMetadata) Merge(patch MembershipMetadata) MembershipMetadata {
	if patch.WelcomeShownAt != nil {
		m.WelcomeShownAt = patch.WelcomeShownAt
	}
	if patch.ExpiryNoticeShownAt != nil {
		m.ExpiryNoticeShownAt = patch.ExpiryNoticeShownAt
	}
	return m
}

// IsEmpty reports whether no marker is set.
func (m MembershipMetadata) IsEmpty() bool {
	return m.WelcomeShownAt == nil && m.ExpiryNoticeShownAt == nil
}

// Membership is a ledger entry. At most one row per user has status active;
// the partial unique index enforces it at the storage level.
type Membership struct {
	ID        string                                 `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID    string                                 `gorm:"not null;type:varchar(64);index:idx_memberships_user;uniqueIndex:idx_memberships_one_active,where:status = 'active'" json:"user_id"`
	TierID    string                                 `gorm:"not null;type:varchar(64);index" json:"tier_id"`
	Status    MembershipStatus                       `gorm:"not null;type:varchar(16);index" json:"status"`
	StartedAt time.Time                              `gorm:"not null" json:"started_at"`
	ExpiresAt *time.Time                             `json:"expires_at"`
	Metadata  datatypes.JSONType[MembershipMetadata] `json:"metadata"`

	Tier *MembershipTier `gorm:"foreignKey:TierID" json:"tier,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Membership) TableName() string {
	return "memberships"
}

// IsActiveAt reports whether the entry is in force at now. Expiry is never
// written back to Status; it is evaluated on read.
func (m Membership) IsActiveAt(now time.Time) bool {
	if m.Status != MembershipActive {
		return false
	}
	return m.ExpiresAt == nil || m.ExpiresAt.After(now)
}
