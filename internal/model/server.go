package model

import "time"

// Server is a community space. BoostCount and BoostLevel are materialized
// from the boosts currently assigned to it.
type Server struct {
	ID         string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name       string `gorm:"not null;type:varchar(100)" json:"name"`
	OwnerID    string `gorm:"index;not null;type:varchar(64)" json:"owner_id"`
	InviteCode string `gorm:"uniqueIndex;not null;type:varchar(32)" json:"invite_code"`
	BoostCount int    `gorm:"not null;default:0" json:"boost_count"`
	BoostLevel int    `gorm:"not null;default:0" json:"boost_level"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Server) TableName() string {
	return "servers"
}

type ServerMember struct {
	ID       string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ServerID string `gorm:"uniqueIndex:idx_server_members_pair;not null;type:varchar(64)" json:"server_id"`
	UserID   string `gorm:"uniqueIndex:idx_server_members_pair;index;not null;type:varchar(64)" json:"user_id"`
	IsAdmin  bool   `gorm:"not null" json:"is_admin"`

	JoinedAt time.Time `gorm:"not null" json:"joined_at"`
}

func (ServerMember) TableName() string {
	return "server_members"
}

type Role struct {
	ID       string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ServerID string `gorm:"uniqueIndex:idx_roles_server_name;not null;type:varchar(64)" json:"server_id"`
	Name     string `gorm:"uniqueIndex:idx_roles_server_name;not null;type:varchar(100)" json:"name"`
	Position int    `gorm:"not null;default:0" json:"position"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Role) TableName() string {
	return "roles"
}

type Category struct {
	ID       string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ServerID string `gorm:"uniqueIndex:idx_categories_server_name;not null;type:varchar(64)" json:"server_id"`
	Name     string `gorm:"uniqueIndex:idx_categories_server_name;not null;type:varchar(100)" json:"name"`
	Position int    `gorm:"not null;default:0" json:"position"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Category) TableName() string {
	return "categories"
}

const (
	ChannelTypeText = "text"
)

type Channel struct {
	ID         string  `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ServerID   string  `gorm:"index;not null;type:varchar(64)" json:"server_id"`
	CategoryID *string `gorm:"index;type:varchar(64)" json:"category_id"`
	Name       string  `gorm:"not null;type:varchar(100)" json:"name"`
	Type       string  `gorm:"not null;type:varchar(16)" json:"type"`
	IsPrivate  bool    `gorm:"not null" json:"is_private"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Channel) TableName() string {
	return "channels"
}

// ChannelPermission is an override row on a channel. A row with neither
// RoleID nor UserID applies to everyone on the server.
type ChannelPermission struct {
	ID        string  `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ChannelID string  `gorm:"index;not null;type:varchar(64)" json:"channel_id"`
	RoleID    *string `gorm:"index;type:varchar(64)" json:"role_id"`
	UserID    *string `gorm:"index;type:varchar(64)" json:"user_id"`
	CanView   bool    `gorm:"not null" json:"can_view"`
	CanSend   bool    `gorm:"not null" json:"can_send"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (ChannelPermission) TableName() string {
	return "channel_permissions"
}

// IsEveryone reports whether the override targets the whole server.
func (p ChannelPermission) IsEveryone() bool {
	return p.RoleID == nil && p.UserID == nil
}

// BoostLevelThresholds are the boost counts at which a server reaches level 1, 2 and 3.
var BoostLevelThresholds = []int{2, 7, 14}

// BoostLevel buckets a boost count into its tier.
func BoostLevel(count int) int {
	level := 0
	for _, threshold := range BoostLevelThresholds {
		if count < threshold {
			break
		}
		level++
	}
	return level
}
