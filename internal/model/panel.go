package model

import "time"

// Panel gates a private channel behind membership and role access.
type Panel struct {
	ID        string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OwnerID   string `gorm:"index;not null;type:varchar(64)" json:"owner_id"`
	ServerID  string `gorm:"uniqueIndex:idx_panels_server_slug;not null;type:varchar(64)" json:"server_id"`
	ChannelID string `gorm:"not null;type:varchar(64)" json:"channel_id"`
	Name      string `gorm:"not null;type:varchar(100)" json:"name"`
	Slug      string `gorm:"uniqueIndex:idx_panels_server_slug;not null;type:varchar(64)" json:"slug"`

	RoleAccess []PanelRoleAccess `gorm:"foreignKey:PanelID" json:"role_access,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Panel) TableName() string {
	return "panels"
}

type PanelRoleAccess struct {
	ID        string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	PanelID   string `gorm:"uniqueIndex:idx_panel_role_access_pair;not null;type:varchar(64)" json:"panel_id"`
	RoleID    string `gorm:"uniqueIndex:idx_panel_role_access_pair;not null;type:varchar(64)" json:"role_id"`
	CanView   bool   `gorm:"not null" json:"can_view"`
	CanManage bool   `gorm:"not null" json:"can_manage"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (PanelRoleAccess) TableName() string {
	return "panel_role_access"
}

// All returns every model in migration order.
func All() []any {
	return []any{
		&Server{},
		&ServerMember{},
		&Role{},
		&Category{},
		&Channel{},
		&ChannelPermission{},
		&MembershipTier{},
		&Membership{},
		&Boost{},
		&Panel{},
		&PanelRoleAccess{},
	}
}
