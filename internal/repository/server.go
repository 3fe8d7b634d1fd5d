package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/bytehub/internal/model"
)

// IServerRepository defines the data operations for servers, their members,
// roles and channel layout
type IServerRepository interface {
	Create(ctx context.Context, server *model.Server) error
	FindByID(ctx context.Context, id string) (*model.Server, error)
	FindByIDForUpdate(ctx context.Context, id string) (*model.Server, error)
	FindByInviteCode(ctx context.Context, code string) (*model.Server, error)
	InviteCodeExists(ctx context.Context, code string) (bool, error)
	UpdateBoostAggregate(ctx context.Context, id string, count, level int) error

	AddMember(ctx context.Context, member *model.ServerMember) error
	FindMember(ctx context.Context, serverID, userID string) (*model.ServerMember, error)
	ListMembers(ctx context.Context, serverID string) ([]*model.ServerMember, error)
	SetMemberAdmin(ctx context.Context, serverID, userID string, isAdmin bool) error

	CreateRole(ctx context.Context, role *model.Role) error
	FindRolesByIDs(ctx context.Context, serverID string, ids []string) ([]*model.Role, error)
	ListRoles(ctx context.Context, serverID string) ([]*model.Role, error)

	FindCategoryByName(ctx context.Context, serverID, name string) (*model.Category, error)
	CreateCategory(ctx context.Context, category *model.Category) error
	CreateChannel(ctx context.Context, channel *model.Channel) error
	FindChannel(ctx context.Context, id string) (*model.Channel, error)
	CreateChannelPermissions(ctx context.Context, perms []*model.ChannelPermission) error
	ListChannelPermissions(ctx context.Context, channelID string) ([]*model.ChannelPermission, error)
}

type ServerRepository struct {
	db *gorm.DB
}

func NewServerRepository(db *gorm.DB) IServerRepository {
	return &ServerRepository{db: db}
}

func (r *ServerRepository) Create(ctx context.Context, server *model.Server) error {
	return r.db.WithContext(ctx).Create(server).Error
}

func (r *ServerRepository) FindByID(ctx context.Context, id string) (*model.Server, error) {
	var server model.Server
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&server).Error; err != nil {
		return nil, err
	}
	return &server, nil
}

func (r *ServerRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.Server, error) {
	var server model.Server
	if err := forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&server).Error; err != nil {
		return nil, err
	}
	return &server, nil
}

func (r *ServerRepository) FindByInviteCode(ctx context.Context, code string) (*model.Server, error) {
	var server model.Server
	if err := r.db.WithContext(ctx).Where("invite_code = ?", code).First(&server).Error; err != nil {
		return nil, err
	}
	return &server, nil
}

func (r *ServerRepository) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Server{}).Where("invite_code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *ServerRepository) UpdateBoostAggregate(ctx context.Context, id string, count, level int) error {
	return r.db.WithContext(ctx).
		Model(&model.Server{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"boost_count": count,
			"boost_level": level,
			"updated_at":  time.Now(),
		}).Error
}

func (r *ServerRepository) AddMember(ctx context.Context, member *model.ServerMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *ServerRepository) FindMember(ctx context.Context, serverID, userID string) (*model.ServerMember, error) {
	var member model.ServerMember
	err := r.db.WithContext(ctx).
		Where("server_id = ? AND user_id = ?", serverID, userID).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *ServerRepository) ListMembers(ctx context.Context, serverID string) ([]*model.ServerMember, error) {
	var members []*model.ServerMember
	err := r.db.WithContext(ctx).
		Where("server_id = ?", serverID).
		Order("joined_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *ServerRepository) SetMemberAdmin(ctx context.Context, serverID, userID string, isAdmin bool) error {
	result := r.db.WithContext(ctx).
		Model(&model.ServerMember{}).
		Where("server_id = ? AND user_id = ?", serverID, userID).
		Update("is_admin", isAdmin)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ServerRepository) CreateRole(ctx context.Context, role *model.Role) error {
	return r.db.WithContext(ctx).Create(role).Error
}

// FindRolesByIDs returns the roles among ids that belong to serverID
func (r *ServerRepository) FindRolesByIDs(ctx context.Context, serverID string, ids []string) ([]*model.Role, error) {
	var roles []*model.Role
	if len(ids) == 0 {
		return roles, nil
	}
	err := r.db.WithContext(ctx).
		Where("server_id = ? AND id IN ?", serverID, ids).
		Find(&roles).Error
	if err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *ServerRepository) ListRoles(ctx context.Context, serverID string) ([]*model.Role, error) {
	var roles []*model.Role
	err := r.db.WithContext(ctx).
		Where("server_id = ?", serverID).
		Order("position ASC, name ASC").
		Find(&roles).Error
	if err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *ServerRepository) FindCategoryByName(ctx context.Context, serverID, name string) (*model.Category, error) {
	var category model.Category
	err := r.db.WithContext(ctx).
		Where("server_id = ? AND name = ?", serverID, name).
		First(&category).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *ServerRepository) CreateCategory(ctx context.Context, category *model.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *ServerRepository) CreateChannel(ctx context.Context, channel *model.Channel) error {
	return r.db.WithContext(ctx).Create(channel).Error
}

func (r *ServerRepository) FindChannel(ctx context.Context, id string) (*model.Channel, error) {
	var channel model.Channel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&channel).Error; err != nil {
		return nil, err
	}
	return &channel, nil
}

func (r *ServerRepository) CreateChannelPermissions(ctx context.Context, perms []*model.ChannelPermission) error {
	if len(perms) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&perms).Error
}

func (r *ServerRepository) ListChannelPermissions(ctx context.Context, channelID string) ([]*model.ChannelPermission, error) {
	var perms []*model.ChannelPermission
	err := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("created_at ASC").
		Find(&perms).Error
	if err != nil {
		return nil, err
	}
	return perms, nil
}
