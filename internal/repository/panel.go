package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/bytehub/internal/model"
)

// IPanelRepository defines the data operations for control panels
type IPanelRepository interface {
	Create(ctx context.Context, panel *model.Panel) error
	CreateRoleAccess(ctx context.Context, access []*model.PanelRoleAccess) error
	ExistsBySlug(ctx context.Context, serverID, slug string) (bool, error)
	ListByServer(ctx context.Context, serverID string) ([]*model.Panel, error)
	Count(ctx context.Context) (int64, error)
}

type PanelRepository struct {
	db *gorm.DB
}

func NewPanelRepository(db *gorm.DB) IPanelRepository {
	return &PanelRepository{db: db}
}

// Create inserts the panel row only; role access is written separately
func (r *PanelRepository) Create(ctx context.Context, panel *model.Panel) error {
	return r.db.WithContext(ctx).Omit("RoleAccess").Create(panel).Error
}

func (r *PanelRepository) CreateRoleAccess(ctx context.Context, access []*model.PanelRoleAccess) error {
	if len(access) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&access).Error
}

func (r *PanelRepository) ExistsBySlug(ctx context.Context, serverID, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Panel{}).
		Where("server_id = ? AND slug = ?", serverID, slug).
		Count(&count).Error
	return count > 0, err
}

func (r *PanelRepository) ListByServer(ctx context.Context, serverID string) ([]*model.Panel, error) {
	var panels []*model.Panel
	err := r.db.WithContext(ctx).
		Preload("RoleAccess").
		Where("server_id = ?", serverID).
		Order("created_at ASC").
		Find(&panels).Error
	if err != nil {
		return nil, err
	}
	return panels, nil
}

func (r *PanelRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Panel{}).Count(&count).Error
	return count, err
}
