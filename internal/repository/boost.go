package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/bytehub/internal/model"
)

// IBoostRepository defines the data operations for boost entitlements
type IBoostRepository interface {
	CreateBatch(ctx context.Context, boosts []*model.Boost) (int64, error)
	CountByMembership(ctx context.Context, membershipID string) (int64, error)
	FindByID(ctx context.Context, id string) (*model.Boost, error)
	FindByIDForUpdate(ctx context.Context, id string) (*model.Boost, error)
	Assign(ctx context.Context, id, serverID string, at time.Time) error
	Unassign(ctx context.Context, id string) error
	CountByServer(ctx context.Context, serverID string) (int64, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Boost, error)
	ListByServer(ctx context.Context, serverID string) ([]*model.Boost, error)
}

type BoostRepository struct {
	db *gorm.DB
}

func NewBoostRepository(db *gorm.DB) IBoostRepository {
	return &BoostRepository{db: db}
}

// CreateBatch inserts boosts, skipping slots that already exist for the
// membership. It returns the number of rows actually inserted.
func (r *BoostRepository) CreateBatch(ctx context.Context, boosts []*model.Boost) (int64, error) {
	if len(boosts) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "membership_id"}, {Name: "slot"}},
			DoNothing: true,
		}).
		Create(&boosts)
	return result.RowsAffected, result.Error
}

func (r *BoostRepository) CountByMembership(ctx context.Context, membershipID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Boost{}).
		Where("membership_id = ?", membershipID).
		Count(&count).Error
	return count, err
}

func (r *BoostRepository) FindByID(ctx context.Context, id string) (*model.Boost, error) {
	var boost model.Boost
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&boost).Error; err != nil {
		return nil, err
	}
	return &boost, nil
}

func (r *BoostRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.Boost, error) {
	var boost model.Boost
	if err := forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&boost).Error; err != nil {
		return nil, err
	}
	return &boost, nil
}

func (r *BoostRepository) Assign(ctx context.Context, id, serverID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Boost{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"server_id":   serverID,
			"assigned_at": at,
			"updated_at":  at,
		}).Error
}

func (r *BoostRepository) Unassign(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&model.Boost{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"server_id":   nil,
			"assigned_at": nil,
			"updated_at":  time.Now(),
		}).Error
}

func (r *BoostRepository) CountByServer(ctx context.Context, serverID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Boost{}).
		Where("server_id = ?", serverID).
		Count(&count).Error
	return count, err
}

func (r *BoostRepository) ListByOwner(ctx context.Context, ownerID string) ([]*model.Boost, error) {
	var boosts []*model.Boost
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC, slot ASC").
		Find(&boosts).Error
	if err != nil {
		return nil, err
	}
	return boosts, nil
}

func (r *BoostRepository) ListByServer(ctx context.Context, serverID string) ([]*model.Boost, error) {
	var boosts []*model.Boost
	err := r.db.WithContext(ctx).
		Where("server_id = ?", serverID).
		Order("assigned_at ASC").
		Find(&boosts).Error
	if err != nil {
		return nil, err
	}
	return boosts, nil
}
