package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Gopher0727/bytehub/internal/model"
)

// IMembershipRepository defines the data operations for the membership ledger
type IMembershipRepository interface {
	Create(ctx context.Context, membership *model.Membership) error
	FindLatestActive(ctx context.Context, userID string) (*model.Membership, error)
	LockActive(ctx context.Context, userID string) ([]*model.Membership, error)
	CancelActive(ctx context.Context, userID string) (int64, error)
	CancelByIDs(ctx context.Context, ids []string) error
	UpdateMetadata(ctx context.Context, id string, metadata model.MembershipMetadata) error
	ListByUser(ctx context.Context, userID string) ([]*model.Membership, error)
}

type MembershipRepository struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) IMembershipRepository {
	return &MembershipRepository{db: db}
}

// Create inserts the ledger entry without touching the referenced tier row
func (r *MembershipRepository) Create(ctx context.Context, membership *model.Membership) error {
	return r.db.WithContext(ctx).Omit("Tier").Create(membership).Error
}

// FindLatestActive returns the most recently started entry whose status is
// active, with its tier preloaded. Expiry is not checked here.
func (r *MembershipRepository) FindLatestActive(ctx context.Context, userID string) (*model.Membership, error) {
	var membership model.Membership
	err := r.db.WithContext(ctx).
		Preload("Tier").
		Where("user_id = ? AND status = ?", userID, model.MembershipActive).
		Order("started_at DESC").
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// LockActive selects every active-status entry of the user FOR UPDATE.
// Only meaningful inside a transaction.
func (r *MembershipRepository) LockActive(ctx context.Context, userID string) ([]*model.Membership, error) {
	var memberships []*model.Membership
	err := forUpdate(r.db.WithContext(ctx)).
		Where("user_id = ? AND status = ?", userID, model.MembershipActive).
		Order("started_at DESC").
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}
	return memberships, nil
}

// CancelActive cancels every active entry of the user and reports how many rows changed
func (r *MembershipRepository) CancelActive(ctx context.Context, userID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Membership{}).
		Where("user_id = ? AND status = ?", userID, model.MembershipActive).
		Update("status", model.MembershipCanceled)
	return result.RowsAffected, result.Error
}

func (r *MembershipRepository) CancelByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.Membership{}).
		Where("id IN ?", ids).
		Update("status", model.MembershipCanceled).Error
}

func (r *MembershipRepository) UpdateMetadata(ctx context.Context, id string, metadata model.MembershipMetadata) error {
	return r.db.WithContext(ctx).
		Model(&model.Membership{}).
		Where("id = ?", id).
		Update("metadata", datatypes.NewJSONType(metadata)).Error
}

// ListByUser returns the full ledger of a user, newest first
func (r *MembershipRepository) ListByUser(ctx context.Context, userID string) ([]*model.Membership, error) {
	var memberships []*model.Membership
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}
	return memberships, nil
}
