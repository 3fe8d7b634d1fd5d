package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/bytehub/internal/model"
)

// ITierRepository defines the data operations for the membership tier catalog
type ITierRepository interface {
	Create(ctx context.Context, tier *model.MembershipTier) error
	Update(ctx context.Context, tier *model.MembershipTier) error
	FindByID(ctx context.Context, id string) (*model.MembershipTier, error)
	FindByName(ctx context.Context, name string) (*model.MembershipTier, error)
	List(ctx context.Context) ([]*model.MembershipTier, error)
	EnsureByName(ctx context.Context, tier *model.MembershipTier) (*model.MembershipTier, error)
}

type TierRepository struct {
	db *gorm.DB
}

func NewTierRepository(db *gorm.DB) ITierRepository {
	return &TierRepository{db: db}
}

func (r *TierRepository) Create(ctx context.Context, tier *model.MembershipTier) error {
	return r.db.WithContext(ctx).Create(tier).Error
}

func (r *TierRepository) Update(ctx context.Context, tier *model.MembershipTier) error {
	return r.db.WithContext(ctx).Save(tier).Error
}

func (r *TierRepository) FindByID(ctx context.Context, id string) (*model.MembershipTier, error) {
	var tier model.MembershipTier
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tier).Error; err != nil {
		return nil, err
	}
	return &tier, nil
}

func (r *TierRepository) FindByName(ctx context.Context, name string) (*model.MembershipTier, error) {
	var tier model.MembershipTier
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&tier).Error; err != nil {
		return nil, err
	}
	return &tier, nil
}

// List returns the catalog ordered by INR price, cheapest first
func (r *TierRepository) List(ctx context.Context) ([]*model.MembershipTier, error) {
	var tiers []*model.MembershipTier
	err := r.db.WithContext(ctx).Order("price_inr_paise ASC, name ASC").Find(&tiers).Error
	if err != nil {
		return nil, err
	}
	return tiers, nil
}

// EnsureByName inserts tier unless a tier with the same name exists, then
// returns whichever row is stored. Concurrent callers converge on one row.
func (r *TierRepository) EnsureByName(ctx context.Context, tier *model.MembershipTier) (*model.MembershipTier, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(tier).Error
	if err != nil {
		return nil, err
	}
	return r.FindByName(ctx, tier.Name)
}
