package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"gorm.io/gorm"

	"github.com/Gopher0727/bytehub/config"
	"github.com/Gopher0727/bytehub/internal/model"
	"github.com/Gopher0727/bytehub/internal/repository"
	"github.com/Gopher0727/bytehub/utils/idgen"
)

var (
	ErrTierNotFound  = errors.New("tier not found")
	ErrTierNameTaken = errors.New("tier name already exists")
)

const (
	tierCacheSize       = 128
	defaultTierCacheTTL = 30 * time.Second
)

// TierRequest represents a request to create or replace a catalog tier
type TierRequest struct {
	Name                string   `json:"name" binding:"required,min=1,max=64"`
	PriceINRPaise       int64    `json:"price_inr_paise" binding:"gte=0"`
	PriceUSDCents       int64    `json:"price_usd_cents" binding:"gte=0"`
	Description         string   `json:"description"`
	Features            []string `json:"features"`
	GrantsInitialBoosts bool     `json:"grants_initial_boosts"`
	InitialBoostCount   int      `json:"initial_boost_count" binding:"gte=0,lte=100"`
}

// ITierService defines the interface for the membership tier catalog
type ITierService interface {
	ListTiers(ctx context.Context) ([]*model.MembershipTier, error)
	GetTier(ctx context.Context, id string) (*model.MembershipTier, error)
	EnsureDefaultTier(ctx context.Context) (*model.MembershipTier, error)
	CreateTier(ctx context.Context, req TierRequest) (*model.MembershipTier, error)
	UpdateTier(ctx context.Context, id string, req TierRequest) (*model.MembershipTier, error)
}

// TierService serves the catalog with an in-process LRU in front of the
// database. Local updates drop the entry at once; edits made by other
// replicas show up once the entry expires.
type TierService struct {
	tiers repository.ITierRepository
	ids   *idgen.Generator
	cfg   config.MembershipConfig
	cache *expirable.LRU[string, model.MembershipTier]
}

func NewTierService(tiers repository.ITierRepository, ids *idgen.Generator, cfg config.MembershipConfig) *TierService {
	ttl := time.Duration(cfg.TierCacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultTierCacheTTL
	}
	return &TierService{
		tiers: tiers,
		ids:   ids,
		cfg:   cfg,
		cache: newTierCache(ttl),
	}
}

func newTierCache(ttl time.Duration) *expirable.LRU[string, model.MembershipTier] {
	return expirable.NewLRU[string, model.MembershipTier](tierCacheSize, nil, ttl)
}

func (s *TierService) ListTiers(ctx context.Context) ([]*model.MembershipTier, error) {
	tiers, err := s.tiers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tiers: %w", err)
	}
	for _, t := range tiers {
		s.cache.Add(t.ID, *t)
	}
	return tiers, nil
}

// GetTier returns a copy of the tier, served from cache when possible
func (s *TierService) GetTier(ctx context.Context, id string) (*model.MembershipTier, error) {
	if cached, ok := s.cache.Get(id); ok {
		return &cached, nil
	}

	tier, err := s.tiers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTierNotFound
		}
		return nil, fmt.Errorf("failed to find tier: %w", err)
	}
	s.cache.Add(tier.ID, *tier)
	return tier, nil
}

// EnsureDefaultTier returns the configured default tier, creating it on first use
func (s *TierService) EnsureDefaultTier(ctx context.Context) (*model.MembershipTier, error) {
	tier, err := s.tiers.EnsureByName(ctx, &model.MembershipTier{
		ID:                  s.ids.NextID(),
		Name:                s.cfg.DefaultTierName,
		PriceINRPaise:       s.cfg.DefaultTierPriceINR,
		PriceUSDCents:       s.cfg.DefaultTierPriceUSD,
		Description:         s.cfg.DefaultTierDescription,
		Features:            s.cfg.DefaultTierFeatures,
		GrantsInitialBoosts: s.cfg.InitialBoostCount > 0,
		InitialBoostCount:   s.cfg.InitialBoostCount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure default tier: %w", err)
	}
	s.cache.Add(tier.ID, *tier)
	return tier, nil
}

func (s *TierService) CreateTier(ctx context.Context, req TierRequest) (*model.MembershipTier, error) {
	tier := &model.MembershipTier{ID: s.ids.NextID()}
	applyTierRequest(tier, req)

	if err := s.tiers.Create(ctx, tier); err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, ErrTierNameTaken
		}
		return nil, fmt.Errorf("failed to create tier: %w", err)
	}
	return tier, nil
}

func (s *TierService) UpdateTier(ctx context.Context, id string, req TierRequest) (*model.MembershipTier, error) {
	tier, err := s.tiers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTierNotFound
		}
		return nil, fmt.Errorf("failed to find tier: %w", err)
	}
	applyTierRequest(tier, req)

	if err := s.tiers.Update(ctx, tier); err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, ErrTierNameTaken
		}
		return nil, fmt.Errorf("failed to update tier: %w", err)
	}
	s.cache.Remove(id)
	return tier, nil
}

func applyTierRequest(tier *model.MembershipTier, req TierRequest) {
	tier.Name = req.Name
	tier.PriceINRPaise = req.PriceINRPaise
	tier.PriceUSDCents = req.PriceUSDCents
	tier.Description = req.Description
	tier.Features = req.Features
	tier.GrantsInitialBoosts = req.GrantsInitialBoosts
	tier.InitialBoostCount = req.InitialBoostCount
}
