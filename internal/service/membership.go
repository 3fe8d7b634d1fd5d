package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Gopher0727/bytehub/config"
	"github.com/Gopher0727/bytehub/internal/events"
	"github.com/Gopher0727/bytehub/internal/model"
	"github.com/Gopher0727/bytehub/internal/pkg/metrics"
	"github.com/Gopher0727/bytehub/internal/repository"
	logger "github.com/Gopher0727/bytehub/middleware/log"
	"github.com/Gopher0727/bytehub/utils/idgen"
)

var (
	ErrAlreadyActive      = errors.New("user already has an active membership")
	ErrMembershipNotFound = errors.New("no active membership")
	ErrTierRequired       = errors.New("tier id is required")
	ErrInvalidMonths      = errors.New("months must be positive")
)

// Grant sources, used as the metrics label
const (
	SourceAdmin    = "admin"
	SourcePurchase = "purchase"
)

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

// StatusCache stores serialized status projections per user. Get hands out
// a generation with every lookup; Fill stores only while that generation is
// current, and Invalidate advances it.
type StatusCache interface {
	Get(ctx context.Context, userID string) (payload []byte, gen int64, ok bool, err error)
	Fill(ctx context.Context, userID string, gen int64, payload []byte) (bool, error)
	Invalidate(ctx context.Context, userID string) error
}

// GrantResult is a freshly created ledger entry and its tier
type GrantResult struct {
	Membership *model.Membership     `json:"membership"`
	Tier       *model.MembershipTier `json:"tier"`
}

// MembershipStatus is the read projection of a user's current ledger entry.
// Active is recomputed from ExpiresAt on every read.
type MembershipStatus struct {
	MembershipID string                   `json:"membership_id"`
	UserID       string                   `json:"user_id"`
	TierID       string                   `json:"tier_id"`
	TierName     string                   `json:"tier_name"`
	Status       model.MembershipStatus   `json:"status"`
	Active       bool                     `json:"active"`
	StartedAt    time.Time                `json:"started_at"`
	ExpiresAt    *time.Time               `json:"expires_at"`
	Metadata     model.MembershipMetadata `json:"metadata"`
}

// IMembershipService defines the interface for membership ledger operations
type IMembershipService interface {
	Grant(ctx context.Context, userID, tierID string, months int) (*GrantResult, error)
	Purchase(ctx context.Context, userID, tierID string) (*GrantResult, error)
	Revoke(ctx context.Context, userID string) (int64, error)
	Status(ctx context.Context, userID string) (*MembershipStatus, error)
	IsActive(ctx context.Context, userID string) (bool, error)
	UpdateMetadata(ctx context.Context, userID string, patch model.MembershipMetadata) (*MembershipStatus, error)
}

type MembershipService struct {
	store     *repository.Store
	tiers     ITierService
	publisher events.Publisher
	cache     StatusCache
	ids       *idgen.Generator
	cfg       config.MembershipConfig
	log       *logger.Logger
	now       Clock
}

type MembershipOption func(*MembershipService)

func WithMembershipClock(now Clock) MembershipOption {
	return func(s *MembershipService) { s.now = now }
}

// WithStatusCache puts cache in front of Status. Without it every read hits the database.
func WithStatusCache(cache StatusCache) MembershipOption {
	return func(s *MembershipService) { s.cache = cache }
}

func NewMembershipService(
	store *repository.Store,
	tiers ITierService,
	publisher events.Publisher,
	ids *idgen.Generator,
	cfg config.MembershipConfig,
	log *logger.Logger,
	opts ...MembershipOption,
) *MembershipService {
	s := &MembershipService{
		store:     store,
		tiers:     tiers,
		publisher: publisher,
		ids:       ids,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Grant gives userID a membership of tierID (the default tier when empty)
// lasting months calendar months. months <= 0 falls back to the configured default.
func (s *MembershipService) Grant(ctx context.Context, userID, tierID string, months int) (*GrantResult, error) {
	if months < 0 {
		return nil, ErrInvalidMonths
	}
	if months == 0 {
		months = s.cfg.DefaultGrantMonths
	}

	var (
		tier *model.MembershipTier
		err  error
	)
	if tierID == "" {
		tier, err = s.tiers.EnsureDefaultTier(ctx)
	} else {
		tier, err = s.tiers.GetTier(ctx, tierID)
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := now.AddDate(0, months, 0)
	return s.grant(ctx, userID, tier, now, expiresAt, SourceAdmin)
}

// Purchase is the self-service grant with a fixed day-based term
func (s *MembershipService) Purchase(ctx context.Context, userID, tierID string) (*GrantResult, error) {
	if tierID == "" {
		return nil, ErrTierRequired
	}
	tier, err := s.tiers.GetTier(ctx, tierID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := now.Add(time.Duration(s.cfg.PurchaseDays) * 24 * time.Hour)
	return s.grant(ctx, userID, tier, now, expiresAt, SourcePurchase)
}

// grant creates the ledger entry under row locks on the user's active
// entries. Entries that are still marked active but already expired are
// canceled in the same transaction.
func (s *MembershipService) grant(ctx context.Context, userID string, tier *model.MembershipTier, now, expiresAt time.Time, source string) (*GrantResult, error) {
	membership := &model.Membership{
		ID:        s.ids.NextID(),
		UserID:    userID,
		TierID:    tier.ID,
		Status:    model.MembershipActive,
		StartedAt: now,
		ExpiresAt: &expiresAt,
		Metadata:  datatypes.NewJSONType(model.MembershipMetadata{}),
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		current, err := tx.Memberships.LockActive(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to lock memberships: %w", err)
		}

		var lapsed []string
		for _, m := range current {
			if m.IsActiveAt(now) {
				return ErrAlreadyActive
			}
			lapsed = append(lapsed, m.ID)
		}
		if err := tx.Memberships.CancelByIDs(ctx, lapsed); err != nil {
			return fmt.Errorf("failed to cancel lapsed memberships: %w", err)
		}

		if err := tx.Memberships.Create(ctx, membership); err != nil {
			if repository.IsDuplicateKey(err) {
				// a concurrent grant committed first
				return ErrAlreadyActive
			}
			return fmt.Errorf("failed to create membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.MembershipsGranted.WithLabelValues(source).Inc()
	s.invalidate(ctx, userID)
	s.publishGranted(ctx, membership, tier)

	membership.Tier = tier
	return &GrantResult{Membership: membership, Tier: tier}, nil
}

// publishGranted emits the event for tiers that hand out boosts. Failures
// are logged and never fail the grant.
func (s *MembershipService) publishGranted(ctx context.Context, membership *model.Membership, tier *model.MembershipTier) {
	count := tier.InitialBoosts()
	if count == 0 || s.publisher == nil {
		return
	}
	evt := events.MembershipGranted{
		MembershipID:  membership.ID,
		UserID:        membership.UserID,
		TierID:        tier.ID,
		InitialBoosts: count,
		GrantedAt:     membership.StartedAt,
	}
	if err := s.publisher.PublishMembershipGranted(ctx, evt); err != nil {
		s.log.ErrorContext(ctx, "failed to publish membership granted event",
			zap.String("membership_id", membership.ID),
			zap.Error(err),
		)
	}
}

// Revoke cancels every active entry of the user and returns how many changed
func (s *MembershipService) Revoke(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.Memberships.CancelActive(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke membership: %w", err)
	}
	if n > 0 {
		metrics.MembershipsRevoked.Inc()
	}
	s.invalidate(ctx, userID)
	return n, nil
}

// Status returns the user's latest active-status entry, or nil when there is none
func (s *MembershipService) Status(ctx context.Context, userID string) (*MembershipStatus, error) {
	cached, gen, ok := s.cachedStatus(ctx, userID)
	if ok {
		return s.withActivity(cached), nil
	}

	status, err := s.loadStatus(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.storeStatus(ctx, userID, gen, status)
	return s.withActivity(status), nil
}

// IsActive always reads the database
func (s *MembershipService) IsActive(ctx context.Context, userID string) (bool, error) {
	status, err := s.loadStatus(ctx, userID)
	if err != nil {
		return false, err
	}
	return status != nil && s.withActivity(status).Active, nil
}

// UpdateMetadata merges patch into the latest active-status entry. Expired
// entries are still updatable so clients can record expiry notices.
func (s *MembershipService) UpdateMetadata(ctx context.Context, userID string, patch model.MembershipMetadata) (*MembershipStatus, error) {
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		current, err := tx.Memberships.LockActive(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to lock memberships: %w", err)
		}
		if len(current) == 0 {
			return ErrMembershipNotFound
		}
		latest := current[0]
		merged := latest.Metadata.Data().Merge(patch)
		if err := tx.Memberships.UpdateMetadata(ctx, latest.ID, merged); err != nil {
			return fmt.Errorf("failed to update metadata: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, userID)
	status, err := s.loadStatus(ctx, userID)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, ErrMembershipNotFound
	}
	return s.withActivity(status), nil
}

func (s *MembershipService) loadStatus(ctx context.Context, userID string) (*MembershipStatus, error) {
	m, err := s.store.Memberships.FindLatestActive(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}

	status := &MembershipStatus{
		MembershipID: m.ID,
		UserID:       m.UserID,
		TierID:       m.TierID,
		Status:       m.Status,
		StartedAt:    m.StartedAt,
		ExpiresAt:    m.ExpiresAt,
		Metadata:     m.Metadata.Data(),
	}
	if m.Tier != nil {
		status.TierName = m.Tier.Name
	}
	return status, nil
}

// withActivity fills Active for the current time. A nil status stays nil.
func (s *MembershipService) withActivity(status *MembershipStatus) *MembershipStatus {
	if status == nil {
		return nil
	}
	out := *status
	out.Active = out.Status == model.MembershipActive &&
		(out.ExpiresAt == nil || out.ExpiresAt.After(s.now()))
	return &out
}

// cachedStatus returns a hit, or the generation to fill with on a miss.
// A negative generation means the cache is unusable for this call.
func (s *MembershipService) cachedStatus(ctx context.Context, userID string) (*MembershipStatus, int64, bool) {
	if s.cache == nil {
		return nil, -1, false
	}
	payload, gen, ok, err := s.cache.Get(ctx, userID)
	if err != nil {
		s.log.WarnContext(ctx, "membership status cache read failed", zap.Error(err))
		return nil, -1, false
	}
	if !ok {
		return nil, gen, false
	}

	var status *MembershipStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		s.log.WarnContext(ctx, "membership status cache entry corrupt", zap.Error(err))
		return nil, gen, false
	}
	return status, gen, true
}

func (s *MembershipService) storeStatus(ctx context.Context, userID string, gen int64, status *MembershipStatus) {
	if s.cache == nil || gen < 0 {
		return
	}
	payload, err := json.Marshal(status)
	if err != nil {
		return
	}
	stored, err := s.cache.Fill(ctx, userID, gen, payload)
	if err != nil {
		s.log.WarnContext(ctx, "membership status cache write failed", zap.Error(err))
		return
	}
	if !stored {
		s.log.DebugContext(ctx, "membership status changed during load, not cached", zap.String("user_id", userID))
	}
}

func (s *MembershipService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.log.WarnContext(ctx, "membership status cache invalidation failed", zap.Error(err))
	}
}
