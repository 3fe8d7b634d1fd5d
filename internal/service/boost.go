package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/bytehub/internal/model"
	"github.com/Gopher0727/bytehub/internal/pkg/metrics"
	"github.com/Gopher0727/bytehub/internal/repository"
	"github.com/Gopher0727/bytehub/utils/idgen"
)

var (
	ErrBoostNotFound              = errors.New("boost not found")
	ErrBoostAlreadyAssigned       = errors.New("boost is already assigned to a server")
	ErrBoostNotFoundOrNotAssigned = errors.New("boost not found or not assigned")
)

// ApplyBoostRequest represents a request to assign a boost to a server
type ApplyBoostRequest struct {
	BoostID  string `json:"boost_id" binding:"required"`
	ServerID string `json:"server_id" binding:"required"`
}

// IBoostService defines the interface for boost entitlement operations
type IBoostService interface {
	GrantInitialBoosts(ctx context.Context, userID, membershipID string, count int) (int, error)
	ApplyBoost(ctx context.Context, userID, boostID, serverID string) (*model.Boost, error)
	RemoveBoost(ctx context.Context, userID, boostID string) error
	ListUserBoosts(ctx context.Context, userID string) ([]*model.Boost, error)
	ListServerBoosts(ctx context.Context, serverID string) ([]*model.Boost, error)
}

type BoostService struct {
	store *repository.Store
	ids   *idgen.Generator
	now   Clock
}

func NewBoostService(store *repository.Store, ids *idgen.Generator) *BoostService {
	return &BoostService{store: store, ids: ids, now: time.Now}
}

// GrantInitialBoosts creates count unassigned boosts for membershipID. Slots
// are numbered per membership, so a replayed grant only fills missing slots.
// It returns the number of boosts actually created.
func (s *BoostService) GrantInitialBoosts(ctx context.Context, userID, membershipID string, count int) (int, error) {
	if count <= 0 {
		return 0, nil
	}

	boosts := make([]*model.Boost, 0, count)
	for slot := range count {
		boosts = append(boosts, &model.Boost{
			ID:           s.ids.NextID(),
			OwnerID:      userID,
			MembershipID: membershipID,
			Slot:         slot,
		})
	}

	created, err := s.store.Boosts.CreateBatch(ctx, boosts)
	if err != nil {
		return 0, fmt.Errorf("failed to grant initial boosts: %w", err)
	}
	metrics.BoostsGranted.Add(float64(created))
	return int(created), nil
}

// ApplyBoost assigns one of the user's unassigned boosts to a server the
// user administers and refreshes the server's aggregate in the same transaction.
func (s *BoostService) ApplyBoost(ctx context.Context, userID, boostID, serverID string) (*model.Boost, error) {
	var applied *model.Boost
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		boost, err := tx.Boosts.FindByIDForUpdate(ctx, boostID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBoostNotFound
			}
			return fmt.Errorf("failed to find boost: %w", err)
		}
		if boost.OwnerID != userID {
			return ErrBoostNotFound
		}
		if boost.IsAssigned() {
			return ErrBoostAlreadyAssigned
		}

		server, err := tx.Servers.FindByIDForUpdate(ctx, serverID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrServerNotFound
			}
			return fmt.Errorf("failed to find server: %w", err)
		}
		ok, err := administers(ctx, tx.Servers, server, userID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotServerAdmin
		}

		if err := tx.Boosts.Assign(ctx, boost.ID, server.ID, s.now()); err != nil {
			return fmt.Errorf("failed to assign boost: %w", err)
		}
		if err := refreshAggregate(ctx, tx, server.ID); err != nil {
			return err
		}

		applied, err = tx.Boosts.FindByID(ctx, boost.ID)
		if err != nil {
			return fmt.Errorf("failed to reload boost: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.BoostsApplied.Inc()
	return applied, nil
}

// RemoveBoost returns an assigned boost to its owner's inventory. A missing,
// foreign or unassigned boost all report ErrBoostNotFoundOrNotAssigned.
func (s *BoostService) RemoveBoost(ctx context.Context, userID, boostID string) error {
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		boost, err := tx.Boosts.FindByIDForUpdate(ctx, boostID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBoostNotFoundOrNotAssigned
			}
			return fmt.Errorf("failed to find boost: %w", err)
		}
		if boost.OwnerID != userID || !boost.IsAssigned() {
			return ErrBoostNotFoundOrNotAssigned
		}
		serverID := *boost.ServerID

		// lock order matches ApplyBoost: boost, then server
		if _, err := tx.Servers.FindByIDForUpdate(ctx, serverID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to lock server: %w", err)
		}

		if err := tx.Boosts.Unassign(ctx, boost.ID); err != nil {
			return fmt.Errorf("failed to unassign boost: %w", err)
		}
		return refreshAggregate(ctx, tx, serverID)
	})
	if err != nil {
		return err
	}

	metrics.BoostsRemoved.Inc()
	return nil
}

func (s *BoostService) ListUserBoosts(ctx context.Context, userID string) ([]*model.Boost, error) {
	boosts, err := s.store.Boosts.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list boosts: %w", err)
	}
	return boosts, nil
}

func (s *BoostService) ListServerBoosts(ctx context.Context, serverID string) ([]*model.Boost, error) {
	if _, err := s.store.Servers.FindByID(ctx, serverID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrServerNotFound
		}
		return nil, fmt.Errorf("failed to find server: %w", err)
	}
	boosts, err := s.store.Boosts.ListByServer(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list server boosts: %w", err)
	}
	return boosts, nil
}

// refreshAggregate recounts the boosts assigned to serverID and stores the
// count and level on the server row. Must run inside the mutating transaction.
func refreshAggregate(ctx context.Context, tx *repository.Store, serverID string) error {
	count, err := tx.Boosts.CountByServer(ctx, serverID)
	if err != nil {
		return fmt.Errorf("failed to count server boosts: %w", err)
	}
	n := int(count)
	if err := tx.Servers.UpdateBoostAggregate(ctx, serverID, n, model.BoostLevel(n)); err != nil {
		return fmt.Errorf("failed to update boost aggregate: %w", err)
	}
	return nil
}
