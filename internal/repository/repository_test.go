package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Gopher0727/bytehub/internal/model"
	"github.com/Gopher0727/bytehub/internal/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(testutil.NewTestDB(t))
}

func seedTier(t *testing.T, s *Store, name string) *model.MembershipTier {
	t.Helper()
	tier := &model.MembershipTier{
		ID:                  uuid.NewString(),
		Name:                name,
		PriceINRPaise:       10000,
		PriceUSDCents:       118,
		GrantsInitialBoosts: true,
		InitialBoostCount:   2,
	}
	require.NoError(t, s.Tiers.Create(context.Background(), tier))
	return tier
}

func seedServer(t *testing.T, s *Store, ownerID string) *model.Server {
	t.Helper()
	server := &model.Server{
		ID:         uuid.NewString(),
		Name:       "test server",
		OwnerID:    ownerID,
		InviteCode: uuid.NewString()[:8],
	}
	require.NoError(t, s.Servers.Create(context.Background(), server))
	return server
}

func TestTierRepository_EnsureByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Tiers.EnsureByName(ctx, &model.MembershipTier{ID: "t1", Name: "Byte", PriceINRPaise: 10000})
	require.NoError(t, err)
	assert.Equal(t, "t1", first.ID)

	second, err := s.Tiers.EnsureByName(ctx, &model.MembershipTier{ID: "t2", Name: "Byte", PriceINRPaise: 1})
	require.NoError(t, err)
	assert.Equal(t, "t1", second.ID)
	assert.Equal(t, int64(10000), second.PriceINRPaise)

	tiers, err := s.Tiers.List(ctx)
	require.NoError(t, err)
	assert.Len(t, tiers, 1)
}

func TestTierRepository_DuplicateName(t *testing.T) {
	s := newTestStore(t)
	seedTier(t, s, "Byte")

	err := s.Tiers.Create(context.Background(), &model.MembershipTier{ID: "other", Name: "Byte"})
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))
}

func TestMembershipRepository_OneActivePerUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tier := seedTier(t, s, "Byte")

	now := time.Now()
	first := &model.Membership{ID: "m1", UserID: "u1", TierID: tier.ID, Status: model.MembershipActive, StartedAt: now}
	require.NoError(t, s.Memberships.Create(ctx, first))

	second := &model.Membership{ID: "m2", UserID: "u1", TierID: tier.ID, Status: model.MembershipActive, StartedAt: now}
	err := s.Memberships.Create(ctx, second)
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))

	// canceled rows are not constrained
	canceled := &model.Membership{ID: "m3", UserID: "u1", TierID: tier.ID, Status: model.MembershipCanceled, StartedAt: now}
	require.NoError(t, s.Memberships.Create(ctx, canceled))
}

func TestMembershipRepository_CancelAndFind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tier := seedTier(t, s, "Byte")

	_, err := s.Memberships.FindLatestActive(ctx, "u1")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	require.NoError(t, s.Memberships.Create(ctx, &model.Membership{
		ID: "m1", UserID: "u1", TierID: tier.ID, Status: model.MembershipActive, StartedAt: time.Now(),
	}))

	found, err := s.Memberships.FindLatestActive(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "m1", found.ID)
	require.NotNil(t, found.Tier)
	assert.Equal(t, "Byte", found.Tier.Name)

	n, err := s.Memberships.CancelActive(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Memberships.CancelActive(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.Memberships.FindLatestActive(ctx, "u1")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	ledger, err := s.Memberships.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, model.MembershipCanceled, ledger[0].Status)
}

func TestMembershipRepository_UpdateMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tier := seedTier(t, s, "Byte")
	require.NoError(t, s.Memberships.Create(ctx, &model.Membership{
		ID: "m1", UserID: "u1", TierID: tier.ID, Status: model.MembershipActive, StartedAt: time.Now(),
	}))

	shown := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.Memberships.UpdateMetadata(ctx, "m1", model.MembershipMetadata{WelcomeShownAt: &shown}))

	found, err := s.Memberships.FindLatestActive(ctx, "u1")
	require.NoError(t, err)
	meta := found.Metadata.Data()
	require.NotNil(t, meta.WelcomeShownAt)
	assert.True(t, shown.Equal(*meta.WelcomeShownAt))
	assert.Nil(t, meta.ExpiryNoticeShownAt)
}

func TestBoostRepository_CreateBatchIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := func() []*model.Boost {
		return []*model.Boost{
			{ID: uuid.NewString(), OwnerID: "u1", MembershipID: "m1", Slot: 0},
			{ID: uuid.NewString(), OwnerID: "u1", MembershipID: "m1", Slot: 1},
		}
	}

	n, err := s.Boosts.CreateBatch(ctx, batch())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.Boosts.CreateBatch(ctx, batch())
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := s.Boosts.CountByMembership(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestBoostRepository_AssignUnassign(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	server := seedServer(t, s, "owner")

	boost := &model.Boost{ID: "b1", OwnerID: "u1", MembershipID: "m1", Slot: 0}
	_, err := s.Boosts.CreateBatch(ctx, []*model.Boost{boost})
	require.NoError(t, err)

	require.NoError(t, s.Boosts.Assign(ctx, "b1", server.ID, time.Now()))
	found, err := s.Boosts.FindByID(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, found.ServerID)
	assert.Equal(t, server.ID, *found.ServerID)
	assert.NotNil(t, found.AssignedAt)

	count, err := s.Boosts.CountByServer(ctx, server.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	listed, err := s.Boosts.ListByServer(ctx, server.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	require.NoError(t, s.Boosts.Unassign(ctx, "b1"))
	found, err = s.Boosts.FindByID(ctx, "b1")
	require.NoError(t, err)
	assert.Nil(t, found.ServerID)
	assert.Nil(t, found.AssignedAt)

	count, err = s.Boosts.CountByServer(ctx, server.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestServerRepository_MembersAndRoles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	server := seedServer(t, s, "owner")

	require.NoError(t, s.Servers.AddMember(ctx, &model.ServerMember{ID: "sm1", ServerID: server.ID, UserID: "u1", JoinedAt: time.Now()}))
	err := s.Servers.AddMember(ctx, &model.ServerMember{ID: "sm2", ServerID: server.ID, UserID: "u1", JoinedAt: time.Now()})
	assert.True(t, IsDuplicateKey(err))

	require.NoError(t, s.Servers.SetMemberAdmin(ctx, server.ID, "u1", true))
	member, err := s.Servers.FindMember(ctx, server.ID, "u1")
	require.NoError(t, err)
	assert.True(t, member.IsAdmin)

	err = s.Servers.SetMemberAdmin(ctx, server.ID, "nobody", true)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	other := seedServer(t, s, "owner2")
	require.NoError(t, s.Servers.CreateRole(ctx, &model.Role{ID: "r1", ServerID: server.ID, Name: "mods"}))
	require.NoError(t, s.Servers.CreateRole(ctx, &model.Role{ID: "r2", ServerID: other.ID, Name: "mods"}))

	roles, err := s.Servers.FindRolesByIDs(ctx, server.ID, []string{"r1", "r2"})
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "r1", roles[0].ID)

	require.NoError(t, s.Servers.UpdateBoostAggregate(ctx, server.ID, 7, 2))
	reloaded, err := s.Servers.FindByID(ctx, server.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, reloaded.BoostCount)
	assert.Equal(t, 2, reloaded.BoostLevel)
}

func TestStore_TransactionRollback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	server := seedServer(t, s, "owner")

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx *Store) error {
		if err := tx.Panels.Create(ctx, &model.Panel{
			ID: "p1", OwnerID: "owner", ServerID: server.ID, ChannelID: "c1", Name: "Ops", Slug: "ops",
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	exists, err := s.Panels.ExistsBySlug(ctx, server.ID, "ops")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPanelRepository_ListWithRoleAccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	server := seedServer(t, s, "owner")

	require.NoError(t, s.Panels.Create(ctx, &model.Panel{
		ID: "p1", OwnerID: "owner", ServerID: server.ID, ChannelID: "c1", Name: "Ops", Slug: "ops",
	}))
	require.NoError(t, s.Panels.CreateRoleAccess(ctx, []*model.PanelRoleAccess{
		{ID: "a1", PanelID: "p1", RoleID: "r1", CanView: true},
	}))

	err := s.Panels.Create(ctx, &model.Panel{
		ID: "p2", OwnerID: "owner", ServerID: server.ID, ChannelID: "c2", Name: "OPS", Slug: "ops",
	})
	assert.True(t, IsDuplicateKey(err))

	panels, err := s.Panels.ListByServer(ctx, server.ID)
	require.NoError(t, err)
	require.Len(t, panels, 1)
	require.Len(t, panels[0].RoleAccess, 1)
	assert.True(t, panels[0].RoleAccess[0].CanView)
	assert.False(t, panels[0].RoleAccess[0].CanManage)
}

func TestIsDuplicateKey(t *testing.T) {
	assert.False(t, IsDuplicateKey(nil))
	assert.False(t, IsDuplicateKey(errors.New("connection refused")))
	assert.True(t, IsDuplicateKey(gorm.ErrDuplicatedKey))
}
