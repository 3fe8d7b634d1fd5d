package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Gopher0727/bytehub/internal/model"
)

func TestGrantInitialBoosts_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.boosts.GrantInitialBoosts(ctx, "u1", "m1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = env.boosts.GrantInitialBoosts(ctx, "u1", "m1", 2)
	require.NoError(t, err)
	assert.Zero(t, created)

	// a larger replay only fills the missing slots
	created, err = env.boosts.GrantInitialBoosts(ctx, "u1", "m1", 3)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	created, err = env.boosts.GrantInitialBoosts(ctx, "u1", "m2", 0)
	require.NoError(t, err)
	assert.Zero(t, created)

	assert.Equal(t, int64(3), env.count(t, &model.Boost{}))
}

func TestApplyAndRemoveBoost_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.purchaseByte(t, "u1")
	server := env.createServer(t, "u1")

	boosts, err := env.boosts.ListUserBoosts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, boosts, 2)
	b1 := boosts[0]

	applied, err := env.boosts.ApplyBoost(ctx, "u1", b1.ID, server.ID)
	require.NoError(t, err)
	require.NotNil(t, applied.ServerID)
	assert.Equal(t, server.ID, *applied.ServerID)
	assert.NotNil(t, applied.AssignedAt)

	reloaded, err := env.servers.GetServer(ctx, server.ID)
	require.NoError(t, err)
	assert.Equal(t, server.BoostCount+1, reloaded.BoostCount)

	onServer, err := env.boosts.ListServerBoosts(ctx, server.ID)
	require.NoError(t, err)
	require.Len(t, onServer, 1)
	assert.Equal(t, b1.ID, onServer[0].ID)

	require.NoError(t, env.boosts.RemoveBoost(ctx, "u1", b1.ID))

	reloaded, err = env.servers.GetServer(ctx, server.ID)
	require.NoError(t, err)
	assert.Equal(t, server.BoostCount, reloaded.BoostCount)
	assert.Equal(t, server.BoostLevel, reloaded.BoostLevel)

	after, err := env.store.Boosts.FindByID(ctx, b1.ID)
	require.NoError(t, err)
	assert.Nil(t, after.ServerID)
}

func TestApplyBoost_Level(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.purchaseByte(t, "u1")
	server := env.createServer(t, "u1")

	boosts, err := env.boosts.ListUserBoosts(ctx, "u1")
	require.NoError(t, err)
	for _, b := range boosts {
		_, err := env.boosts.ApplyBoost(ctx, "u1", b.ID, server.ID)
		require.NoError(t, err)
	}

	reloaded, err := env.servers.GetServer(ctx, server.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.BoostCount)
	assert.Equal(t, 1, reloaded.BoostLevel)
}

func TestApplyBoost_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.purchaseByte(t, "u1")
	own := env.createServer(t, "u1")
	foreign := env.createServer(t, "u2")

	boosts, err := env.boosts.ListUserBoosts(ctx, "u1")
	require.NoError(t, err)
	b1, b2 := boosts[0], boosts[1]

	t.Run("missing boost", func(t *testing.T) {
		_, err := env.boosts.ApplyBoost(ctx, "u1", "nope", own.ID)
		assert.ErrorIs(t, err, ErrBoostNotFound)
	})

	t.Run("boost owned by someone else", func(t *testing.T) {
		_, err := env.boosts.ApplyBoost(ctx, "u2", b1.ID, foreign.ID)
		assert.ErrorIs(t, err, ErrBoostNotFound)
	})

	t.Run("missing server", func(t *testing.T) {
		_, err := env.boosts.ApplyBoost(ctx, "u1", b1.ID, "nope")
		assert.ErrorIs(t, err, ErrServerNotFound)
	})

	t.Run("server not administered", func(t *testing.T) {
		_, err := env.boosts.ApplyBoost(ctx, "u1", b1.ID, foreign.ID)
		assert.ErrorIs(t, err, ErrNotServerAdmin)

		after, err := env.store.Boosts.FindByID(ctx, b1.ID)
		require.NoError(t, err)
		assert.Nil(t, after.ServerID)
		reloaded, err := env.servers.GetServer(ctx, foreign.ID)
		require.NoError(t, err)
		assert.Zero(t, reloaded.BoostCount)
	})

	t.Run("already assigned", func(t *testing.T) {
		_, err := env.boosts.ApplyBoost(ctx, "u1", b2.ID, own.ID)
		require.NoError(t, err)
		_, err = env.boosts.ApplyBoost(ctx, "u1", b2.ID, own.ID)
		assert.ErrorIs(t, err, ErrBoostAlreadyAssigned)

		reloaded, err := env.servers.GetServer(ctx, own.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, reloaded.BoostCount)
	})
}

func TestApplyBoost_ServerAdminMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.purchaseByte(t, "u1")
	server := env.createServer(t, "owner")

	_, err := env.servers.JoinServer(ctx, "u1", server.InviteCode)
	require.NoError(t, err)

	boosts, err := env.boosts.ListUserBoosts(ctx, "u1")
	require.NoError(t, err)

	_, err = env.boosts.ApplyBoost(ctx, "u1", boosts[0].ID, server.ID)
	assert.ErrorIs(t, err, ErrNotServerAdmin)

	require.NoError(t, env.servers.SetMemberAdmin(ctx, "owner", server.ID, "u1", true))
	_, err = env.boosts.ApplyBoost(ctx, "u1", boosts[0].ID, server.ID)
	assert.NoError(t, err)
}

func TestRemoveBoost_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.purchaseByte(t, "u1")
	server := env.createServer(t, "u1")

	boosts, err := env.boosts.ListUserBoosts(ctx, "u1")
	require.NoError(t, err)

	assert.ErrorIs(t, env.boosts.RemoveBoost(ctx, "u1", "nope"), ErrBoostNotFoundOrNotAssigned)
	assert.ErrorIs(t, env.boosts.RemoveBoost(ctx, "u1", boosts[0].ID), ErrBoostNotFoundOrNotAssigned)

	_, err = env.boosts.ApplyBoost(ctx, "u1", boosts[0].ID, server.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, env.boosts.RemoveBoost(ctx, "u2", boosts[0].ID), ErrBoostNotFoundOrNotAssigned)

	reloaded, err := env.servers.GetServer(ctx, server.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.BoostCount)
}

func TestListServerBoosts_MissingServer(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.boosts.ListServerBoosts(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrServerNotFound)
}

// After any sequence of apply/remove calls the stored aggregate equals the
// number of boosts assigned to the server, and the level follows the count.
func TestProperty_BoostAggregateMatchesAssignments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	iteration := 0

	rapid.Check(t, func(rt *rapid.T) {
		iteration++
		userID := fmt.Sprintf("user-%d", iteration)
		server := env.createServer(t, userID)

		n := rapid.IntRange(1, 4).Draw(rt, "boosts")
		_, err := env.boosts.GrantInitialBoosts(ctx, userID, "m-"+userID, n)
		require.NoError(rt, err)
		boosts, err := env.boosts.ListUserBoosts(ctx, userID)
		require.NoError(rt, err)

		assigned := make(map[string]bool)
		steps := rapid.IntRange(1, 10).Draw(rt, "steps")
		for range steps {
			b := boosts[rapid.IntRange(0, len(boosts)-1).Draw(rt, "boost")]
			before, err := env.servers.GetServer(ctx, server.ID)
			require.NoError(rt, err)

			if assigned[b.ID] {
				require.NoError(rt, env.boosts.RemoveBoost(ctx, userID, b.ID))
				assigned[b.ID] = false
			} else {
				_, err := env.boosts.ApplyBoost(ctx, userID, b.ID, server.ID)
				require.NoError(rt, err)
				assigned[b.ID] = true

				// apply then remove restores the previous aggregate
				if rapid.Bool().Draw(rt, "undo") {
					require.NoError(rt, env.boosts.RemoveBoost(ctx, userID, b.ID))
					assigned[b.ID] = false
					after, err := env.servers.GetServer(ctx, server.ID)
					require.NoError(rt, err)
					if after.BoostCount != before.BoostCount || after.BoostLevel != before.BoostLevel {
						rt.Fatalf("round trip changed aggregate: %d -> %d", before.BoostCount, after.BoostCount)
					}
				}
			}

			want := 0
			for _, v := range assigned {
				if v {
					want++
				}
			}
			got, err := env.servers.GetServer(ctx, server.ID)
			require.NoError(rt, err)
			if got.BoostCount != want || got.BoostLevel != model.BoostLevel(want) {
				rt.Fatalf("aggregate %d/%d, want %d/%d", got.BoostCount, got.BoostLevel, want, model.BoostLevel(want))
			}
		}
	})
}
