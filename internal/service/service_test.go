package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Gopher0727/bytehub/config"
	"github.com/Gopher0727/bytehub/internal/events"
	"github.com/Gopher0727/bytehub/internal/model"
	"github.com/Gopher0727/bytehub/internal/repository"
	"github.com/Gopher0727/bytehub/internal/testutil"
	"github.com/Gopher0727/bytehub/internal/utils"
	logger "github.com/Gopher0727/bytehub/middleware/log"
	"github.com/Gopher0727/bytehub/utils/idgen"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(at time.Time) *testClock {
	return &testClock{now: at}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testMembershipConfig() config.MembershipConfig {
	return config.MembershipConfig{
		DefaultTierName:        "Byte",
		DefaultTierPriceINR:    10000,
		DefaultTierPriceUSD:    118,
		DefaultTierDescription: "Byte membership",
		DefaultTierFeatures:    []string{"2 server boosts", "Control panel"},
		InitialBoostCount:      2,
		PurchaseDays:           30,
		DefaultGrantMonths:     1,
		StatusCacheTTLSeconds:  60,
		TierCacheTTLSeconds:    30,
	}
}

type testEnv struct {
	db          *gorm.DB
	store       *repository.Store
	ids         *idgen.Generator
	clock       *testClock
	tiers       *TierService
	boosts      *BoostService
	memberships *MembershipService
	servers     *ServerService
	panels      *PanelService
}

type envOption func(*envConfig)

type envConfig struct {
	publisher events.Publisher
	cache     StatusCache
}

func withPublisher(p events.Publisher) envOption {
	return func(c *envConfig) { c.publisher = p }
}

func withCache(cache StatusCache) envOption {
	return func(c *envConfig) { c.cache = cache }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	var ec envConfig
	for _, opt := range opts {
		opt(&ec)
	}

	db := testutil.NewTestDB(t)
	store := repository.NewStore(db)
	ids, err := idgen.New(1)
	require.NoError(t, err)

	clock := newTestClock(time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC))
	cfg := testMembershipConfig()

	env := &testEnv{db: db, store: store, ids: ids, clock: clock}
	env.tiers = NewTierService(store.Tiers, ids, cfg)
	env.boosts = NewBoostService(store, ids)
	env.boosts.now = clock.Now

	publisher := ec.publisher
	if publisher == nil {
		publisher = events.NewLocalPublisher(utils.InlineExecutor{}, env.boosts, logger.NewNop())
	}
	mopts := []MembershipOption{WithMembershipClock(clock.Now)}
	if ec.cache != nil {
		mopts = append(mopts, WithStatusCache(ec.cache))
	}
	env.memberships = NewMembershipService(store, env.tiers, publisher, ids, cfg, logger.NewNop(), mopts...)
	env.servers = NewServerService(store, ids)
	env.panels = NewPanelService(store, env.memberships, ids)
	return env
}

func (e *testEnv) count(t *testing.T, m any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(m).Count(&n).Error)
	return n
}

func (e *testEnv) createServer(t *testing.T, ownerID string) *model.Server {
	t.Helper()
	server, err := e.servers.CreateServer(context.Background(), ownerID, "server of "+ownerID)
	require.NoError(t, err)
	return server
}

// purchaseByte gives userID the default tier and its initial boosts
func (e *testEnv) purchaseByte(t *testing.T, userID string) *GrantResult {
	t.Helper()
	ctx := context.Background()
	tier, err := e.tiers.EnsureDefaultTier(ctx)
	require.NoError(t, err)
	res, err := e.memberships.Purchase(ctx, userID, tier.ID)
	require.NoError(t, err)
	return res
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.MembershipGranted
	err    error
}

func (p *recordingPublisher) PublishMembershipGranted(ctx context.Context, evt events.MembershipGranted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}
