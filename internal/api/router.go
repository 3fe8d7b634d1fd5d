package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Gopher0727/bytehub/internal/handler"
	"github.com/Gopher0727/bytehub/utils/ratelimit"
)

// Handlers groups every HTTP handler the router mounts
type Handlers struct {
	Membership *handler.MembershipHandler
	Tier       *handler.TierHandler
	Boost      *handler.BoostHandler
	Server     *handler.ServerHandler
	Panel      *handler.PanelHandler
}

// NewRouter builds the gin engine with global middleware and all routes
func NewRouter(mode string, mw *MiddlewareManager, h Handlers) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	r := gin.New()
	r.Use(mw.Trace(), mw.Logger(), mw.Metrics(), mw.Recovery(), mw.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	RegisterRoutes(r, mw, h)
	return r
}

// RegisterRoutes registers all API routes
func RegisterRoutes(r *gin.Engine, mw *MiddlewareManager, h Handlers) {
	api := r.Group("/api/v1")
	api.Use(mw.JWTAuth(), mw.RateLimiterByEndpoint(ratelimit.EndpointAPI))

	admin := api.Group("/admin")
	admin.Use(mw.RequireAdmin())
	{
		admin.POST("/users/:user_id/membership", h.Membership.Grant)
		admin.DELETE("/users/:user_id/membership", h.Membership.Revoke)
		admin.POST("/tiers", h.Tier.CreateTier)
		admin.PUT("/tiers/:id", h.Tier.UpdateTier)
	}

	store := api.Group("/store")
	{
		store.GET("/tiers", h.Tier.ListTiers)
		store.POST("/purchase", mw.RateLimiterByEndpoint(ratelimit.EndpointPurchase), h.Membership.Purchase)
	}

	user := api.Group("/user")
	{
		user.GET("/membership", h.Membership.GetMembership)
		user.PATCH("/membership/metadata", h.Membership.UpdateMetadata)
	}

	boosts := api.Group("/boosts")
	{
		boosts.GET("", h.Boost.ListBoosts)
		boosts.POST("", mw.RateLimiterByEndpoint(ratelimit.EndpointBoost), h.Boost.ApplyBoost)
		boosts.DELETE("/:id", mw.RateLimiterByEndpoint(ratelimit.EndpointBoost), h.Boost.RemoveBoost)
	}

	servers := api.Group("/servers")
	{
		servers.POST("", h.Server.CreateServer)
		servers.POST("/join", h.Server.JoinServer)
		servers.GET("/:id", h.Server.GetServer)
		servers.GET("/:id/members", h.Server.ListMembers)
		servers.PUT("/:id/members/:user_id/admin", h.Server.SetMemberAdmin)
		servers.GET("/:id/roles", h.Server.ListRoles)
		servers.POST("/:id/roles", h.Server.CreateRole)
		servers.GET("/:id/boosts", h.Boost.ListServerBoosts)
		servers.GET("/:id/panels", h.Panel.ListPanels)
	}

	panel := api.Group("/byte/panel")
	{
		panel.POST("", h.Panel.CreatePanel)
		panel.GET("/validate-name", h.Panel.ValidateName)
	}
}
