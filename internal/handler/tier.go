package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/bytehub/internal/service"
	logger "github.com/Gopher0727/bytehub/middleware/log"
)

type TierHandler struct {
	tierService service.ITierService
	log         *logger.Logger
}

func NewTierHandler(tierService service.ITierService, log *logger.Logger) *TierHandler {
	return &TierHandler{
		tierService: tierService,
		log:         nopIfNil(log),
	}
}

// ListTiers handles GET /store/tiers
func (h *TierHandler) ListTiers(c *gin.Context) {
	tiers, err := h.tierService.ListTiers(c.Request.Context())
	if err != nil {
		internalError(c, h.log, "failed to list tiers", err)
		return
	}
	c.JSON(http.StatusOK, tiers)
}

// CreateTier handles POST /admin/tiers
func (h *TierHandler) CreateTier(c *gin.Context) {
	var req service.TierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	tier, err := h.tierService.CreateTier(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrTierNameTaken) {
			errorJSON(c, http.StatusConflict, err)
			return
		}
		internalError(c, h.log, "failed to create tier", err)
		return
	}
	c.JSON(http.StatusCreated, tier)
}

// UpdateTier handles PUT /admin/tiers/:id
func (h *TierHandler) UpdateTier(c *gin.Context) {
	var req service.TierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	tier, err := h.tierService.UpdateTier(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTierNotFound):
			errorJSON(c, http.StatusNotFound, err)
		case errors.Is(err, service.ErrTierNameTaken):
			errorJSON(c, http.StatusConflict, err)
		default:
			internalError(c, h.log, "failed to update tier", err)
		}
		return
	}
	c.JSON(http.StatusOK, tier)
}
