package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/bytehub/internal/service"
	logger "github.com/Gopher0727/bytehub/middleware/log"
)

type BoostHandler struct {
	boostService service.IBoostService
	log          *logger.Logger
}

func NewBoostHandler(boostService service.IBoostService, log *logger.Logger) *BoostHandler {
	return &BoostHandler{
		boostService: boostService,
		log:          nopIfNil(log),
	}
}

// ListBoosts handles GET /boosts
func (h *BoostHandler) ListBoosts(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	boosts, err := h.boostService.ListUserBoosts(c.Request.Context(), userID)
	if err != nil {
		internalError(c, h.log, "failed to list boosts", err)
		return
	}
	c.JSON(http.StatusOK, boosts)
}

// ApplyBoost handles POST /boosts
func (h *BoostHandler) ApplyBoost(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req service.ApplyBoostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	boost, err := h.boostService.ApplyBoost(c.Request.Context(), userID, req.BoostID, req.ServerID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBoostNotFound),
			errors.Is(err, service.ErrServerNotFound),
			errors.Is(err, service.ErrNotServerAdmin):
			errorJSON(c, http.StatusNotFound, err)
		case errors.Is(err, service.ErrBoostAlreadyAssigned):
			errorJSON(c, http.StatusConflict, err)
		default:
			internalError(c, h.log, "failed to apply boost", err)
		}
		return
	}
	c.JSON(http.StatusOK, boost)
}

// RemoveBoost handles DELETE /boosts/:id
func (h *BoostHandler) RemoveBoost(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.boostService.RemoveBoost(c.Request.Context(), userID, c.Param("id")); err != nil {
		if errors.Is(err, service.ErrBoostNotFoundOrNotAssigned) {
			errorJSON(c, http.StatusNotFound, err)
			return
		}
		internalError(c, h.log, "failed to remove boost", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListServerBoosts handles GET /servers/:id/boosts
func (h *BoostHandler) ListServerBoosts(c *gin.Context) {
	boosts, err := h.boostService.ListServerBoosts(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrServerNotFound) {
			errorJSON(c, http.StatusNotFound, err)
			return
		}
		internalError(c, h.log, "failed to list server boosts", err)
		return
	}
	c.JSON(http.StatusOK, boosts)
}
