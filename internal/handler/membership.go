package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/bytehub/internal/model"
	"github.com/Gopher0727/bytehub/internal/service"
	logger "github.com/Gopher0727/bytehub/middleware/log"
)

type MembershipHandler struct {
	membershipService service.IMembershipService
	log               *logger.Logger
}

func NewMembershipHandler(membershipService service.IMembershipService, log *logger.Logger) *MembershipHandler {
	return &MembershipHandler{
		membershipService: membershipService,
		log:               nopIfNil(log),
	}
}

// GrantRequest is the optional body of the admin grant endpoint
type GrantRequest struct {
	TierID string `json:"tier_id"`
	Months int    `json:"months" binding:"gte=0"`
}

// PurchaseRequest is the body of the self-purchase endpoint
type PurchaseRequest struct {
	TierID string `json:"tier_id"`
}

// MetadataRequest patches the metadata of the active membership
type MetadataRequest struct {
	WelcomeShownAt      *time.Time `json:"welcome_shown_at"`
	ExpiryNoticeShownAt *time.Time `json:"expiry_notice_shown_at"`
}

// Grant handles POST /admin/users/:user_id/membership
func (h *MembershipHandler) Grant(c *gin.Context) {
	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	result, err := h.membershipService.Grant(c.Request.Context(), c.Param("user_id"), req.TierID, req.Months)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTierNotFound),
			errors.Is(err, service.ErrAlreadyActive),
			errors.Is(err, service.ErrInvalidMonths):
			errorJSON(c, http.StatusBadRequest, err)
		default:
			internalError(c, h.log, "failed to grant membership", err)
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// Revoke handles DELETE /admin/users/:user_id/membership
func (h *MembershipHandler) Revoke(c *gin.Context) {
	if _, err := h.membershipService.Revoke(c.Request.Context(), c.Param("user_id")); err != nil {
		internalError(c, h.log, "failed to revoke membership", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Purchase handles POST /store/purchase
func (h *MembershipHandler) Purchase(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	result, err := h.membershipService.Purchase(c.Request.Context(), userID, req.TierID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTierRequired), errors.Is(err, service.ErrAlreadyActive):
			errorJSON(c, http.StatusBadRequest, err)
		case errors.Is(err, service.ErrTierNotFound):
			errorJSON(c, http.StatusNotFound, err)
		default:
			internalError(c, h.log, "failed to purchase membership", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"membership": result.Membership,
		"message":    fmt.Sprintf("%s membership activated", result.Tier.Name),
	})
}

// GetMembership handles GET /user/membership. The body is null without an entry.
func (h *MembershipHandler) GetMembership(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	status, err := h.membershipService.Status(c.Request.Context(), userID)
	if err != nil {
		internalError(c, h.log, "failed to load membership", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// UpdateMetadata handles PATCH /user/membership/metadata
func (h *MembershipHandler) UpdateMetadata(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req MetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	patch := model.MembershipMetadata{
		WelcomeShownAt:      req.WelcomeShownAt,
		ExpiryNoticeShownAt: req.ExpiryNoticeShownAt,
	}
	status, err := h.membershipService.UpdateMetadata(c.Request.Context(), userID, patch)
	if err != nil {
		if errors.Is(err, service.ErrMembershipNotFound) {
			errorJSON(c, http.StatusNotFound, err)
			return
		}
		internalError(c, h.log, "failed to update membership metadata", err)
		return
	}
	c.JSON(http.StatusOK, status)
}
