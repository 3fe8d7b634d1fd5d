package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/bytehub/internal/service"
	logger "github.com/Gopher0727/bytehub/middleware/log"
)

type PanelHandler struct {
	panelService service.IPanelService
	log          *logger.Logger
}

func NewPanelHandler(panelService service.IPanelService, log *logger.Logger) *PanelHandler {
	return &PanelHandler{
		panelService: panelService,
		log:          nopIfNil(log),
	}
}

// CreatePanel handles POST /byte/panel
func (h *PanelHandler) CreatePanel(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req service.CreatePanelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	result, err := h.panelService.CreatePanel(c.Request.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPanelName), errors.Is(err, service.ErrInvalidRole):
			errorJSON(c, http.StatusBadRequest, err)
		case errors.Is(err, service.ErrMembershipRequired):
			errorJSON(c, http.StatusPaymentRequired, err)
		case errors.Is(err, service.ErrNotServerOwner):
			errorJSON(c, http.StatusForbidden, err)
		case errors.Is(err, service.ErrPanelSlugTaken):
			errorJSON(c, http.StatusConflict, err)
		default:
			internalError(c, h.log, "failed to create panel", err)
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

// ValidateName handles GET /byte/panel/validate-name?name=&server_id=
func (h *PanelHandler) ValidateName(c *gin.Context) {
	serverID := c.Query("server_id")
	if serverID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "server_id is required"})
		return
	}

	result, err := h.panelService.ValidatePanelName(c.Request.Context(), serverID, c.Query("name"))
	if err != nil {
		internalError(c, h.log, "failed to validate panel name", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListPanels handles GET /servers/:id/panels
func (h *PanelHandler) ListPanels(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	panels, err := h.panelService.ListPanels(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrServerNotFound):
			errorJSON(c, http.StatusNotFound, err)
		case errors.Is(err, service.ErrNotServerAdmin):
			errorJSON(c, http.StatusForbidden, err)
		default:
			internalError(c, h.log, "failed to list panels", err)
		}
		return
	}
	c.JSON(http.StatusOK, panels)
}
