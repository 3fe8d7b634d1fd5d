package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/bytehub/internal/service"
	logger "github.com/Gopher0727/bytehub/middleware/log"
)

type ServerHandler struct {
	serverService service.IServerService
	log           *logger.Logger
}

func NewServerHandler(serverService service.IServerService, log *logger.Logger) *ServerHandler {
	return &ServerHandler{
		serverService: serverService,
		log:           nopIfNil(log),
	}
}

// CreateServer handles server creation
func (h *ServerHandler) CreateServer(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req service.CreateServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	server, err := h.serverService.CreateServer(c.Request.Context(), userID, req.Name)
	if err != nil {
		if errors.Is(err, service.ErrInvalidName) {
			errorJSON(c, http.StatusBadRequest, err)
			return
		}
		internalError(c, h.log, "failed to create server", err)
		return
	}
	c.JSON(http.StatusCreated, server)
}

// JoinServer handles joining a server via invite code
func (h *ServerHandler) JoinServer(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req service.JoinServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	server, err := h.serverService.JoinServer(c.Request.Context(), userID, req.InviteCode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInviteCode):
			errorJSON(c, http.StatusNotFound, err)
		case errors.Is(err, service.ErrAlreadyMember):
			errorJSON(c, http.StatusConflict, err)
		default:
			internalError(c, h.log, "failed to join server", err)
		}
		return
	}
	c.JSON(http.StatusOK, server)
}

// GetServer returns a server with its boost aggregate
func (h *ServerHandler) GetServer(c *gin.Context) {
	server, err := h.serverService.GetServer(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrServerNotFound) {
			errorJSON(c, http.StatusNotFound, err)
			return
		}
		internalError(c, h.log, "failed to get server", err)
		return
	}
	c.JSON(http.StatusOK, server)
}

func (h *ServerHandler) ListMembers(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	members, err := h.serverService.ListMembers(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrServerNotFound):
			errorJSON(c, http.StatusNotFound, err)
		case errors.Is(err, service.ErrNotMember):
			errorJSON(c, http.StatusForbidden, err)
		default:
			internalError(c, h.log, "failed to list members", err)
		}
		return
	}
	c.JSON(http.StatusOK, members)
}

func (h *ServerHandler) CreateRole(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req service.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	role, err := h.serverService.CreateRole(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrServerNotFound):
			errorJSON(c, http.StatusNotFound, err)
		case errors.Is(err, service.ErrNotServerOwner):
			errorJSON(c, http.StatusForbidden, err)
		case errors.Is(err, service.ErrInvalidName):
			errorJSON(c, http.StatusBadRequest, err)
		case errors.Is(err, service.ErrRoleNameTaken):
			errorJSON(c, http.StatusConflict, err)
		default:
			internalError(c, h.log, "failed to create role", err)
		}
		return
	}
	c.JSON(http.StatusCreated, role)
}

func (h *ServerHandler) ListRoles(c *gin.Context) {
	roles, err := h.serverService.ListRoles(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrServerNotFound) {
			errorJSON(c, http.StatusNotFound, err)
			return
		}
		internalError(c, h.log, "failed to list roles", err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

// SetMemberAdmin handles PUT /servers/:id/members/:user_id/admin
func (h *ServerHandler) SetMemberAdmin(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req service.SetAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	err := h.serverService.SetMemberAdmin(c.Request.Context(), userID, c.Param("id"), c.Param("user_id"), *req.IsAdmin)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrServerNotFound), errors.Is(err, service.ErrMemberNotFound):
			errorJSON(c, http.StatusNotFound, err)
		case errors.Is(err, service.ErrNotServerOwner):
			errorJSON(c, http.StatusForbidden, err)
		default:
			internalError(c, h.log, "failed to update member", err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
