package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/bytehub/internal/model"
	"github.com/Gopher0727/bytehub/internal/repository"
	"github.com/Gopher0727/bytehub/internal/utils"
	"github.com/Gopher0727/bytehub/utils/idgen"
)

var (
	ErrServerNotFound    = errors.New("server not found")
	ErrInvalidInviteCode = errors.New("invalid invite code")
	ErrAlreadyMember     = errors.New("user is already a member of this server")
	ErrNotMember         = errors.New("user is not a member of this server")
	ErrMemberNotFound    = errors.New("member not found")
	ErrNotServerOwner    = errors.New("only the server owner can do this")
	ErrNotServerAdmin    = errors.New("user does not administer this server")
	ErrRoleNameTaken     = errors.New("role name already exists on this server")
	ErrInvalidName       = errors.New("invalid name")
)

const maxInviteCodeAttempts = 10

// CreateServerRequest represents a request to create a new server
type CreateServerRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// JoinServerRequest represents a request to join a server by invite code
type JoinServerRequest struct {
	InviteCode string `json:"invite_code" binding:"required"`
}

// CreateRoleRequest represents a request to create a role on a server
type CreateRoleRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Position int    `json:"position"`
}

// SetAdminRequest toggles a member's server admin flag
type SetAdminRequest struct {
	IsAdmin *bool `json:"is_admin" binding:"required"`
}

// IServerService defines the interface for server management operations
type IServerService interface {
	CreateServer(ctx context.Context, ownerID, name string) (*model.Server, error)
	JoinServer(ctx context.Context, userID, inviteCode string) (*model.Server, error)
	GetServer(ctx context.Context, serverID string) (*model.Server, error)
	ListMembers(ctx context.Context, userID, serverID string) ([]*model.ServerMember, error)
	CreateRole(ctx context.Context, userID, serverID string, req CreateRoleRequest) (*model.Role, error)
	ListRoles(ctx context.Context, serverID string) ([]*model.Role, error)
	SetMemberAdmin(ctx context.Context, requesterID, serverID, targetUserID string, isAdmin bool) error
}

type ServerService struct {
	store *repository.Store
	ids   *idgen.Generator
}

func NewServerService(store *repository.Store, ids *idgen.Generator) *ServerService {
	return &ServerService{store: store, ids: ids}
}

// CreateServer creates a server with a unique invite code. The creator is
// added as the first member with admin rights.
func (s *ServerService) CreateServer(ctx context.Context, ownerID, name string) (*model.Server, error) {
	name = strings.TrimSpace(name)
	if !utils.ValidateName(name, utils.MaxServerNameLen) {
		return nil, ErrInvalidName
	}

	inviteCode, err := s.generateUniqueInviteCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate invite code: %w", err)
	}

	now := time.Now()
	server := &model.Server{
		ID:         s.ids.NextID(),
		Name:       name,
		OwnerID:    ownerID,
		InviteCode: inviteCode,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Servers.Create(ctx, server); err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}
		owner := &model.ServerMember{
			ID:       s.ids.NextID(),
			ServerID: server.ID,
			UserID:   ownerID,
			IsAdmin:  true,
			JoinedAt: now,
		}
		if err := tx.Servers.AddMember(ctx, owner); err != nil {
			return fmt.Errorf("failed to add owner as member: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return server, nil
}

// JoinServer adds the user to the server the invite code points at
func (s *ServerService) JoinServer(ctx context.Context, userID, inviteCode string) (*model.Server, error) {
	if !utils.ValidateInviteCode(inviteCode) {
		return nil, ErrInvalidInviteCode
	}

	server, err := s.store.Servers.FindByInviteCode(ctx, inviteCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidInviteCode
		}
		return nil, fmt.Errorf("failed to find server: %w", err)
	}

	member := &model.ServerMember{
		ID:       s.ids.NextID(),
		ServerID: server.ID,
		UserID:   userID,
		JoinedAt: time.Now(),
	}
	if err := s.store.Servers.AddMember(ctx, member); err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	return server, nil
}

func (s *ServerService) GetServer(ctx context.Context, serverID string) (*model.Server, error) {
	server, err := s.store.Servers.FindByID(ctx, serverID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrServerNotFound
		}
		return nil, fmt.Errorf("failed to find server: %w", err)
	}
	return server, nil
}

// ListMembers is visible to members only
func (s *ServerService) ListMembers(ctx context.Context, userID, serverID string) ([]*model.ServerMember, error) {
	if _, err := s.GetServer(ctx, serverID); err != nil {
		return nil, err
	}
	if _, err := s.store.Servers.FindMember(ctx, serverID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotMember
		}
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	members, err := s.store.Servers.ListMembers(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

func (s *ServerService) CreateRole(ctx context.Context, userID, serverID string, req CreateRoleRequest) (*model.Role, error) {
	server, err := s.GetServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if server.OwnerID != userID {
		return nil, ErrNotServerOwner
	}
	name := strings.TrimSpace(req.Name)
	if !utils.ValidateName(name, utils.MaxRoleNameLen) {
		return nil, ErrInvalidName
	}

	role := &model.Role{
		ID:       s.ids.NextID(),
		ServerID: server.ID,
		Name:     name,
		Position: req.Position,
	}
	if err := s.store.Servers.CreateRole(ctx, role); err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, ErrRoleNameTaken
		}
		return nil, fmt.Errorf("failed to create role: %w", err)
	}
	return role, nil
}

func (s *ServerService) ListRoles(ctx context.Context, serverID string) ([]*model.Role, error) {
	if _, err := s.GetServer(ctx, serverID); err != nil {
		return nil, err
	}
	roles, err := s.store.Servers.ListRoles(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

// SetMemberAdmin lets the owner grant or withdraw server admin rights.
// The owner's own flag cannot be withdrawn.
func (s *ServerService) SetMemberAdmin(ctx context.Context, requesterID, serverID, targetUserID string, isAdmin bool) error {
	server, err := s.GetServer(ctx, serverID)
	if err != nil {
		return err
	}
	if server.OwnerID != requesterID {
		return ErrNotServerOwner
	}
	if targetUserID == server.OwnerID {
		return nil
	}

	if err := s.store.Servers.SetMemberAdmin(ctx, serverID, targetUserID, isAdmin); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberNotFound
		}
		return fmt.Errorf("failed to update member: %w", err)
	}
	return nil
}

// generateUniqueInviteCode draws random codes until one is unused
func (s *ServerService) generateUniqueInviteCode(ctx context.Context) (string, error) {
	for range maxInviteCodeAttempts {
		code := utils.GenerateInviteCode()
		exists, err := s.store.Servers.InviteCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check invite code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("failed to generate unique invite code after maximum attempts")
}

// administers reports whether userID owns server or is one of its admins
func administers(ctx context.Context, servers repository.IServerRepository, server *model.Server, userID string) (bool, error) {
	if server.OwnerID == userID {
		return true, nil
	}
	member, err := servers.FindMember(ctx, server.ID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check server admin: %w", err)
	}
	return member.IsAdmin, nil
}
