package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/bytehub/internal/model"
	"github.com/Gopher0727/bytehub/internal/pkg/metrics"
	"github.com/Gopher0727/bytehub/internal/repository"
	"github.com/Gopher0727/bytehub/internal/utils"
	"github.com/Gopher0727/bytehub/utils/idgen"
)

var (
	ErrMembershipRequired = errors.New("an active membership is required")
	ErrInvalidPanelName   = errors.New("invalid panel name")
	ErrPanelSlugTaken     = errors.New("a panel with this name already exists on the server")
	ErrInvalidRole        = errors.New("role does not belong to the server")
)

const (
	MaxSlugLen         = 48
	PanelCategoryName  = "General"
	panelChannelSuffix = "-panel"
	NameReasonEmpty    = "empty"
	NameReasonTooLong  = "too_long"
	NameReasonTaken    = "taken"
)

// Slugify lowercases name, collapses every run of characters outside
// [a-z0-9] into one hyphen, trims hyphens at both ends and caps the result
// at MaxSlugLen bytes.
func Slugify(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	slug := b.String()
	if len(slug) > MaxSlugLen {
		slug = strings.TrimRight(slug[:MaxSlugLen], "-")
	}
	return slug
}

// checkPanelName trims raw and derives its slug. A non-empty reason means
// the name is rejected before any lookup.
func checkPanelName(raw string) (name, slug, reason string) {
	name = strings.TrimSpace(raw)
	slug = Slugify(name)
	switch {
	case slug == "":
		return name, "", NameReasonEmpty
	case !utils.ValidateName(name, utils.MaxPanelNameLen):
		return name, "", NameReasonTooLong
	}
	return name, slug, ""
}

// CreatePanelRequest represents a request to provision a control panel
type CreatePanelRequest struct {
	ServerID string   `json:"server_id" binding:"required"`
	Name     string   `json:"name" binding:"required"`
	RoleIDs  []string `json:"role_ids"`
}

// PanelResult is a provisioned panel and its private channel
type PanelResult struct {
	Panel   *model.Panel   `json:"panel"`
	Channel *model.Channel `json:"channel"`
}

// NameValidation answers validate-name. Slug is set when Valid, Reason otherwise.
type NameValidation struct {
	Valid  bool   `json:"valid"`
	Slug   string `json:"slug,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// MembershipChecker reports whether a user currently holds an active membership
type MembershipChecker interface {
	IsActive(ctx context.Context, userID string) (bool, error)
}

// IPanelService defines the interface for panel provisioning
type IPanelService interface {
	CreatePanel(ctx context.Context, requesterID string, req CreatePanelRequest) (*PanelResult, error)
	ValidatePanelName(ctx context.Context, serverID, name string) (*NameValidation, error)
	ListPanels(ctx context.Context, requesterID, serverID string) ([]*model.Panel, error)
}

type PanelService struct {
	store       *repository.Store
	memberships MembershipChecker
	ids         *idgen.Generator
}

func NewPanelService(store *repository.Store, memberships MembershipChecker, ids *idgen.Generator) *PanelService {
	return &PanelService{store: store, memberships: memberships, ids: ids}
}

// CreatePanel provisions the panel, its private channel, the channel
// overrides and the role access rows in one transaction. Checks run in
// order: ownership, membership, name, slug uniqueness, roles.
func (s *PanelService) CreatePanel(ctx context.Context, requesterID string, req CreatePanelRequest) (*PanelResult, error) {
	server, err := s.store.Servers.FindByID(ctx, req.ServerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotServerOwner
		}
		return nil, fmt.Errorf("failed to find server: %w", err)
	}
	if server.OwnerID != requesterID {
		return nil, ErrNotServerOwner
	}

	active, err := s.memberships.IsActive(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrMembershipRequired
	}

	name, slug, reason := checkPanelName(req.Name)
	if reason != "" {
		return nil, ErrInvalidPanelName
	}
	roleIDs := dedupe(req.RoleIDs)

	var result *PanelResult
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		// serializes provisioning per server
		if _, err := tx.Servers.FindByIDForUpdate(ctx, server.ID); err != nil {
			return fmt.Errorf("failed to lock server: %w", err)
		}

		taken, err := tx.Panels.ExistsBySlug(ctx, server.ID, slug)
		if err != nil {
			return fmt.Errorf("failed to check slug: %w", err)
		}
		if taken {
			return ErrPanelSlugTaken
		}

		roles, err := tx.Servers.FindRolesByIDs(ctx, server.ID, roleIDs)
		if err != nil {
			return fmt.Errorf("failed to find roles: %w", err)
		}
		if len(roles) != len(roleIDs) {
			return ErrInvalidRole
		}

		result, err = s.provision(ctx, tx, server, requesterID, name, slug, roleIDs)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.PanelsCreated.Inc()
	return result, nil
}

func (s *PanelService) provision(ctx context.Context, tx *repository.Store, server *model.Server, ownerID, name, slug string, roleIDs []string) (*PanelResult, error) {
	now := time.Now()

	category, err := tx.Servers.FindCategoryByName(ctx, server.ID, PanelCategoryName)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		category = &model.Category{
			ID:        s.ids.NextID(),
			ServerID:  server.ID,
			Name:      PanelCategoryName,
			CreatedAt: now,
		}
		err = tx.Servers.CreateCategory(ctx, category)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve category: %w", err)
	}

	channel := &model.Channel{
		ID:         s.ids.NextID(),
		ServerID:   server.ID,
		CategoryID: &category.ID,
		Name:       slug + panelChannelSuffix,
		Type:       model.ChannelTypeText,
		IsPrivate:  true,
		CreatedAt:  now,
	}
	if err := tx.Servers.CreateChannel(ctx, channel); err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	// default deny for everyone, then one allow per role
	perms := []*model.ChannelPermission{{
		ID:        s.ids.NextID(),
		ChannelID: channel.ID,
		CanView:   false,
		CanSend:   false,
		CreatedAt: now,
	}}
	for _, roleID := range roleIDs {
		perms = append(perms, &model.ChannelPermission{
			ID:        s.ids.NextID(),
			ChannelID: channel.ID,
			RoleID:    &roleID,
			CanView:   true,
			CanSend:   true,
			CreatedAt: now,
		})
	}
	if err := tx.Servers.CreateChannelPermissions(ctx, perms); err != nil {
		return nil, fmt.Errorf("failed to create channel permissions: %w", err)
	}

	panel := &model.Panel{
		ID:        s.ids.NextID(),
		OwnerID:   ownerID,
		ServerID:  server.ID,
		ChannelID: channel.ID,
		Name:      name,
		Slug:      slug,
		CreatedAt: now,
	}
	if err := tx.Panels.Create(ctx, panel); err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, ErrPanelSlugTaken
		}
		return nil, fmt.Errorf("failed to create panel: %w", err)
	}

	access := make([]*model.PanelRoleAccess, 0, len(roleIDs))
	for _, roleID := range roleIDs {
		access = append(access, &model.PanelRoleAccess{
			ID:        s.ids.NextID(),
			PanelID:   panel.ID,
			RoleID:    roleID,
			CanView:   true,
			CanManage: false,
			CreatedAt: now,
		})
	}
	if err := tx.Panels.CreateRoleAccess(ctx, access); err != nil {
		return nil, fmt.Errorf("failed to create panel role access: %w", err)
	}
	for _, a := range access {
		panel.RoleAccess = append(panel.RoleAccess, *a)
	}

	return &PanelResult{Panel: panel, Channel: channel}, nil
}

// ValidatePanelName is read-only and safe to call on every keystroke
func (s *PanelService) ValidatePanelName(ctx context.Context, serverID, name string) (*NameValidation, error) {
	_, slug, reason := checkPanelName(name)
	if reason != "" {
		return &NameValidation{Valid: false, Reason: reason}, nil
	}

	taken, err := s.store.Panels.ExistsBySlug(ctx, serverID, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to check slug: %w", err)
	}
	if taken {
		return &NameValidation{Valid: false, Reason: NameReasonTaken}, nil
	}
	return &NameValidation{Valid: true, Slug: slug}, nil
}

// ListPanels is visible to server admins
func (s *PanelService) ListPanels(ctx context.Context, requesterID, serverID string) ([]*model.Panel, error) {
	server, err := s.store.Servers.FindByID(ctx, serverID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrServerNotFound
		}
		return nil, fmt.Errorf("failed to find server: %w", err)
	}
	ok, err := administers(ctx, s.store.Servers, server, requesterID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotServerAdmin
	}

	panels, err := s.store.Panels.ListByServer(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list panels: %w", err)
	}
	return panels, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
