// Package events carries domain events from the request path to their
// asynchronous consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const TypeMembershipGranted = "membership.granted"

// MembershipGranted is emitted after a grant commits for a tier that hands
// out initial boosts.
type MembershipGranted struct {
	MembershipID  string    `json:"membership_id"`
	UserID        string    `json:"user_id"`
	TierID        string    `json:"tier_id"`
	InitialBoosts int       `json:"initial_boosts"`
	GrantedAt     time.Time `json:"granted_at"`
}

func (e MembershipGranted) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func DecodeMembershipGranted(data []byte) (MembershipGranted, error) {
	var evt MembershipGranted
	if err := json.Unmarshal(data, &evt); err != nil {
		return evt, fmt.Errorf("failed to decode %s event: %w", TypeMembershipGranted, err)
	}
	if evt.MembershipID == "" || evt.UserID == "" {
		return evt, fmt.Errorf("invalid %s event: missing membership or user id", TypeMembershipGranted)
	}
	return evt, nil
}

// Publisher delivers domain events. Delivery is at-most-once from the
// caller's point of view: errors are reported but never retried by callers.
type Publisher interface {
	PublishMembershipGranted(ctx context.Context, evt MembershipGranted) error
}

// BoostGranter is the consumer side of MembershipGranted.
type BoostGranter interface {
	GrantInitialBoosts(ctx context.Context, userID, membershipID string, count int) (int, error)
}
