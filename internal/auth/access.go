// Package auth provides the static group-membership evaluator used until a
// real authorization service is wired in.
package auth

import (
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/conduitchat/conduit/internal/domain"
)

// StaticEvaluator answers group membership from a fixed table. Unknown
// users are members of the default group only; unknown groups match
// nothing.
type StaticEvaluator struct {
	groups map[string][]string
}

var _ domain.AccessEvaluator = (*StaticEvaluator)(nil)

// DefaultGroups is the placeholder membership table used until a real
// authorization service replaces the evaluator.
func DefaultGroups() map[string][]string {
	return map[string][]string{
		"test@test.com":     {"default", "admin", "mcp_users"},
		"user@example.com":  {"default", "mcp_users"},
		"admin@example.com": {"default", "admin", "mcp_users", "super_admin"},
	}
}

// NewStaticEvaluator copies the membership table so later mutation of the
// argument cannot affect evaluation.
func NewStaticEvaluator(groups map[string][]string) *StaticEvaluator {
	copied := make(map[string][]string, len(groups))
	for user, gs := range groups {
		copied[user] = slices.Clone(gs)
	}
	return &StaticEvaluator{groups: copied}
}

// HasAccess implements domain.AccessEvaluator.
func (e *StaticEvaluator) HasAccess(userID, group string) bool {
	if userID == "" {
		userID = domain.AnonymousUser
	}

	userGroups, ok := e.groups[userID]
	if !ok {
		userGroups = []string{domain.DefaultGroup}
	}

	authorized := slices.Contains(userGroups, group)

	log.Debug().
		Str("user", userID).
		Str("group", group).
		Bool("authorized", authorized).
		Msg("access check")

	return authorized
}
