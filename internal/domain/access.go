package domain

// DefaultGroup is the group every identity belongs to, including identities
// the evaluator has never seen.
const DefaultGroup = "default"

// AnonymousUser substitutes for an absent user identity.
const AnonymousUser = "unknown"

// AccessEvaluator answers whether a user belongs to a capability group.
// It is a stand-in for a real authorization service; keeping the contract
// to a single boolean predicate lets the authority source change without
// touching callers.
type AccessEvaluator interface {
	HasAccess(userID, group string) bool
}
