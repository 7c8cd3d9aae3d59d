// Package quota decides whether saving or sharing a board is allowed under an
// owner's subscription tier.
//
// Every function here is pure: callers fetch the tier snapshot and the current
// saved-board count and pass them in. Nothing is fetched or cached.
package quota

import (
	"github.com/roomcraft/visionboard/internal/domain"
	domainerrors "github.com/roomcraft/visionboard/internal/errors"
)

// Reason is why an action was denied. Values match the domain error codes.
type Reason string

// Denial reasons.
const (
	ReasonQuotaExceeded       = Reason(domainerrors.CodeQuotaExceeded)
	ReasonSharingNotPermitted = Reason(domainerrors.CodeSharingNotPermitted)
	ReasonBoardNotSaved       = Reason(domainerrors.CodeBoardNotSaved)
	ReasonBoardEmpty          = Reason(domainerrors.CodeBoardEmpty)
)

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
}

// Allow is the permitting decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a denial carrying the reason.
func Deny(reason Reason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Err converts a denial into its domain error. It returns nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonQuotaExceeded:
		return domainerrors.ErrQuotaExceeded
	case ReasonSharingNotPermitted:
		return domainerrors.ErrSharingNotPermitted
	case ReasonBoardNotSaved:
		return domainerrors.ErrBoardNotSaved
	case ReasonBoardEmpty:
		return domainerrors.ErrBoardEmpty
	default:
		return domainerrors.Forbidden("action not permitted")
	}
}

// CanCreateNewSavedBoard decides whether a save may proceed.
// Updating a board that already has an ID never consumes quota.
func CanCreateNewSavedBoard(tier domain.SubscriptionTier, currentSavedBoardCount int, isUpdatingExisting bool) Decision {
	if isUpdatingExisting {
		return Allow()
	}
	if tier.Limits.IsUnlimited() {
		return Allow()
	}
	if currentSavedBoardCount < tier.Limits.MaxSavedBoards {
		return Allow()
	}
	return Deny(ReasonQuotaExceeded)
}

// CanShare decides whether a board may be published.
// An empty board is denied for every tier, before the plan is consulted.
func CanShare(tier domain.SubscriptionTier, board *domain.VisionBoard) Decision {
	if board == nil || board.ItemCount() == 0 {
		return Deny(ReasonBoardEmpty)
	}
	if !tier.Limits.CanShare {
		return Deny(ReasonSharingNotPermitted)
	}
	if !board.IsSaved() {
		return Deny(ReasonBoardNotSaved)
	}
	return Allow()
}

// RemainingBoards returns how many more boards can be saved, or
// domain.Unlimited for unbounded tiers.
func RemainingBoards(tier domain.SubscriptionTier, currentSavedBoardCount int) int {
	if tier.Limits.IsUnlimited() {
		return domain.Unlimited
	}
	return max(tier.Limits.MaxSavedBoards-currentSavedBoardCount, 0)
}
