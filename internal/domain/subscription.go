package domain

// Tier is a subscription plan.
type Tier string

// Subscription tiers.
const (
	TierFree   Tier = "free"
	TierPro    Tier = "pro"
	TierStudio Tier = "studio"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierStudio:
		return true
	default:
		return false
	}
}

// Unlimited marks a limit with no upper bound.
const Unlimited = -1

// Limits are the entitlements a tier grants.
type Limits struct {
	MaxSavedBoards int  `json:"max_saved_boards"` // Unlimited (-1) for no bound
	CanShare       bool `json:"can_share"`
}

// IsUnlimited reports whether saved boards are unbounded.
func (l Limits) IsUnlimited() bool {
	return l.MaxSavedBoards < 0
}

// SubscriptionTier is an immutable snapshot of an owner's plan, taken once per
// quota evaluation.
type SubscriptionTier struct {
	Tier   Tier   `json:"tier"`
	Limits Limits `json:"limits"`
}

// DefaultTierLimits is the built-in plan table.
func DefaultTierLimits() map[Tier]Limits {
	return map[Tier]Limits{
		TierFree:   {MaxSavedBoards: 1, CanShare: false},
		TierPro:    {MaxSavedBoards: 10, CanShare: true},
		TierStudio: {MaxSavedBoards: Unlimited, CanShare: true},
	}
}
