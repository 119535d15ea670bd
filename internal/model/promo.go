package model

import "time"

// PromoCode grants a one-time balance credit to each user who redeems it,
// up to MaxUses redemptions in total. Code is matched case-sensitively.
type PromoCode struct {
	ID           string    `json:"id"`
	Code         string    `json:"code"`
	RewardAmount int64     `json:"reward_amount"`
	MaxUses      int       `json:"max_uses"`
	CurrentUses  int       `json:"current_uses"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Remaining is the number of redemptions still available.
func (p *PromoCode) Remaining() int {
	if p.CurrentUses >= p.MaxUses {
		return 0
	}
	return p.MaxUses - p.CurrentUses
}

// PromoActivation marks that UserID has redeemed PromoCodeID. Rows are
// append-only; at most one exists per (UserID, PromoCodeID).
type PromoActivation struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	PromoCodeID string    `json:"promo_code_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Redemption is the outcome of a successful promo redemption.
type Redemption struct {
	Reward     int64 `json:"reward"`
	NewBalance int64 `json:"new_balance"`
}

// BalanceAction is the tag on a direct balance adjustment request.
type BalanceAction string

const (
	BalanceAdd      BalanceAction = "add"
	BalanceSubtract BalanceAction = "subtract"
)

// Delta converts a tagged amount into a signed balance change. ok is false for
// an unknown action.
func (a BalanceAction) Delta(amount int64) (delta int64, ok bool) {
	switch a {
	case BalanceAdd:
		return amount, true
	case BalanceSubtract:
		return -amount, true
	default:
		return 0, false
	}
}
