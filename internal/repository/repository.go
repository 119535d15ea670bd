package repository

import (
	"context"

	"github.com/sakif/secretum/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	// UpsertByProvider inserts user, or, if a row with the same
	// (Provider, ProviderUserID) exists, only touches its updated_at. In both
	// cases user is overwritten with the stored row. created reports which
	// branch ran.
	UpsertByProvider(ctx context.Context, user *model.User) (created bool, err error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// AddBalance applies delta in a single statement and returns the result.
	AddBalance(ctx context.Context, id string, delta int64) (int64, error)
}

type PromoCodeRepository interface {
	CreatePromoCode(ctx context.Context, promo *model.PromoCode) error
	GetPromoCodeByCode(ctx context.Context, code string) (*model.PromoCode, error)
	ListPromoCodes(ctx context.Context, opts ListOptions) ([]model.PromoCode, error)
	// IncrementUses bumps current_uses only while the code is active and
	// below max_uses.
	IncrementUses(ctx context.Context, id string) error
}

type ActivationRepository interface {
	HasActivation(ctx context.Context, userID, promoCodeID string) (bool, error)
	CreateActivation(ctx context.Context, activation *model.PromoActivation) error
}

// Repositories groups the repositories bound to one connection or transaction.
type Repositories interface {
	Users() UserRepository
	PromoCodes() PromoCodeRepository
	Activations() ActivationRepository
}

// Store is the top-level persistence handle. WithinTx runs fn inside a single
// write transaction; fn's error (or a panic) rolls everything back.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(tx Repositories) error) error
}
