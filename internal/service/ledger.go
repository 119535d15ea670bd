package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/secretum/internal/apperror"
	"github.com/sakif/secretum/internal/model"
	"github.com/sakif/secretum/internal/repository"
	"github.com/sakif/secretum/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// LedgerService changes user balances, directly or by redeeming promo codes.
type LedgerService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewLedgerService creates a LedgerService over store.
func NewLedgerService(store repository.Store, logger *slog.Logger) *LedgerService {
	return &LedgerService{store: store, logger: logger}
}

// Balance returns the user's profile with the current balance.
func (s *LedgerService) Balance(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("user_id", "user id is required")
	}
	user, err := s.store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/ledger: loading user %s: %w", userID, err)
	}
	return user, nil
}

// Adjust adds delta (which may be negative) to the user's balance and returns
// the new balance. The change is one atomic statement, so concurrent calls
// never lose an update. No lower bound is enforced.
func (s *LedgerService) Adjust(ctx context.Context, userID string, delta int64) (balance int64, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger.adjust",
		attribute.String("user.id", userID), attribute.Int64("ledger.delta", delta))
	defer func() { telemetry.EndSpan(span, err) }()

	if userID == "" {
		return 0, apperror.ValidationFailed("user_id", "user id is required")
	}

	balance, err = s.store.Users().AddBalance(ctx, userID, delta)
	if err != nil {
		return 0, fmt.Errorf("service/ledger: adjusting balance of %s: %w", userID, err)
	}

	s.logger.Info("balance adjusted",
		slog.String("userID", userID),
		slog.Int64("delta", delta),
		slog.Int64("balance", balance),
	)
	return balance, nil
}

// AdjustByAction applies an "add" or "subtract" of a non-negative amount.
func (s *LedgerService) AdjustByAction(ctx context.Context, userID string, action model.BalanceAction, amount int64) (int64, error) {
	if amount < 0 {
		return 0, apperror.ValidationFailed("amount", "amount must not be negative")
	}
	delta, ok := action.Delta(amount)
	if !ok {
		return 0, apperror.ValidationFailed("action", fmt.Sprintf("unknown action %q, want add or subtract", action))
	}
	return s.Adjust(ctx, userID, delta)
}

// RedeemPromo credits the promo code's reward to the user, at most once per
// user and at most MaxUses times in total.
//
// Every step runs in one write transaction: either the activation is
// recorded, the counter bumped and the balance credited together, or nothing
// changes. The checks run in a fixed order and the first failure wins:
//
//	empty code          → Validation
//	unknown user        → NotFound
//	unknown code        → NotFound
//	inactive code       → Inactive
//	no uses left        → Exhausted
//	already redeemed    → Conflict
//
// The counter update re-checks the limit in SQL, and the activation table has
// a UNIQUE (user, code) key, so the invariants hold even if a read inside the
// transaction were stale.
func (s *LedgerService) RedeemPromo(ctx context.Context, userID, code string) (result model.Redemption, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger.redeem_promo", attribute.String("user.id", userID))
	defer func() { telemetry.EndSpan(span, err) }()

	code = strings.TrimSpace(code)
	if code == "" {
		return model.Redemption{}, apperror.ValidationFailed("code", "promo code is required")
	}
	span.SetAttributes(attribute.String("promo.code", code))

	err = s.store.WithinTx(ctx, func(tx repository.Repositories) error {
		if _, err := tx.Users().GetUserByID(ctx, userID); err != nil {
			return err
		}

		promo, err := tx.PromoCodes().GetPromoCodeByCode(ctx, code)
		if err != nil {
			return err
		}
		if !promo.IsActive {
			return apperror.Inactive("promo code", code)
		}
		if promo.Remaining() == 0 {
			return apperror.Exhausted("promo code", code)
		}

		redeemed, err := tx.Activations().HasActivation(ctx, userID, promo.ID)
		if err != nil {
			return err
		}
		if redeemed {
			return apperror.AlreadyRedeemed(code)
		}

		if err := tx.Activations().CreateActivation(ctx, &model.PromoActivation{
			UserID:      userID,
			PromoCodeID: promo.ID,
		}); err != nil {
			if errors.Is(err, apperror.ErrConflict) {
				return apperror.AlreadyRedeemed(code)
			}
			return err
		}

		if err := tx.PromoCodes().IncrementUses(ctx, promo.ID); err != nil {
			if errors.Is(err, apperror.ErrExhausted) {
				return apperror.Exhausted("promo code", code)
			}
			return err
		}

		balance, err := tx.Users().AddBalance(ctx, userID, promo.RewardAmount)
		if err != nil {
			return err
		}

		result = model.Redemption{Reward: promo.RewardAmount, NewBalance: balance}
		return nil
	})
	if err != nil {
		s.logger.Info("promo redemption rejected",
			slog.String("userID", userID),
			slog.String("code", code),
			slog.String("reason", err.Error()),
		)
		return model.Redemption{}, fmt.Errorf("service/ledger: redeeming %q for %s: %w", code, userID, err)
	}

	s.logger.Info("promo redeemed",
		slog.String("userID", userID),
		slog.String("code", code),
		slog.Int64("reward", result.Reward),
		slog.Int64("balance", result.NewBalance),
	)
	return result, nil
}
