package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/secretum/internal/apperror"
	"github.com/sakif/secretum/internal/model"
	"github.com/sakif/secretum/internal/repository"
)

var (
	_ repository.PromoCodeRepository  = (*PromoDB)(nil)
	_ repository.ActivationRepository = (*ActivationDB)(nil)
)

const (
	promoColumns      = `id, code, reward_amount, max_uses, current_uses, is_active, created_at`
	defaultPromoLimit = 50
	maximumPromoLimit = 500
)

// PromoDB reads and writes the promo_codes table.
type PromoDB struct {
	q querier
}

// CreatePromoCode inserts a new code. A duplicate code is a Conflict.
func (p *PromoDB) CreatePromoCode(ctx context.Context, promo *model.PromoCode) error {
	promo.ID = xid.New().String()
	promo.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	_, err := p.q.ExecContext(ctx,
		`INSERT INTO promo_codes (`+promoColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		promo.ID,
		promo.Code,
		promo.RewardAmount,
		promo.MaxUses,
		promo.CurrentUses,
		promo.IsActive,
		toMillis(promo.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("promo code", promo.Code)
		}
		return fmt.Errorf("sqlite: inserting promo code %q: %w", promo.Code, err)
	}
	return nil
}

// GetPromoCodeByCode looks a code up with an exact, case-sensitive match.
func (p *PromoDB) GetPromoCodeByCode(ctx context.Context, code string) (*model.PromoCode, error) {
	row := p.q.QueryRowContext(ctx,
		`SELECT `+promoColumns+` FROM promo_codes WHERE code = ?`, code)

	promo, err := scanPromo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("promo code", code)
		}
		return nil, fmt.Errorf("sqlite: getting promo code %q: %w", code, err)
	}
	return promo, nil
}

// ListPromoCodes returns codes newest first.
func (p *PromoDB) ListPromoCodes(ctx context.Context, opts repository.ListOptions) ([]model.PromoCode, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPromoLimit
	}
	if limit > maximumPromoLimit {
		limit = maximumPromoLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := p.q.QueryContext(ctx,
		`SELECT `+promoColumns+` FROM promo_codes
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing promo codes: %w", err)
	}
	defer rows.Close()

	promos := []model.PromoCode{}
	for rows.Next() {
		promo, err := scanPromo(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning promo code: %w", err)
		}
		promos = append(promos, *promo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating promo codes: %w", err)
	}
	return promos, nil
}

// IncrementUses consumes one use of the code. The WHERE clause re-checks the
// limit and the active flag, so the counter can never pass max_uses even if a
// caller acted on a stale read.
func (p *PromoDB) IncrementUses(ctx context.Context, id string) error {
	res, err := p.q.ExecContext(ctx,
		`UPDATE promo_codes SET current_uses = current_uses + 1
		 WHERE id = ? AND is_active = 1 AND current_uses < max_uses`,
		id)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing uses of promo code %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: reading affected rows: %w", err)
	}
	if n == 0 {
		return apperror.Exhausted("promo code", id)
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPromo(s scanner) (*model.PromoCode, error) {
	var (
		promo     model.PromoCode
		createdAt int64
	)
	err := s.Scan(
		&promo.ID,
		&promo.Code,
		&promo.RewardAmount,
		&promo.MaxUses,
		&promo.CurrentUses,
		&promo.IsActive,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	promo.CreatedAt = fromMillis(createdAt)
	return &promo, nil
}

// ActivationDB reads and writes the promo_activations table.
type ActivationDB struct {
	q querier
}

func (a *ActivationDB) HasActivation(ctx context.Context, userID, promoCodeID string) (bool, error) {
	var exists int
	err := a.q.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM promo_activations WHERE user_id = ? AND promo_code_id = ?
		 )`,
		userID, promoCodeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking activation %s/%s: %w", userID, promoCodeID, err)
	}
	return exists == 1, nil
}

// CreateActivation records a redemption. The UNIQUE (user_id, promo_code_id)
// constraint turns a second activation into a Conflict.
func (a *ActivationDB) CreateActivation(ctx context.Context, activation *model.PromoActivation) error {
	activation.ID = xid.New().String()
	activation.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	_, err := a.q.ExecContext(ctx,
		`INSERT INTO promo_activations (id, user_id, promo_code_id, created_at)
		 VALUES (?, ?, ?, ?)`,
		activation.ID,
		activation.UserID,
		activation.PromoCodeID,
		toMillis(activation.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("promo activation", activation.UserID+"/"+activation.PromoCodeID)
		}
		return fmt.Errorf("sqlite: inserting activation %s/%s: %w", activation.UserID, activation.PromoCodeID, err)
	}
	return nil
}
