package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/sakif/secretum/internal/apperror"
	"github.com/sakif/secretum/internal/model"
	"github.com/sakif/secretum/internal/repository"
)

// MaxPromoCodeLength bounds the codes operators may create.
const MaxPromoCodeLength = 64

// PromoCatalog manages promo codes on behalf of operators. Users never reach
// it; it backs the promoctl CLI.
type PromoCatalog struct {
	promos repository.PromoCodeRepository
	logger *slog.Logger
}

// NewPromoCatalog creates a PromoCatalog.
func NewPromoCatalog(promos repository.PromoCodeRepository, logger *slog.Logger) *PromoCatalog {
	return &PromoCatalog{promos: promos, logger: logger}
}

// NewPromo describes a code to be created.
type NewPromo struct {
	Code    string
	Reward  int64
	MaxUses int
	Active  bool
}

// Create validates p and stores it with zero uses.
func (c *PromoCatalog) Create(ctx context.Context, p NewPromo) (*model.PromoCode, error) {
	code := strings.TrimSpace(p.Code)
	switch {
	case code == "":
		return nil, apperror.ValidationFailed("code", "promo code is required")
	case len(code) > MaxPromoCodeLength:
		return nil, apperror.ValidationFailed("code", fmt.Sprintf("promo code must be at most %d characters", MaxPromoCodeLength))
	case strings.ContainsFunc(code, unicode.IsSpace):
		return nil, apperror.ValidationFailed("code", "promo code must not contain whitespace")
	}
	if p.Reward < 0 {
		return nil, apperror.ValidationFailed("reward", "reward must not be negative")
	}
	if p.MaxUses < 0 {
		return nil, apperror.ValidationFailed("max_uses", "max uses must not be negative")
	}

	promo := &model.PromoCode{
		Code:         code,
		RewardAmount: p.Reward,
		MaxUses:      p.MaxUses,
		IsActive:     p.Active,
	}
	if err := c.promos.CreatePromoCode(ctx, promo); err != nil {
		return nil, fmt.Errorf("service/promo: creating %q: %w", code, err)
	}

	c.logger.Info("promo code created",
		slog.String("code", promo.Code),
		slog.Int64("reward", promo.RewardAmount),
		slog.Int("max_uses", promo.MaxUses),
		slog.Bool("active", promo.IsActive),
	)
	return promo, nil
}

// List returns one page of codes, newest first. The repository applies the
// default and maximum page size.
func (c *PromoCatalog) List(ctx context.Context, limit, offset int) ([]model.PromoCode, error) {
	promos, err := c.promos.ListPromoCodes(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("service/promo: listing: %w", err)
	}
	return promos, nil
}
