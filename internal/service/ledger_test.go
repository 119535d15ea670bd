package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/secretum/internal/apperror"
	"github.com/sakif/secretum/internal/model"
	"github.com/sakif/secretum/internal/repository/sqlite"
)

func newTestLedger(t *testing.T) (*LedgerService, *sqlite.DB) {
	t.Helper()
	db := newTestStore(t)
	return NewLedgerService(db, testLogger()), db
}

func balanceOf(t *testing.T, db *sqlite.DB, userID string) int64 {
	t.Helper()
	u, err := db.Users().GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	return u.Balance
}

func usesOf(t *testing.T, db *sqlite.DB, code string) int {
	t.Helper()
	p, err := db.PromoCodes().GetPromoCodeByCode(context.Background(), code)
	require.NoError(t, err)
	return p.CurrentUses
}

// =========================================================================
// ADJUST TESTS
// =========================================================================

func TestAdjust_AddThenSubtract(t *testing.T) {
	svc, db := newTestLedger(t)
	user := seedUser(t, db, "adj")
	ctx := context.Background()

	got, err := svc.Adjust(ctx, user.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got)

	got, err = svc.Adjust(ctx, user.ID, -30)
	require.NoError(t, err)
	assert.Equal(t, int64(70), got)
	assert.Equal(t, int64(70), balanceOf(t, db, user.ID))
}

func TestAdjust_AllowsNegativeBalance(t *testing.T) {
	svc, db := newTestLedger(t)
	user := seedUser(t, db, "neg")

	got, err := svc.Adjust(context.Background(), user.ID, -5)
	require.NoError(t, err)
	assert.Equal(t, int64(-5), got)
}

func TestAdjust_UnknownUser(t *testing.T) {
	svc, _ := newTestLedger(t)

	_, err := svc.Adjust(context.Background(), "ghost", 10)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.Adjust(context.Background(), "", 10)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestAdjust_OverflowLeavesBalanceReadable(t *testing.T) {
	svc, db := newTestLedger(t)
	user := seedUser(t, db, "max")
	ctx := context.Background()

	_, err := svc.Adjust(ctx, user.ID, math.MaxInt64)
	require.NoError(t, err)

	_, err = svc.Adjust(ctx, user.ID, 1)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.AdjustByAction(ctx, user.ID, model.BalanceAdd, math.MaxInt64)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	got, err := svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), got.Balance)

	got2, err := svc.Adjust(ctx, user.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64-1), got2)
}

func TestRedeemPromo_OverflowRollsBack(t *testing.T) {
	svc, db := newTestLedger(t)
	user := seedUser(t, db, "whale")
	promo := seedPromo(t, db, "BIG", 10, 5, true)
	ctx := context.Background()

	_, err := svc.Adjust(ctx, user.ID, math.MaxInt64-5)
	require.NoError(t, err)

	_, err = svc.RedeemPromo(ctx, user.ID, "BIG")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	assert.Equal(t, int64(math.MaxInt64-5), balanceOf(t, db, user.ID))
	assert.Equal(t, 0, usesOf(t, db, "BIG"))
	redeemed, err := db.Activations().HasActivation(ctx, user.ID, promo.ID)
	require.NoError(t, err)
	assert.False(t, redeemed)
}

func TestAdjust_ConcurrentUpdatesSumExactly(t *testing.T) {
	svc, db := newTestLedger(t)
	user := seedUser(t, db, "conc")
	const workers = 40

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			delta := int64(10)
			if i%2 == 1 {
				delta = -3
			}
			_, err := svc.Adjust(context.Background(), user.ID, delta)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// 20 × +10 and 20 × −3
	assert.Equal(t, int64(140), balanceOf(t, db, user.ID))
}

func TestAdjustByAction(t *testing.T) {
	svc, db := newTestLedger(t)
	user := seedUser(t, db, "act")
	ctx := context.Background()

	got, err := svc.AdjustByAction(ctx, user.ID, model.BalanceAdd, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), got)

	got, err = svc.AdjustByAction(ctx, user.ID, model.BalanceSubtract, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(30), got)

	_, err = svc.AdjustByAction(ctx, user.ID, "multiply", 2)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.AdjustByAction(ctx, user.ID, model.BalanceAdd, -1)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	assert.Equal(t, int64(30), balanceOf(t, db, user.ID))
}

func TestBalance(t *testing.T) {
	svc, db := newTestLedger(t)
	user := seedUser(t, db, "bal")
	_, err := svc.Adjust(context.Background(), user.ID, 7)
	require.NoError(t, err)

	got, err := svc.Balance(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Balance)
	assert.Equal(t, user.Email, got.Email)

	_, err = svc.Balance(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// REDEEM TESTS
// =========================================================================

func TestRedeemPromo_Success(t *testing.T) {
	svc, db := newTestLedger(t)
	user := seedUser(t, db, "r1")
	promo := seedPromo(t, db, "WELCOME", 500, 3, true)
	_, err := svc.Adjust(context.Background(), user.ID, 25)
	require.NoError(t, err)

	got, err := svc.RedeemPromo(context.Background(), user.ID, "  WELCOME ")
	require.NoError(t, err)

	assert.Equal(t, model.Redemption{Reward: 500, NewBalance: 525}, got)
	assert.Equal(t, int64(525), balanceOf(t, db, user.ID))
	assert.Equal(t, 1, usesOf(t, db, "WELCOME"))

	redeemed, err := db.Activations().HasActivation(context.Background(), user.ID, promo.ID)
	require.NoError(t, err)
	assert.True(t, redeemed)
}

func TestRedeemPromo_Failures(t *testing.T) {
	svc, db := newTestLedger(t)
	ctx := context.Background()

	user := seedUser(t, db, "fail")
	seedPromo(t, db, "OFF", 100, 10, false)
	seedPromo(t, db, "EMPTY", 100, 0, true)
	seedPromo(t, db, "Case", 100, 10, true)
	seedPromo(t, db, "DONE", 100, 10, true)
	_, err := svc.RedeemPromo(ctx, user.ID, "DONE")
	require.NoError(t, err)

	tests := []struct {
		name    string
		userID  string
		code    string
		wantErr error
	}{
		{"empty code", user.ID, "", apperror.ErrValidation},
		{"whitespace code", user.ID, "   ", apperror.ErrValidation},
		{"unknown user", "ghost", "Case", apperror.ErrNotFound},
		{"unknown code", user.ID, "NOPE", apperror.ErrNotFound},
		{"wrong case", user.ID, "CASE", apperror.ErrNotFound},
		{"longer than any stored code", user.ID, strings.Repeat("X", MaxPromoCodeLength+1), apperror.ErrNotFound},
		{"inactive", user.ID, "OFF", apperror.ErrInactive},
		{"no uses", user.ID, "EMPTY", apperror.ErrExhausted},
		{"already redeemed", user.ID, "DONE", apperror.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := balanceOf(t, db, user.ID)

			_, err := svc.RedeemPromo(ctx, tt.userID, tt.code)
			assert.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, before, balanceOf(t, db, user.ID), "balance changed on failure")
			assert.Equal(t, 0, usesOf(t, db, "OFF"))
			assert.Equal(t, 0, usesOf(t, db, "Case"))
			assert.Equal(t, 1, usesOf(t, db, "DONE"))
		})
	}
}

func TestRedeemPromo_ExhaustedIsCheckedBeforeConflict(t *testing.T) {
	svc, db := newTestLedger(t)
	user := seedUser(t, db, "order")
	seedPromo(t, db, "SINGLE", 10, 1, true)

	_, err := svc.RedeemPromo(context.Background(), user.ID, "SINGLE")
	require.NoError(t, err)

	_, err = svc.RedeemPromo(context.Background(), user.ID, "SINGLE")
	assert.ErrorIs(t, err, apperror.ErrExhausted)
}

func TestRedeemPromo_AlreadyRedeemedMessage(t *testing.T) {
	svc, db := newTestLedger(t)
	user := seedUser(t, db, "msg")
	seedPromo(t, db, "TWICE", 10, 5, true)

	_, err := svc.RedeemPromo(context.Background(), user.ID, "TWICE")
	require.NoError(t, err)

	_, err = svc.RedeemPromo(context.Background(), user.ID, "TWICE")
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Message, "already been redeemed")
}

func TestRedeemPromo_ConcurrentDistinctUsers(t *testing.T) {
	svc, db := newTestLedger(t)
	const (
		maxUses = 5
		users   = 12
		reward  = 100
	)
	promo := seedPromo(t, db, "RUSH", reward, maxUses, true)

	ids := make([]string, users)
	for i := range ids {
		ids[i] = seedUser(t, db, fmt.Sprintf("rush-%d", i)).ID
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		exhausted int
		other     []error
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.RedeemPromo(context.Background(), id, "RUSH")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperror.ErrExhausted):
				exhausted++
			default:
				other = append(other, err)
			}
		}(id)
	}
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, maxUses, succeeded)
	assert.Equal(t, users-maxUses, exhausted)
	assert.Equal(t, maxUses, usesOf(t, db, "RUSH"))

	var activated int
	for _, id := range ids {
		redeemed, err := db.Activations().HasActivation(context.Background(), id, promo.ID)
		require.NoError(t, err)
		if redeemed {
			activated++
		}
	}
	assert.Equal(t, maxUses, activated)

	var credited int
	for _, id := range ids {
		switch balanceOf(t, db, id) {
		case reward:
			credited++
		case 0:
		default:
			t.Errorf("user %s has an unexpected balance", id)
		}
	}
	assert.Equal(t, maxUses, credited)
}

func TestRedeemPromo_ConcurrentSameUser(t *testing.T) {
	svc, db := newTestLedger(t)
	user := seedUser(t, db, "greedy")
	seedPromo(t, db, "ONCE", 250, 100, true)
	const attempts = 10

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RedeemPromo(context.Background(), user.ID, "ONCE")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, apperror.ErrConflict) {
				conflicts++
			} else {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicts)
	assert.Equal(t, int64(250), balanceOf(t, db, user.ID))
	assert.Equal(t, 1, usesOf(t, db, "ONCE"))
}
