package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/secretum/internal/model"
)

func TestPromoTable(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	data := promoTable([]model.PromoCode{
		{Code: "WELCOME", RewardAmount: 100, MaxUses: 5, CurrentUses: 2, IsActive: true, CreatedAt: created},
		{Code: "GONE", RewardAmount: 10, MaxUses: 1, CurrentUses: 1, IsActive: false, CreatedAt: created},
	})

	require.Len(t, data, 3)
	assert.Equal(t, []string{"Code", "Reward", "Uses", "Remaining", "Status", "Created"}, data[0])
	assert.Equal(t, []string{"WELCOME", "100", "2/5", "3", "active", "2026-03-01 12:00:00"}, data[1])
	assert.Equal(t, []string{"GONE", "10", "1/1", "0", "inactive", "2026-03-01 12:00:00"}, data[2])
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["create"])
	assert.True(t, names["list"])
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("db"))
}
