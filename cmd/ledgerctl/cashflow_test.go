package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/domain/registers/stock"
)

func TestParseDate(t *testing.T) {
	got, err := parseDate("from", "2026-03-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC), got)

	got, err = parseDate("to", "")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = parseDate("to", "15/03/2026")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--to")
}

func TestParseID(t *testing.T) {
	_, err := parseID("company", "not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid company id")

	v, err := parseID("company", "0190f5c2-7a4b-7cde-8f01-23456789abcd")
	require.NoError(t, err)
	assert.Equal(t, "0190f5c2-7a4b-7cde-8f01-23456789abcd", v.String())
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["migrate"])
	assert.True(t, names["reconcile"])
	assert.True(t, names["cashflow"])
	assert.True(t, names["audit"])
	assert.True(t, names["movements"])

	sub := map[string]bool{}
	for _, c := range reconcileCmd.Commands() {
		sub[c.Name()] = true
	}
	for _, want := range []string{"all", "company", "account", "partners"} {
		assert.True(t, sub[want], want)
	}
}

func TestMovementFilter(t *testing.T) {
	require.NoError(t, movementsCmd.Flags().Set("direction", "out"))
	require.NoError(t, movementsCmd.Flags().Set("from", "2026-02-01"))
	t.Cleanup(func() {
		_ = movementsCmd.Flags().Set("direction", "")
		_ = movementsCmd.Flags().Set("from", "")
	})

	filter, err := movementFilter(movementsCmd)
	require.NoError(t, err)
	require.NotNil(t, filter.Direction)
	assert.Equal(t, stock.DirectionOut, *filter.Direction)
	require.NotNil(t, filter.FromDate)
	assert.Equal(t, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), *filter.FromDate)
	assert.Nil(t, filter.ToDate)
	assert.Equal(t, 100, filter.Limit)

	require.NoError(t, movementsCmd.Flags().Set("direction", "sideways"))
	_, err = movementFilter(movementsCmd)
	assert.Error(t, err)
}
