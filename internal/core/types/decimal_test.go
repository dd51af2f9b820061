package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	cases := []struct {
		in   string
		want Quantity
	}{
		{"10", NewQuantity(10)},
		{"0.5", Quantity(5000)},
		{"-2.25", Quantity(-22500)},
		{"1.123456", Quantity(11234)},
		{".5", Quantity(5000)},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseQuantity(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ParseQuantity("")
	assert.Error(t, err)
}

func TestQuantity_JSON(t *testing.T) {
	var q Quantity
	require.NoError(t, json.Unmarshal([]byte(`"12.5"`), &q))
	assert.Equal(t, "12.5000", q.String())

	out, err := json.Marshal(NewQuantity(3))
	require.NoError(t, err)
	assert.Equal(t, "3.0000", string(out))
}

func TestQuantity_DecimalRoundTrip(t *testing.T) {
	q := Quantity(123456)
	assert.Equal(t, "12.3456", q.Decimal().String())
	assert.Equal(t, q, NewQuantityFromDecimal(q.Decimal()))
}

func TestMoneyHelpers(t *testing.T) {
	assert.True(t, RoundMoney(MustMoney("10.005")).Equal(MustMoney("10.01")))
	assert.True(t, WithinTolerance(MustMoney("100.0004"), MustMoney("100"), MustMoney("0.001")))
	assert.False(t, WithinTolerance(MustMoney("100.01"), MustMoney("100"), MustMoney("0.001")))
	assert.True(t, Sum(MustMoney("1.10"), MustMoney("2.20")).Equal(MustMoney("3.30")))
}
