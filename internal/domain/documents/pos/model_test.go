package pos

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tally/internal/core/apperror"
	"tally/internal/core/id"
	"tally/internal/core/types"
)

func TestInputValidate(t *testing.T) {
	accountID, customerID := id.New(), id.New()
	item := ItemInput{ProductID: id.New(), Quantity: types.NewQuantity(1)}
	negative := types.MustMoney("-1")

	tests := []struct {
		name    string
		in      Input
		wantErr bool
	}{
		{"cash sale", Input{Items: []ItemInput{item}, AccountID: &accountID}, false},
		{"credit sale", Input{Items: []ItemInput{item}, OnCredit: true, CustomerID: &customerID}, false},
		{"no items", Input{AccountID: &accountID}, true},
		{"cash without account", Input{Items: []ItemInput{item}}, true},
		{"credit without customer", Input{Items: []ItemInput{item}, OnCredit: true, AccountID: &accountID}, true},
		{"zero quantity", Input{Items: []ItemInput{{ProductID: id.New()}}, AccountID: &accountID}, true},
		{"missing product", Input{Items: []ItemInput{{Quantity: types.NewQuantity(1)}}, AccountID: &accountID}, true},
		{"negative price", Input{Items: []ItemInput{{ProductID: id.New(), Quantity: types.NewQuantity(1), Price: &negative}}, AccountID: &accountID}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "got %v", err)
		})
	}
}

func TestSaleRecalculateTotal(t *testing.T) {
	s := &Sale{Items: []Item{
		{Quantity: types.NewQuantity(3), Price: types.MustMoney("2.50")},
		{Quantity: types.NewQuantityFromFloat64(0.5), Price: types.MustMoney("9.99")},
	}}
	s.RecalculateTotal()

	assert.Equal(t, 1, s.Items[0].LineNo)
	assert.Equal(t, 2, s.Items[1].LineNo)
	assert.True(t, s.Items[0].Subtotal.Equal(types.MustMoney("7.5")))
	assert.True(t, s.Items[1].Subtotal.Equal(types.MustMoney("5")), "got %s", s.Items[1].Subtotal)
	assert.True(t, s.Total.Equal(types.MustMoney("12.5")))
}
