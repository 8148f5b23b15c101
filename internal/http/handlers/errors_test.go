package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"shopdesk.io/app/internal/modules/auth"
	"shopdesk.io/app/internal/modules/checkout"
	"shopdesk.io/app/internal/modules/orders"
	"shopdesk.io/app/internal/modules/payments"
	"shopdesk.io/app/internal/modules/products"
	"shopdesk.io/app/internal/modules/users"
	"shopdesk.io/app/internal/shared/apperr"
)

func TestMapErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{orders.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("load: %w", gorm.ErrRecordNotFound), http.StatusNotFound},
		{products.ErrSKUTaken, http.StatusConflict},
		{orders.ErrInvalidTransition, http.StatusConflict},
		{orders.ErrCartEmpty, http.StatusBadRequest},
		{users.ErrSelfDelete, http.StatusBadRequest},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{payments.ErrForbidden, http.StatusForbidden},
		{payments.ErrProvider, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.want, apperr.HTTPStatus(MapError(tc.err)))
		})
	}
}

func TestMapErrorOutOfStockFields(t *testing.T) {
	err := MapError(&checkout.OutOfStockError{Items: []checkout.OutOfStockItem{
		{VariantID: "v-1", SKU: "TS-42", Requested: 3, Available: 1},
		{VariantID: "v-2", Requested: 2, Available: 0},
	}})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Conflict, ae.Kind)
	assert.Equal(t, "Only 1 left in stock.", ae.Fields["TS-42"])
	assert.Equal(t, "Only 0 left in stock.", ae.Fields["v-2"])
}

func TestMapErrorKeepsAppErrors(t *testing.T) {
	in := apperr.InvalidErr("Nope.", nil)
	assert.Same(t, in, MapError(in))
	assert.NoError(t, MapError(nil))
}
