package validation

import (
	"errors"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addr struct {
	City    string `json:"city" binding:"required"`
	Country string `json:"country" binding:"required,len=2"`
}

type req struct {
	Email   string `json:"email" binding:"required,email"`
	Method  string `json:"shipping_method" binding:"oneof=standard express"`
	Address addr   `json:"shipping_address"`
}

func TestFromBindErrorUsesJSONNames(t *testing.T) {
	in := req{Email: "nope", Method: "drone", Address: addr{Country: "USA"}}
	err := binding.Validator.ValidateStruct(&in)
	require.Error(t, err)

	fe := FromBindError(err)
	assert.Equal(t, "Enter a valid email address.", fe["email"])
	assert.Contains(t, fe["shipping_method"], "standard express")
	assert.Equal(t, "This field is required.", fe["shipping_address.city"])
	assert.Equal(t, "Must be exactly 2 characters.", fe["shipping_address.country"])
}

func TestFromBindErrorFallback(t *testing.T) {
	fe := FromBindError(errors.New("EOF"))
	assert.Equal(t, "Request body is invalid.", fe["_"])
}
