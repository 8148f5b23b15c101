package cart

import "errors"

var (
	ErrMixedCurrency   = errors.New("cart contains multiple currencies")
	ErrVariantNotFound = errors.New("cart: variant not found or not for sale")
	ErrItemNotFound    = errors.New("cart: item not in cart")
	ErrCartNotFound    = errors.New("cart: not found")
)
