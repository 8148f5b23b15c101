package checkout

import (
	"errors"
	"fmt"
)

var ErrUnknownShippingMethod = errors.New("checkout: unknown shipping method")

type OutOfStockItem struct {
	VariantID string `json:"variant_id"`
	SKU       string `json:"sku,omitempty"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

type OutOfStockError struct {
	Items []OutOfStockItem
}

func (e *OutOfStockError) Error() string {
	if len(e.Items) == 0 {
		return "out of stock"
	}
	it := e.Items[0]
	if len(e.Items) == 1 {
		return fmt.Sprintf("out of stock: variant=%s requested=%d available=%d", it.VariantID, it.Requested, it.Available)
	}
	return fmt.Sprintf("out of stock: %d lines, first variant=%s requested=%d available=%d", len(e.Items), it.VariantID, it.Requested, it.Available)
}
