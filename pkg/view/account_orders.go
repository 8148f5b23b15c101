package view

import "time"

type AccountOrderListItem struct {
	ID         string     `json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	Status     string     `json:"status"`
	TotalCents int        `json:"total_cents"`
	Total      string     `json:"total"`
	Currency   string     `json:"currency"`
	ItemCount  int        `json:"item_count"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
	Guest      bool       `json:"guest"`
}

type AccountOrdersPage struct {
	Items        []AccountOrderListItem `json:"items"`
	FilterStatus string                 `json:"status,omitempty"`
	Page
}
