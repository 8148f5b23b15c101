package view

import "time"

type AdminOrderListItem struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Email      string    `json:"email"`
	Guest      bool      `json:"guest"`
	TotalCents int       `json:"total_cents"`
	Total      string    `json:"total"`
	Currency   string    `json:"currency"`
	CreatedAt  time.Time `json:"created_at"`
}

type AdminOrdersPage struct {
	Items  []AdminOrderListItem `json:"items"`
	Q      string               `json:"q,omitempty"`
	Status string               `json:"status,omitempty"`
	Sort   string               `json:"sort"`
	Page
}

type AdminOrderEvent struct {
	Action      string    `json:"action"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	ActorUserID string    `json:"actor_user_id,omitempty"`
	Note        string    `json:"note,omitempty"`
	At          time.Time `json:"at"`
}

type AdminOrderFinancialEntry struct {
	Event       string    `json:"event"`
	AmountCents int       `json:"amount_cents"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	RefType     string    `json:"ref_type"`
	RefID       string    `json:"ref_id"`
	At          time.Time `json:"at"`
}

type AdminPayment struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	ProviderRef string    `json:"provider_ref,omitempty"`
	CaptureRef  string    `json:"capture_ref,omitempty"`
	Status      string    `json:"status"`
	Flow        string    `json:"flow"`
	Amount      string    `json:"amount"`
	PayerEmail  string    `json:"payer_email,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type AdminRefund struct {
	ID          string    `json:"id"`
	PaymentID   string    `json:"payment_id"`
	ProviderRef string    `json:"provider_ref,omitempty"`
	Status      string    `json:"status"`
	Amount      string    `json:"amount"`
	Reason      string    `json:"reason,omitempty"`
	ActorUserID string    `json:"actor_user_id"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type AdminOrderDetail struct {
	OrderDetail
	UserID     string `json:"user_id,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	Refundable string `json:"refundable"`
	// Actions lists the admin actions valid in the current status.
	Actions   []string                   `json:"actions"`
	Events    []AdminOrderEvent          `json:"events"`
	Payments  []AdminPayment             `json:"payments"`
	Refunds   []AdminRefund              `json:"refunds"`
	Financial []AdminOrderFinancialEntry `json:"financial"`
}
