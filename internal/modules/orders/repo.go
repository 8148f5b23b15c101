package orders

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

// DB returns the underlying database connection for direct queries.
func (r *Repo) DB() *gorm.DB { return r.db }

type ListByUserParams struct {
	UserID        string
	VerifiedEmail string // confirmed account email; adds guest orders placed with it
	Page          int
	PageSize      int
	Status        string // optional filter
}

type ListByUserResult struct {
	Items []ListByUserItem
	Total int64
}

type ListByUserItem struct {
	Order Order `json:"order"`
	Count int   `json:"item_count"`
}

func (r *Repo) ListByUser(ctx context.Context, in ListByUserParams) (ListByUserResult, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	size := in.PageSize
	if size < 1 || size > 100 {
		size = 20
	}
	status := strings.TrimSpace(in.Status)

	q := r.db.WithContext(ctx).Model(&Order{})
	if email := strings.ToLower(strings.TrimSpace(in.VerifiedEmail)); email != "" {
		q = q.Where("user_id = ? OR (user_id IS NULL AND guest_email = ?)", in.UserID, email)
	} else {
		q = q.Where("user_id = ?", in.UserID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return ListByUserResult{}, err
	}

	var orders []Order
	if err := q.
		Order("created_at DESC").
		Order("id DESC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&orders).Error; err != nil {
		return ListByUserResult{}, err
	}

	counts, err := r.itemCounts(ctx, orders)
	if err != nil {
		return ListByUserResult{}, err
	}
	items := make([]ListByUserItem, len(orders))
	for i, o := range orders {
		items[i] = ListByUserItem{Order: o, Count: counts[o.ID]}
	}
	return ListByUserResult{Items: items, Total: total}, nil
}

// itemCounts sums quantities per order in one query.
func (r *Repo) itemCounts(ctx context.Context, orders []Order) (map[string]int, error) {
	out := make(map[string]int, len(orders))
	if len(orders) == 0 {
		return out, nil
	}
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	var rows []struct {
		OrderID string
		N       int
	}
	if err := r.db.WithContext(ctx).Model(&OrderItem{}).
		Select("order_id, SUM(quantity) AS n").
		Where("order_id IN ?", ids).
		Group("order_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.OrderID] = row.N
	}
	return out, nil
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	var o Order
	err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Order{}, ErrNotFound
	}
	return o, err
}

func (r *Repo) GetWithItems(ctx context.Context, id string) (Order, []OrderItem, error) {
	o, err := r.Get(ctx, id)
	if err != nil {
		return Order{}, nil, err
	}
	var items []OrderItem
	if err := r.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&items, "order_id = ?", id).Error; err != nil {
		return Order{}, nil, err
	}
	return o, items, nil
}

func (r *Repo) Events(ctx context.Context, orderID string) ([]OrderEvent, error) {
	var ev []OrderEvent
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&ev, "order_id = ?", orderID).Error
	return ev, err
}

func (r *Repo) findByIdempotencyKey(ctx context.Context, key string) (Order, bool, error) {
	var o Order
	err := r.db.WithContext(ctx).First(&o, "idempotency_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Order{}, false, nil
	}
	if err != nil {
		return Order{}, false, err
	}
	return o, true, nil
}

// Viewer is who asks to see an order. A zero Viewer is an anonymous guest.
type Viewer struct {
	UserID string
	Email  string
}

// CanView: owners see their orders; guest orders are visible to anyone
// holding the id.
func (v Viewer) CanView(o Order) bool {
	if o.UserID == nil {
		return true
	}
	return v.UserID != "" && *o.UserID == v.UserID
}

func (r *Repo) GetForViewer(ctx context.Context, id string, v Viewer) (Order, []OrderItem, error) {
	o, items, err := r.GetWithItems(ctx, id)
	if err != nil {
		return Order{}, nil, err
	}
	if !v.CanView(o) {
		return Order{}, nil, ErrNotFound
	}
	return o, items, nil
}
