// Package dashboard computes the admin landing page summary.
package dashboard

import (
	"context"
	"time"

	"gorm.io/gorm"

	"shopdesk.io/app/internal/modules/auth"
	"shopdesk.io/app/internal/modules/customers"
	"shopdesk.io/app/internal/modules/orders"
	"shopdesk.io/app/internal/modules/products"
)

const (
	salesDays         = 30
	recentOrders      = 5
	lowStockThreshold = 5
	lowStockLimit     = 20
)

// paidStatuses are the states an order can be in once money was taken.
var paidStatuses = []string{
	orders.StatusPaid, orders.StatusShipped, orders.StatusDelivered,
	orders.StatusPartiallyRefunded, orders.StatusRefunded,
}

type Counts struct {
	Orders     int64 `json:"orders"`
	PaidOrders int64 `json:"paid_orders"`
	Products   int64 `json:"products"`
	Customers  int64 `json:"customers"`
	Users      int64 `json:"users"`
}

type DaySales struct {
	Date         string `json:"date"` // YYYY-MM-DD, UTC
	Orders       int    `json:"orders"`
	RevenueCents int    `json:"revenue_cents"`
}

type Summary struct {
	Counts       Counts              `json:"counts"`
	RevenueCents int64               `json:"revenue_cents"`
	Currency     string              `json:"currency"`
	Sales        []DaySales          `json:"sales"`
	RecentOrders []orders.Order      `json:"recent_orders"`
	LowStock     []products.LowStock `json:"low_stock"`
}

type Service struct {
	db       *gorm.DB
	currency string
	now      func() time.Time
}

func NewService(db *gorm.DB, currency string) *Service {
	return &Service{db: db, currency: currency, now: time.Now}
}

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	db := s.db.WithContext(ctx)
	out := Summary{Currency: s.currency}

	counts := []struct {
		model any
		dst   *int64
		where []any
	}{
		{&orders.Order{}, &out.Counts.Orders, nil},
		{&orders.Order{}, &out.Counts.PaidOrders, []any{"status IN ?", paidStatuses}},
		{&products.Product{}, &out.Counts.Products, nil},
		{&customers.Customer{}, &out.Counts.Customers, nil},
		{&auth.User{}, &out.Counts.Users, nil},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.where != nil {
			q = q.Where(c.where[0], c.where[1:]...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return out, err
		}
	}

	var revenue struct{ Cents int64 }
	err := db.Model(&orders.Order{}).
		Select("COALESCE(SUM(total_cents - refunded_cents), 0) AS cents").
		Where("status IN ?", paidStatuses).
		Scan(&revenue).Error
	if err != nil {
		return out, err
	}
	out.RevenueCents = revenue.Cents

	if out.Sales, err = s.sales(ctx); err != nil {
		return out, err
	}

	if err := db.Order("created_at DESC").Limit(recentOrders).Find(&out.RecentOrders).Error; err != nil {
		return out, err
	}

	out.LowStock, err = products.NewRepo(s.db).LowStockVariants(ctx, lowStockThreshold, lowStockLimit)
	return out, err
}

// sales buckets paid orders by the UTC day they were paid. Bucketing happens
// here rather than in SQL because the date functions differ per driver.
func (s *Service) sales(ctx context.Context) ([]DaySales, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)
	from := today.AddDate(0, 0, -(salesDays - 1))

	var rows []struct {
		PaidAt        time.Time
		TotalCents    int
		RefundedCents int
	}
	err := s.db.WithContext(ctx).Model(&orders.Order{}).
		Select("paid_at, total_cents, refunded_cents").
		Where("paid_at IS NOT NULL AND paid_at >= ? AND status IN ?", from, paidStatuses).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	days := make([]DaySales, salesDays)
	index := make(map[string]int, salesDays)
	for i := range days {
		d := from.AddDate(0, 0, i).Format(time.DateOnly)
		days[i].Date = d
		index[d] = i
	}
	for _, r := range rows {
		i, ok := index[r.PaidAt.UTC().Format(time.DateOnly)]
		if !ok {
			continue
		}
		days[i].Orders++
		days[i].RevenueCents += r.TotalCents - r.RefundedCents
	}
	return days, nil
}
