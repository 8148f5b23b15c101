// Package customers keeps one record per buyer email, linked to a user
// account when the buyer has one.
package customers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopdesk.io/app/internal/platform/database"
)

var (
	ErrNotFound   = errors.New("customers: not found")
	ErrEmailTaken = errors.New("customers: email already in use")
)

// revenueStatuses are order states whose totals count as money received.
var revenueStatuses = []string{"paid", "shipped", "delivered", "partially_refunded", "refunded"}

type Customer struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	UserID         *string        `gorm:"size:36;index:ix_customers_user_id" json:"user_id"`
	Email          string         `gorm:"size:255;not null;uniqueIndex:ux_customers_email" json:"email"`
	FirstName      string         `gorm:"size:100;not null;default:''" json:"first_name"`
	LastName       string         `gorm:"size:100;not null;default:''" json:"last_name"`
	Phone          string         `gorm:"size:30;not null;default:''" json:"phone"`
	DefaultAddress datatypes.JSON `gorm:"column:default_address_json" json:"default_address,omitempty"`
	Notes          string         `gorm:"type:text" json:"notes"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }

type Input struct {
	UserID         *string
	Email          string
	FirstName      string
	LastName       string
	Phone          string
	DefaultAddress datatypes.JSON
	Notes          string
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

func normEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// UpsertTx finds the customer by email or creates one, refreshing contact
// details from the latest checkout. Runs inside the order transaction.
func UpsertTx(ctx context.Context, tx *gorm.DB, in Input) (Customer, error) {
	email := normEmail(in.Email)
	var c Customer
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&c, "email = ?", email).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c = Customer{
			ID:             uuid.NewString(),
			UserID:         in.UserID,
			Email:          email,
			FirstName:      in.FirstName,
			LastName:       in.LastName,
			Phone:          in.Phone,
			DefaultAddress: in.DefaultAddress,
		}
		if err := tx.WithContext(ctx).Create(&c).Error; err != nil {
			if database.IsDuplicateKey(err) {
				// lost a race with a concurrent checkout for the same email
				if err := tx.WithContext(ctx).First(&c, "email = ?", email).Error; err != nil {
					return Customer{}, err
				}
				return c, nil
			}
			return Customer{}, err
		}
		return c, nil
	case err != nil:
		return Customer{}, err
	}

	updates := map[string]any{}
	if c.UserID == nil && in.UserID != nil {
		updates["user_id"] = *in.UserID
		c.UserID = in.UserID
	}
	if in.FirstName != "" {
		updates["first_name"] = in.FirstName
		c.FirstName = in.FirstName
	}
	if in.LastName != "" {
		updates["last_name"] = in.LastName
		c.LastName = in.LastName
	}
	if in.Phone != "" {
		updates["phone"] = in.Phone
		c.Phone = in.Phone
	}
	if len(in.DefaultAddress) > 0 {
		updates["default_address_json"] = in.DefaultAddress
		c.DefaultAddress = in.DefaultAddress
	}
	if len(updates) > 0 {
		if err := tx.WithContext(ctx).Model(&Customer{}).Where("id = ?", c.ID).Updates(updates).Error; err != nil {
			return Customer{}, err
		}
	}
	return c, nil
}

type ListQuery struct {
	Q        string
	Sort     string // newest|name|spent
	Page     int
	PageSize int
}

type ListItem struct {
	Customer
	OrderCount int64 `json:"order_count"`
	SpentCents int64 `json:"spent_cents"`
}

func (s *Service) List(ctx context.Context, q ListQuery) ([]ListItem, int64, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}

	base := s.db.WithContext(ctx).Model(&Customer{})
	if t := strings.TrimSpace(q.Q); t != "" {
		like := database.LikeContains(t)
		base = base.Where("(LOWER(customers.email) LIKE ? ESCAPE '!' OR LOWER(customers.first_name) LIKE ? ESCAPE '!' OR LOWER(customers.last_name) LIKE ? ESCAPE '!' OR customers.phone LIKE ? ESCAPE '!')", like, like, like, like)
	}
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	stats := s.db.Table("orders").
		Select("customer_id, COUNT(*) AS order_count, "+
			"SUM(CASE WHEN status IN ? THEN total_cents - refunded_cents ELSE 0 END) AS spent_cents", revenueStatuses).
		Where("customer_id IS NOT NULL").
		Group("customer_id")

	tx := base.
		Select("customers.*, COALESCE(st.order_count, 0) AS order_count, COALESCE(st.spent_cents, 0) AS spent_cents").
		Joins("LEFT JOIN (?) AS st ON st.customer_id = customers.id", stats)
	switch q.Sort {
	case "name":
		tx = tx.Order("customers.last_name ASC, customers.first_name ASC")
	case "spent":
		tx = tx.Order("spent_cents DESC")
	default:
		tx = tx.Order("customers.created_at DESC")
	}

	var items []ListItem
	err := tx.Order("customers.id ASC").
		Limit(q.PageSize).Offset((q.Page - 1) * q.PageSize).
		Scan(&items).Error
	return items, total, err
}

func (s *Service) Get(ctx context.Context, id string) (Customer, error) {
	var c Customer
	err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c, ErrNotFound
	}
	return c, err
}

type OrderSummary struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Currency   string    `json:"currency"`
	TotalCents int       `json:"total_cents"`
	CreatedAt  time.Time `json:"created_at"`
}

type Detail struct {
	Customer     Customer       `json:"customer"`
	OrderCount   int64          `json:"order_count"`
	SpentCents   int64          `json:"spent_cents"`
	RecentOrders []OrderSummary `json:"recent_orders"`
}

func (s *Service) Detail(ctx context.Context, id string) (Detail, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	d := Detail{Customer: c, RecentOrders: []OrderSummary{}}

	var agg struct {
		OrderCount int64
		SpentCents int64
	}
	if err := s.db.WithContext(ctx).Table("orders").
		Select("COUNT(*) AS order_count, "+
			"COALESCE(SUM(CASE WHEN status IN ? THEN total_cents - refunded_cents ELSE 0 END), 0) AS spent_cents", revenueStatuses).
		Where("customer_id = ?", id).
		Scan(&agg).Error; err != nil {
		return Detail{}, err
	}
	d.OrderCount, d.SpentCents = agg.OrderCount, agg.SpentCents

	if err := s.db.WithContext(ctx).Table("orders").
		Select("id, status, currency, total_cents, created_at").
		Where("customer_id = ?", id).
		Order("created_at DESC").
		Limit(10).
		Scan(&d.RecentOrders).Error; err != nil {
		return Detail{}, err
	}
	return d, nil
}

func (s *Service) Create(ctx context.Context, in Input) (Customer, error) {
	c := Customer{
		ID:             uuid.NewString(),
		UserID:         in.UserID,
		Email:          normEmail(in.Email),
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		Phone:          strings.TrimSpace(in.Phone),
		DefaultAddress: in.DefaultAddress,
		Notes:          in.Notes,
	}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return Customer{}, ErrEmailTaken
		}
		return Customer{}, err
	}
	return c, nil
}

func (s *Service) Update(ctx context.Context, id string, in Input) (Customer, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return Customer{}, err
	}
	err := s.db.WithContext(ctx).Model(&Customer{}).Where("id = ?", id).Updates(map[string]any{
		"user_id":              in.UserID,
		"email":                normEmail(in.Email),
		"first_name":           strings.TrimSpace(in.FirstName),
		"last_name":            strings.TrimSpace(in.LastName),
		"phone":                strings.TrimSpace(in.Phone),
		"default_address_json": in.DefaultAddress,
		"notes":                in.Notes,
	}).Error
	if err != nil {
		if database.IsDuplicateKey(err) {
			return Customer{}, ErrEmailTaken
		}
		return Customer{}, err
	}
	return s.Get(ctx, id)
}

// Delete keeps the customer's orders; they retain their own snapshot and
// lose the link.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table("orders").Where("customer_id = ?", id).Update("customer_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&Customer{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
