package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"shopdesk.io/app/internal/http/cartcookie"
	"shopdesk.io/app/internal/modules/cart"
	"shopdesk.io/app/internal/modules/checkout"
	"shopdesk.io/app/internal/modules/customers"
	"shopdesk.io/app/internal/platform/database"
	"shopdesk.io/app/internal/platform/logging"
	"shopdesk.io/app/internal/platform/metrics"
)

type Deps struct {
	Pricer   *checkout.Pricer
	Mirror   Mirror
	Notifier Notifier
	Metrics  *metrics.Metrics
	Log      *slog.Logger
}

type Service struct {
	db       *gorm.DB
	repo     *Repo
	carts    *cart.Repo
	pricer   *checkout.Pricer
	mirror   Mirror
	notifier Notifier
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
}

func NewService(db *gorm.DB, d Deps) *Service {
	s := &Service{
		db:       db,
		repo:     NewRepo(db),
		carts:    cart.NewRepo(db),
		pricer:   d.Pricer,
		mirror:   d.Mirror,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		log:      d.Log,
		now:      time.Now,
	}
	if s.mirror == nil {
		s.mirror = nopMirror{}
	}
	if s.notifier == nil {
		s.notifier = NopNotifier{}
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	return s
}

func (s *Service) Repo() *Repo { return s.repo }

type CreateInput struct {
	UserID          string            // empty for guests
	Email           string            // required; the account email for users
	GuestItems      []cartcookie.Item // guest cart cookie lines
	ShippingAddress checkout.Address
	BillingAddress  *checkout.Address // nil means same as shipping
	ShippingMethod  string
	PaymentMethod   string
	IdempotencyKey  string
}

type CreateResult struct {
	Order   Order
	Items   []OrderItem
	Created bool // false when an idempotent replay returned an existing order
}

type lineRow struct {
	VariantID     string            `gorm:"column:variant_id"`
	Qty           int               `gorm:"column:qty"`
	PriceCents    int               `gorm:"column:price_cents"`
	Currency      string            `gorm:"column:currency"`
	SKU           string            `gorm:"column:sku"`
	Options       datatypes.JSONMap `gorm:"column:options_json"`
	ProductID     string            `gorm:"column:product_id"`
	ProductName   string            `gorm:"column:product_name"`
	ProductSlug   string            `gorm:"column:product_slug"`
	ProductStatus string            `gorm:"column:product_status"`
	ImageURL      *string           `gorm:"column:image_url"`
}

// CreateFromCart turns the buyer's cart into an order in one transaction:
// prices are re-read, stock is deducted and the cart is closed. Email and
// the document mirror run after commit and never fail the order.
func (s *Service) CreateFromCart(ctx context.Context, in CreateInput) (CreateResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if in.Email == "" {
		return CreateResult{}, ErrEmailRequired
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = PaymentMethodPayPal
	}
	if in.PaymentMethod != PaymentMethodPayPal {
		return CreateResult{}, ErrUnsupportedPaymentMethod
	}
	if in.ShippingMethod == "" {
		in.ShippingMethod = checkout.ShippingStandard
	}
	if _, err := s.pricer.ShippingCents(0, in.ShippingMethod); err != nil {
		return CreateResult{}, err
	}

	if in.IdempotencyKey != "" {
		if res, ok, err := s.replay(ctx, in); ok || err != nil {
			return res, err
		}
	}

	cartID, guest, err := s.snapshotCart(ctx, in)
	if err != nil {
		return CreateResult{}, err
	}
	if guest {
		defer func() {
			// the transaction removes it on success
			if err != nil {
				_ = s.carts.DeleteCart(context.WithoutCancel(ctx), cartID)
			}
		}()
	}

	var o Order
	var items []OrderItem
	err = database.WithTxRetry(ctx, s.db, 3, func(tx *gorm.DB) error {
		var txErr error
		o, items, txErr = s.createTx(ctx, tx, in, cartID, guest)
		return txErr
	})
	if err != nil {
		if in.IdempotencyKey != "" && database.IsDuplicateKey(err) {
			if res, ok, rerr := s.replay(ctx, in); ok || rerr != nil {
				return res, rerr
			}
		}
		return CreateResult{}, err
	}

	s.metrics.OrderCreated()
	s.log.Info("order created", "order_id", o.ID, "total_cents", o.TotalCents, "guest", guest)
	if nerr := s.notifier.OrderPlaced(ctx, o, items); nerr != nil {
		s.log.Warn("order confirmation enqueue failed", "order_id", o.ID, "err", nerr)
	}
	syncMirror(ctx, s.mirror, s.log, o.ID)

	return CreateResult{Order: o, Items: items, Created: true}, nil
}

// replay returns the order already created with this idempotency key.
func (s *Service) replay(ctx context.Context, in CreateInput) (CreateResult, bool, error) {
	o, ok, err := s.repo.findByIdempotencyKey(ctx, in.IdempotencyKey)
	if err != nil || !ok {
		return CreateResult{}, false, err
	}
	sameOwner := (o.UserID != nil && *o.UserID == in.UserID) ||
		(o.UserID == nil && in.UserID == "" && o.Email == in.Email)
	if !sameOwner {
		return CreateResult{}, false, ErrIdempotencyConflict
	}
	o, items, err := s.repo.GetWithItems(ctx, o.ID)
	if err != nil {
		return CreateResult{}, false, err
	}
	return CreateResult{Order: o, Items: items}, true, nil
}

func (s *Service) snapshotCart(ctx context.Context, in CreateInput) (string, bool, error) {
	if in.UserID != "" {
		id, err := s.carts.OpenCartID(ctx, in.UserID)
		if err != nil {
			return "", false, err
		}
		if id == "" {
			return "", false, ErrCartEmpty
		}
		return id, false, nil
	}
	if len(in.GuestItems) == 0 {
		return "", true, ErrCartEmpty
	}
	id, err := s.carts.CreateTempCart(ctx, in.GuestItems)
	return id, true, err
}

func (s *Service) createTx(ctx context.Context, tx *gorm.DB, in CreateInput, cartID string, guest bool) (Order, []OrderItem, error) {
	var rows []lineRow
	if err := tx.WithContext(ctx).
		Table("cart_items AS ci").
		Select(`ci.variant_id AS variant_id,
			ci.quantity AS qty,
			v.price_cents AS price_cents,
			v.currency AS currency,
			v.sku AS sku,
			v.options_json AS options_json,
			p.id AS product_id,
			p.name AS product_name,
			p.slug AS product_slug,
			p.status AS product_status,
			(SELECT pi.url FROM product_images pi WHERE pi.product_id = p.id ORDER BY pi.position ASC, pi.id ASC LIMIT 1) AS image_url`).
		Joins("JOIN product_variants v ON v.id = ci.variant_id").
		Joins("JOIN products p ON p.id = v.product_id").
		Where("ci.cart_id = ?", cartID).
		Order("ci.created_at ASC").
		Order("ci.id ASC").
		Scan(&rows).Error; err != nil {
		return Order{}, nil, err
	}
	if len(rows) == 0 {
		return Order{}, nil, ErrCartEmpty
	}

	currency := s.pricer.Currency()
	var unavailable []string
	subtotal := 0
	stock := make([]checkout.StockLine, 0, len(rows))
	for _, r := range rows {
		if r.ProductStatus != "active" {
			unavailable = append(unavailable, r.ProductName)
			continue
		}
		if !strings.EqualFold(r.Currency, currency) {
			return Order{}, nil, ErrCurrencyMismatch
		}
		subtotal += r.PriceCents * r.Qty
		stock = append(stock, checkout.StockLine{VariantID: r.VariantID, Qty: r.Qty})
	}
	if len(unavailable) > 0 {
		return Order{}, nil, fmt.Errorf("%w: %s", ErrProductUnavailable, strings.Join(unavailable, ", "))
	}

	if err := checkout.DeductStockInTx(ctx, tx, stock); err != nil {
		return Order{}, nil, err
	}

	totals, err := s.pricer.Totals(subtotal, in.ShippingMethod)
	if err != nil {
		return Order{}, nil, err
	}

	ship := in.ShippingAddress.Normalize()
	bill := ship
	if in.BillingAddress != nil {
		bill = in.BillingAddress.Normalize()
	}
	shipJSON, err := json.Marshal(ship)
	if err != nil {
		return Order{}, nil, err
	}
	billJSON, err := json.Marshal(bill)
	if err != nil {
		return Order{}, nil, err
	}

	var userID *string
	if in.UserID != "" {
		uid := in.UserID
		userID = &uid
	}
	first, last := ship.SplitName()
	cust, err := customers.UpsertTx(ctx, tx, customers.Input{
		UserID:         userID,
		Email:          in.Email,
		FirstName:      first,
		LastName:       last,
		Phone:          ship.Phone,
		DefaultAddress: datatypes.JSON(shipJSON),
	})
	if err != nil {
		return Order{}, nil, err
	}

	now := s.now()
	o := Order{
		ID:                  uuid.NewString(),
		UserID:              userID,
		Email:               in.Email,
		CustomerID:          &cust.ID,
		CartID:              cartID,
		Status:              StatusCreated,
		Currency:            currency,
		SubtotalCents:       totals.Subtotal,
		TaxCents:            totals.Tax,
		ShippingCents:       totals.Shipping,
		DiscountCents:       totals.Discount,
		TotalCents:          totals.Total,
		ShippingMethod:      in.ShippingMethod,
		PaymentMethod:       in.PaymentMethod,
		ShippingAddressJSON: datatypes.JSON(shipJSON),
		BillingAddressJSON:  datatypes.JSON(billJSON),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if userID == nil {
		email := in.Email
		o.GuestEmail = &email
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		o.IdempotencyKey = &key
	}
	if err := tx.WithContext(ctx).Create(&o).Error; err != nil {
		return Order{}, nil, err
	}

	items := make([]OrderItem, 0, len(rows))
	for _, r := range rows {
		it := OrderItem{
			ID:             uuid.NewString(),
			OrderID:        o.ID,
			VariantID:      r.VariantID,
			ProductID:      r.ProductID,
			ProductName:    r.ProductName,
			ProductSlug:    r.ProductSlug,
			SKU:            r.SKU,
			Options:        r.Options,
			UnitPriceCents: r.PriceCents,
			Quantity:       r.Qty,
			LineTotalCents: r.PriceCents * r.Qty,
			Currency:       currency,
			CreatedAt:      now,
		}
		if r.ImageURL != nil {
			it.ImageURL = *r.ImageURL
		}
		items = append(items, it)
	}
	if err := tx.WithContext(ctx).Create(&items).Error; err != nil {
		return Order{}, nil, err
	}

	if err := addEventTx(ctx, tx, o.ID, in.UserID, ActionCreate, "", StatusCreated, "", now); err != nil {
		return Order{}, nil, err
	}

	if guest {
		if err := tx.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&cart.CartItem{}).Error; err != nil {
			return Order{}, nil, err
		}
		if err := tx.WithContext(ctx).Delete(&cart.Cart{}, "id = ?", cartID).Error; err != nil {
			return Order{}, nil, err
		}
	} else if err := cart.MarkConvertedTx(tx.WithContext(ctx), cartID); err != nil {
		return Order{}, nil, err
	}
	return o, items, nil
}

func (s *Service) ListForUser(ctx context.Context, in ListByUserParams) (ListByUserResult, error) {
	return s.repo.ListByUser(ctx, in)
}

func (s *Service) GetForViewer(ctx context.Context, id string, v Viewer) (Order, []OrderItem, error) {
	o, items, err := s.repo.GetForViewer(ctx, id, v)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Order{}, nil, ErrNotFound
	}
	return o, items, err
}
