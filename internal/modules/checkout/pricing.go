package checkout

import (
	"strings"

	"shopdesk.io/app/internal/config"
)

const (
	ShippingStandard = "standard"
	ShippingExpress  = "express"
)

// Totals are all in minor units of one currency.
type Totals struct {
	Subtotal int `json:"subtotal_cents"`
	Shipping int `json:"shipping_cents"`
	Tax      int `json:"tax_cents"`
	Discount int `json:"discount_cents"`
	Total    int `json:"total_cents"`
}

type ShippingOption struct {
	Code       string `json:"code"`
	Label      string `json:"label"`
	PriceCents int    `json:"price_cents"`
}

type Pricer struct {
	cfg config.CheckoutConfig
}

func NewPricer(cfg config.CheckoutConfig) *Pricer {
	return &Pricer{cfg: cfg}
}

func (p *Pricer) Currency() string { return strings.ToUpper(p.cfg.Currency) }

func (p *Pricer) ShippingCents(subtotal int, method string) (int, error) {
	switch method {
	case ShippingStandard, "":
		if subtotal >= p.cfg.FreeShippingThresholdCents {
			return 0, nil
		}
		return p.cfg.StandardShippingCents, nil
	case ShippingExpress:
		return p.cfg.ExpressShippingCents, nil
	default:
		return 0, ErrUnknownShippingMethod
	}
}

// TaxCents applies the basis-point rate, rounding half up to the cent.
func (p *Pricer) TaxCents(subtotal int) int {
	if subtotal <= 0 {
		return 0
	}
	return (subtotal*p.cfg.TaxRateBasisPoints + 5000) / 10000
}

// Totals computes the order totals. Coupons are not supported, so the
// discount is always zero.
func (p *Pricer) Totals(subtotal int, method string) (Totals, error) {
	ship, err := p.ShippingCents(subtotal, method)
	if err != nil {
		return Totals{}, err
	}
	t := Totals{
		Subtotal: subtotal,
		Shipping: ship,
		Tax:      p.TaxCents(subtotal),
	}
	t.Total = t.Subtotal + t.Shipping + t.Tax - t.Discount
	return t, nil
}

func (p *Pricer) ShippingOptions(subtotal int) []ShippingOption {
	std, _ := p.ShippingCents(subtotal, ShippingStandard)
	exp, _ := p.ShippingCents(subtotal, ShippingExpress)
	return []ShippingOption{
		{Code: ShippingStandard, Label: "Standard delivery (3-5 business days)", PriceCents: std},
		{Code: ShippingExpress, Label: "Express delivery (1-2 business days)", PriceCents: exp},
	}
}
