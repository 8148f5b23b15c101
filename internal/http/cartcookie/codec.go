package cartcookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

var ErrInvalid = errors.New("invalid cart cookie")

const (
	MaxAge          = 30 * 24 * time.Hour
	MaxQty          = 99
	MaxLines        = 50
	MaxWishlistSize = 100
)

type Item struct {
	VariantID string `json:"variant_id"`
	Qty       int    `json:"qty"`
}

// Cart is the guest cart carried in the cookie.
type Cart struct {
	Items []Item `json:"items"`
}

func clampQty(q int) int {
	if q > MaxQty {
		return MaxQty
	}
	return q
}

// Add increments an existing line or appends a new one.
func (c *Cart) Add(variantID string, qty int) {
	if qty <= 0 {
		return
	}
	for i := range c.Items {
		if c.Items[i].VariantID == variantID {
			c.Items[i].Qty = clampQty(c.Items[i].Qty + qty)
			return
		}
	}
	if len(c.Items) >= MaxLines {
		return
	}
	c.Items = append(c.Items, Item{VariantID: variantID, Qty: clampQty(qty)})
}

// Set replaces a line quantity; qty <= 0 removes the line.
func (c *Cart) Set(variantID string, qty int) bool {
	for i := range c.Items {
		if c.Items[i].VariantID == variantID {
			if qty <= 0 {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
			} else {
				c.Items[i].Qty = clampQty(qty)
			}
			return true
		}
	}
	return false
}

func (c *Cart) Remove(variantID string) bool {
	return c.Set(variantID, 0)
}

func (c Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		if it.Qty > 0 {
			n += it.Qty
		}
	}
	return n
}

// Wishlist is the guest wishlist carried in the cookie.
type Wishlist struct {
	ProductIDs []string `json:"product_ids"`
}

func (w *Wishlist) Add(productID string) {
	for _, id := range w.ProductIDs {
		if id == productID {
			return
		}
	}
	if len(w.ProductIDs) >= MaxWishlistSize {
		return
	}
	w.ProductIDs = append(w.ProductIDs, productID)
}

func (w *Wishlist) Remove(productID string) bool {
	for i, id := range w.ProductIDs {
		if id == productID {
			w.ProductIDs = append(w.ProductIDs[:i], w.ProductIDs[i+1:]...)
			return true
		}
	}
	return false
}

// Codec signs a JSON payload into one cookie.
// value format: base64url(json).base64url(hmac(json))
type Codec struct {
	Secret     []byte
	CookieName string
	Secure     bool
}

func New(secret []byte, name string, secure bool) *Codec {
	return &Codec{Secret: secret, CookieName: name, Secure: secure}
}

func (c *Codec) Encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	payload := base64.RawURLEncoding.EncodeToString(b)
	return payload + "." + sign(c.Secret, payload), nil
}

func (c *Codec) Decode(v string, dst any) error {
	parts := strings.Split(v, ".")
	if len(parts) != 2 || parts[0] == "" {
		return ErrInvalid
	}
	if !verify(c.Secret, parts[0], parts[1]) {
		return ErrInvalid
	}
	b, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return ErrInvalid
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return ErrInvalid
	}
	return nil
}

// Cart reads the guest cart; a tampered cookie is cleared and treated as empty.
func (c *Codec) Cart(ctx *gin.Context) Cart {
	var out Cart
	if !c.read(ctx, &out) {
		return Cart{}
	}
	items := out.Items[:0]
	for _, it := range out.Items {
		if it.VariantID != "" && it.Qty > 0 {
			it.Qty = clampQty(it.Qty)
			items = append(items, it)
		}
	}
	out.Items = items
	return out
}

func (c *Codec) SaveCart(ctx *gin.Context, cart Cart) error {
	if len(cart.Items) == 0 {
		c.Clear(ctx)
		return nil
	}
	return c.write(ctx, cart)
}

func (c *Codec) Wishlist(ctx *gin.Context) Wishlist {
	var out Wishlist
	if !c.read(ctx, &out) {
		return Wishlist{}
	}
	return out
}

func (c *Codec) SaveWishlist(ctx *gin.Context, w Wishlist) error {
	if len(w.ProductIDs) == 0 {
		c.Clear(ctx)
		return nil
	}
	return c.write(ctx, w)
}

func (c *Codec) read(ctx *gin.Context, dst any) bool {
	v, err := ctx.Cookie(c.CookieName)
	if err != nil || v == "" {
		return false
	}
	if err := c.Decode(v, dst); err != nil {
		c.Clear(ctx)
		return false
	}
	return true
}

func (c *Codec) write(ctx *gin.Context, v any) error {
	val, err := c.Encode(v)
	if err != nil {
		return err
	}
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(c.CookieName, val, int(MaxAge.Seconds()), "/", "", c.Secure, true)
	return nil
}

func (c *Codec) Clear(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(c.CookieName, "", -1, "/", "", c.Secure, true)
}

func sign(secret []byte, payload string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func verify(secret []byte, payload, sig string) bool {
	return hmac.Equal([]byte(sign(secret, payload)), []byte(sig))
}
