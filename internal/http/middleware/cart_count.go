package middleware

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"shopdesk.io/app/internal/http/cartcookie"
)

const cartCountKey = "cart_count"

// UserCartCounter counts items in a signed-in user's open cart.
type UserCartCounter interface {
	CountForUser(ctx context.Context, userID string) (int, error)
}

type CartCountCfg struct {
	Codec *cartcookie.Codec
	Users UserCartCounter
}

// CartCount puts the item count on the context and the X-Cart-Count header,
// from the database for users and from the signed cookie for guests.
// Must run after Session.
func CartCount(cfg CartCountCfg) gin.HandlerFunc {
	return func(c *gin.Context) {
		n := 0
		if u, ok := CurrentUser(c); ok && cfg.Users != nil {
			if cnt, err := cfg.Users.CountForUser(c.Request.Context(), u.ID); err == nil {
				n = cnt
			}
		} else if cfg.Codec != nil {
			n = cfg.Codec.Cart(c).Count()
		}

		c.Set(cartCountKey, n)
		c.Header("X-Cart-Count", strconv.Itoa(n))
		c.Next()
	}
}

func GetCartCount(c *gin.Context) int {
	v, ok := c.Get(cartCountKey)
	if !ok {
		return 0
	}
	n, _ := v.(int)
	return n
}
