package cartcookie

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartOps(t *testing.T) {
	var c Cart
	c.Add("v1", 2)
	c.Add("v1", 3)
	c.Add("v2", 200)
	c.Add("v3", 0)

	require.Len(t, c.Items, 2)
	assert.Equal(t, 5, c.Items[0].Qty)
	assert.Equal(t, MaxQty, c.Items[1].Qty)
	assert.Equal(t, 5+MaxQty, c.Count())

	assert.True(t, c.Set("v1", 1))
	assert.Equal(t, 1, c.Items[0].Qty)
	assert.True(t, c.Remove("v1"))
	assert.False(t, c.Remove("v1"))
	assert.Len(t, c.Items, 1)
}

func TestWishlistOps(t *testing.T) {
	var w Wishlist
	w.Add("p1")
	w.Add("p1")
	w.Add("p2")
	assert.Equal(t, []string{"p1", "p2"}, w.ProductIDs)
	assert.True(t, w.Remove("p1"))
	assert.Equal(t, []string{"p2"}, w.ProductIDs)
}

func TestEncodeDecodeRejectsTampering(t *testing.T) {
	codec := New([]byte("k"), "cart", false)
	v, err := codec.Encode(Cart{Items: []Item{{VariantID: "v1", Qty: 2}}})
	require.NoError(t, err)

	var got Cart
	require.NoError(t, codec.Decode(v, &got))
	assert.Equal(t, "v1", got.Items[0].VariantID)

	other := New([]byte("other"), "cart", false)
	assert.ErrorIs(t, other.Decode(v, &got), ErrInvalid)
	assert.ErrorIs(t, codec.Decode("x"+v, &got), ErrInvalid)
	assert.ErrorIs(t, codec.Decode("garbage", &got), ErrInvalid)
}

func TestCookieRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	codec := New([]byte("k"), "cart", false)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	cart := Cart{}
	cart.Add("v1", 3)
	require.NoError(t, codec.SaveCart(c, cart))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)

	w2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(w2)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	c2.Request = req
	assert.Equal(t, 3, codec.Cart(c2).Count())

	// tampered cookies read as empty and get cleared
	w3 := httptest.NewRecorder()
	c3, _ := gin.CreateTestContext(w3)
	req3 := httptest.NewRequest(http.MethodGet, "/", nil)
	req3.AddCookie(&http.Cookie{Name: "cart", Value: "abc.def"})
	c3.Request = req3
	assert.Equal(t, 0, codec.Cart(c3).Count())
	require.Len(t, w3.Result().Cookies(), 1)
	assert.Equal(t, -1, w3.Result().Cookies()[0].MaxAge)
}
