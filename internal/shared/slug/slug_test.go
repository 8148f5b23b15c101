package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromName(t *testing.T) {
	assert.Equal(t, "classic-denim-jacket", FromName("  Classic Denim Jacket ", "product"))
	assert.Equal(t, "creme-brulee-set", FromName("Crème Brûlée Set", "product"))
	assert.Equal(t, "t-shirts-tops", FromName("T-Shirts & Tops!!", "category"))
	assert.Equal(t, "product", FromName("!!!", "product"))
}
