package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopdesk.io/app/internal/modules/products"
	"shopdesk.io/app/pkg/view"
)

// ProductsHandler serves the public catalog.
type ProductsHandler struct {
	Repo products.Repository
}

func NewProductsHandler(repo products.Repository) *ProductsHandler {
	return &ProductsHandler{Repo: repo}
}

type catalogQuery struct {
	Q        string `form:"q" binding:"max=200"`
	Category string `form:"category" binding:"max=140"`
	MinPrice *int   `form:"min_price" binding:"omitempty,min=0"`
	MaxPrice *int   `form:"max_price" binding:"omitempty,min=0"`
	InStock  bool   `form:"in_stock"`
	Featured bool   `form:"featured"`
	Sort     string `form:"sort" binding:"omitempty,oneof=newest price_asc price_desc name rating"`
	PageParams
}

type catalogPage struct {
	Items  []view.ProductCard `json:"items"`
	Facets products.Facets    `json:"facets"`
	view.Page
}

// GET /api/products
func (h *ProductsHandler) List(c *gin.Context) {
	var q catalogQuery
	if !BindQuery(c, &q) {
		return
	}
	res, err := h.Repo.Search(c.Request.Context(), products.Query{
		Q:        q.Q,
		Category: q.Category,
		MinPrice: q.MinPrice,
		MaxPrice: q.MaxPrice,
		InStock:  q.InStock,
		Featured: q.Featured,
		Sort:     q.Sort,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, catalogPage{
		Items:  ProductCardsView(res.Items),
		Facets: res.Facets,
		Page:   view.Page{Total: res.Total, Page: res.Page, PageSize: res.PageSize, Pages: res.Pages},
	})
}

// GET /api/products/:slug
func (h *ProductsHandler) Show(c *gin.Context) {
	p, err := h.Repo.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ProductDetailView(p, false))
}

// GET /api/categories
func (h *ProductsHandler) Categories(c *gin.Context) {
	cats, err := h.Repo.ListCategories(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": products.BuildTree(cats)})
}
