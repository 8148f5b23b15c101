package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"shopdesk.io/app/internal/http/handlers"
	"shopdesk.io/app/internal/http/middleware"
	"shopdesk.io/app/internal/modules/products"
	"shopdesk.io/app/internal/shared/apperr"
	"shopdesk.io/app/pkg/view"
)

// MaxImageBytes bounds one image upload.
const MaxImageBytes = 10 << 20

type ProductsHandler struct {
	Svc *products.AdminService
}

func NewProductsHandler(svc *products.AdminService) *ProductsHandler {
	return &ProductsHandler{Svc: svc}
}

type listProductsQuery struct {
	Q          string `form:"q" binding:"max=200"`
	Status     string `form:"status" binding:"omitempty,oneof=draft active archived"`
	CategoryID string `form:"category_id" binding:"max=36"`
	Sort       string `form:"sort" binding:"omitempty,oneof=newest oldest name updated"`
	handlers.PageParams
}

// GET /api/admin/products
func (h *ProductsHandler) List(c *gin.Context) {
	var q listProductsQuery
	if !handlers.BindQuery(c, &q) {
		return
	}
	page, size := q.Normalize(20)
	items, total, err := h.Svc.Repo().List(c.Request.Context(), products.AdminQuery{
		Q: q.Q, Status: q.Status, CategoryID: q.CategoryID, Sort: q.Sort, Page: page, PageSize: size,
	})
	if err != nil {
		handlers.Fail(c, err)
		return
	}

	out := view.AdminProductsPage{
		Items: make([]view.AdminProductListItem, 0, len(items)),
		Page:  view.NewPage(total, page, size),
	}
	for _, p := range items {
		row := view.AdminProductListItem{
			ID:           p.ID,
			Name:         p.Name,
			Slug:         p.Slug,
			Brand:        p.Brand,
			Status:       p.Status,
			Featured:     p.Featured,
			CategoryID:   p.CategoryID,
			VariantCount: len(p.Variants),
			ImageURL:     p.PrimaryImageURL(),
			UpdatedAt:    p.UpdatedAt,
		}
		for _, v := range p.Variants {
			row.TotalStock += v.Stock
		}
		if price, cur, ok := p.MinPrice(); ok {
			row.Price = view.MoneyFromCents(price, cur)
		}
		out.Items = append(out.Items, row)
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/admin/products/:id
func (h *ProductsHandler) Get(c *gin.Context) {
	p, err := h.Svc.Repo().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handlers.ProductDetailView(p, true))
}

type productInput struct {
	Name        string  `json:"name" binding:"required,max=200"`
	Slug        string  `json:"slug" binding:"max=220"`
	Brand       string  `json:"brand" binding:"max=120"`
	Description string  `json:"description" binding:"max=20000"`
	CategoryID  *string `json:"category_id" binding:"omitempty,max=36"`
	Status      string  `json:"status" binding:"omitempty,oneof=draft active archived"`
	Featured    bool    `json:"featured"`
	Rating      float64 `json:"rating" binding:"min=0,max=5"`
	NumReviews  int     `json:"num_reviews" binding:"min=0"`
}

func (in productInput) toInput() products.ProductInput {
	return products.ProductInput{
		Name:        in.Name,
		Slug:        in.Slug,
		Brand:       in.Brand,
		Description: in.Description,
		CategoryID:  in.CategoryID,
		Status:      in.Status,
		Featured:    in.Featured,
		Rating:      in.Rating,
		NumReviews:  in.NumReviews,
	}
}

// POST /api/admin/products
func (h *ProductsHandler) Create(c *gin.Context) {
	var in productInput
	if !handlers.BindJSON(c, &in) {
		return
	}
	p, err := h.Svc.CreateProduct(c.Request.Context(), in.toInput())
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handlers.ProductDetailView(p, true))
}

// PUT /api/admin/products/:id
func (h *ProductsHandler) Update(c *gin.Context) {
	var in productInput
	if !handlers.BindJSON(c, &in) {
		return
	}
	p, err := h.Svc.UpdateProduct(c.Request.Context(), c.Param("id"), in.toInput())
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handlers.ProductDetailView(p, true))
}

// DELETE /api/admin/products/:id
func (h *ProductsHandler) Delete(c *gin.Context) {
	if err := h.Svc.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		handlers.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type variantInput struct {
	SKU            string         `json:"sku" binding:"required,max=80"`
	Options        map[string]any `json:"options"`
	PriceCents     int            `json:"price_cents" binding:"min=0"`
	CompareAtCents *int           `json:"compare_at_cents" binding:"omitempty,min=0"`
	Currency       string         `json:"currency" binding:"required,len=3"`
	Stock          int            `json:"stock" binding:"min=0"`
}

func (in variantInput) toInput() products.VariantInput {
	return products.VariantInput{
		SKU:            strings.TrimSpace(in.SKU),
		Options:        in.Options,
		PriceCents:     in.PriceCents,
		CompareAtCents: in.CompareAtCents,
		Currency:       strings.ToUpper(in.Currency),
		Stock:          in.Stock,
	}
}

// POST /api/admin/products/:id/variants
func (h *ProductsHandler) AddVariant(c *gin.Context) {
	var in variantInput
	if !handlers.BindJSON(c, &in) {
		return
	}
	v, err := h.Svc.AddVariant(c.Request.Context(), c.Param("id"), in.toInput())
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handlers.VariantView(v))
}

// PUT /api/admin/products/:id/variants/:variantID
func (h *ProductsHandler) UpdateVariant(c *gin.Context) {
	var in variantInput
	if !handlers.BindJSON(c, &in) {
		return
	}
	v, err := h.Svc.UpdateVariant(c.Request.Context(), c.Param("id"), c.Param("variantID"), in.toInput())
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handlers.VariantView(v))
}

// DELETE /api/admin/products/:id/variants/:variantID
func (h *ProductsHandler) DeleteVariant(c *gin.Context) {
	if err := h.Svc.DeleteVariant(c.Request.Context(), c.Param("id"), c.Param("variantID")); err != nil {
		handlers.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/admin/products/:id/images (multipart, field "file")
func (h *ProductsHandler) UploadImage(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		middleware.Fail(c, apperr.InvalidErr("Please choose an image.", map[string]string{"file": "This field is required."}))
		return
	}
	if fh.Size > MaxImageBytes {
		middleware.Fail(c, apperr.InvalidErr("The image is too large.", map[string]string{"file": "Must be at most 10 MB."}))
		return
	}
	f, err := fh.Open()
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	defer f.Close()

	im, err := h.Svc.UploadImage(c.Request.Context(), c.Param("id"), products.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view.ProductImage{ID: im.ID, URL: im.URL, Position: im.Position})
}

// DELETE /api/admin/products/:id/images/:imageID
func (h *ProductsHandler) DeleteImage(c *gin.Context) {
	if err := h.Svc.DeleteImage(c.Request.Context(), c.Param("id"), c.Param("imageID")); err != nil {
		handlers.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
