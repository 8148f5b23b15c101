package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopdesk.io/app/internal/http/handlers"
	"shopdesk.io/app/internal/modules/products"
)

type CategoriesHandler struct {
	Repo *products.Repo
}

func NewCategoriesHandler(repo *products.Repo) *CategoriesHandler {
	return &CategoriesHandler{Repo: repo}
}

// GET /api/admin/categories returns the flat list and the tree.
func (h *CategoriesHandler) List(c *gin.Context) {
	cats, err := h.Repo.ListCategories(c.Request.Context())
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": cats, "tree": products.BuildTree(cats)})
}

// GET /api/admin/categories/:id
func (h *CategoriesHandler) Get(c *gin.Context) {
	cat, err := h.Repo.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

type categoryInput struct {
	Name        string  `json:"name" binding:"required,max=120"`
	Slug        string  `json:"slug" binding:"max=140"`
	Description string  `json:"description" binding:"max=5000"`
	ParentID    *string `json:"parent_id" binding:"omitempty,max=36"`
	Position    int     `json:"position"`
}

func (in categoryInput) toInput() products.CategoryInput {
	return products.CategoryInput{
		Name:        in.Name,
		Slug:        in.Slug,
		Description: in.Description,
		ParentID:    in.ParentID,
		Position:    in.Position,
	}
}

// POST /api/admin/categories
func (h *CategoriesHandler) Create(c *gin.Context) {
	var in categoryInput
	if !handlers.BindJSON(c, &in) {
		return
	}
	cat, err := h.Repo.CreateCategory(c.Request.Context(), in.toInput())
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

// PUT /api/admin/categories/:id
func (h *CategoriesHandler) Update(c *gin.Context) {
	var in categoryInput
	if !handlers.BindJSON(c, &in) {
		return
	}
	cat, err := h.Repo.UpdateCategory(c.Request.Context(), c.Param("id"), in.toInput())
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

// DELETE /api/admin/categories/:id
func (h *CategoriesHandler) Delete(c *gin.Context) {
	if err := h.Repo.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		handlers.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
