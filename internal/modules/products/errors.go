package products

import "errors"

var (
	ErrNotFound         = errors.New("products: not found")
	ErrVariantNotFound  = errors.New("products: variant not found")
	ErrImageNotFound    = errors.New("products: image not found")
	ErrCategoryNotFound = errors.New("products: category not found")
	ErrSlugTaken        = errors.New("products: slug already in use")
	ErrSKUTaken         = errors.New("products: sku already in use")
	ErrCategoryInUse    = errors.New("products: category still has products or subcategories")
	ErrInvalidParent    = errors.New("products: invalid parent category")
	ErrInvalidStatus    = errors.New("products: invalid status")
)
