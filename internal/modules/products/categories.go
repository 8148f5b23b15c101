package products

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"shopdesk.io/app/internal/platform/database"
	"shopdesk.io/app/internal/shared/slug"
)

type CategoryInput struct {
	Name        string
	Slug        string
	Description string
	ParentID    *string
	Position    int
}

func (r *Repo) GetCategory(ctx context.Context, id string) (Category, error) {
	var c Category
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c, ErrCategoryNotFound
	}
	return c, err
}

func (r *Repo) ListCategories(ctx context.Context) ([]Category, error) {
	var cats []Category
	err := r.db.WithContext(ctx).Order("position asc, name asc").Find(&cats).Error
	return cats, err
}

func (r *Repo) checkParent(ctx context.Context, selfID string, parentID *string) error {
	if parentID == nil || *parentID == "" {
		return nil
	}
	if *parentID == selfID {
		return ErrInvalidParent
	}
	// walk up to reject cycles
	cur := *parentID
	for i := 0; i < 16 && cur != ""; i++ {
		p, err := r.GetCategory(ctx, cur)
		if err != nil {
			if errors.Is(err, ErrCategoryNotFound) {
				return ErrInvalidParent
			}
			return err
		}
		if p.ID == selfID && selfID != "" {
			return ErrInvalidParent
		}
		if p.ParentID == nil {
			return nil
		}
		cur = *p.ParentID
	}
	return nil
}

func (r *Repo) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	in = normalizeCategoryInput(in)
	if err := r.checkParent(ctx, "", in.ParentID); err != nil {
		return Category{}, err
	}
	c := Category{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Slug:        in.Slug,
		Description: in.Description,
		ParentID:    in.ParentID,
		Position:    in.Position,
	}
	if err := r.db.WithContext(ctx).Create(&c).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return Category{}, ErrSlugTaken
		}
		return Category{}, err
	}
	return c, nil
}

func (r *Repo) UpdateCategory(ctx context.Context, id string, in CategoryInput) (Category, error) {
	in = normalizeCategoryInput(in)
	if _, err := r.GetCategory(ctx, id); err != nil {
		return Category{}, err
	}
	if err := r.checkParent(ctx, id, in.ParentID); err != nil {
		return Category{}, err
	}
	err := r.db.WithContext(ctx).Model(&Category{}).Where("id = ?", id).Updates(map[string]any{
		"name":        in.Name,
		"slug":        in.Slug,
		"description": in.Description,
		"parent_id":   in.ParentID,
		"position":    in.Position,
	}).Error
	if err != nil {
		if database.IsDuplicateKey(err) {
			return Category{}, ErrSlugTaken
		}
		return Category{}, err
	}
	return r.GetCategory(ctx, id)
}

// DeleteCategory refuses while products or subcategories still point at it.
func (r *Repo) DeleteCategory(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&Product{}).Where("category_id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrCategoryInUse
		}
		if err := tx.Model(&Category{}).Where("parent_id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrCategoryInUse
		}
		res := tx.Delete(&Category{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCategoryNotFound
		}
		return nil
	})
}

func normalizeCategoryInput(in CategoryInput) CategoryInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = slug.FromName(strings.TrimSpace(in.Slug), "")
	if in.Slug == "" {
		in.Slug = slug.FromName(in.Name, "category")
	}
	if in.ParentID != nil && strings.TrimSpace(*in.ParentID) == "" {
		in.ParentID = nil
	}
	return in
}
