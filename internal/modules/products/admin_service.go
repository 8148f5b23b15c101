package products

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"shopdesk.io/app/internal/shared/slug"
	"shopdesk.io/app/internal/storage"
)

// AdminService owns product writes that touch both the database and
// object storage.
type AdminService struct {
	repo  *Repo
	store storage.Storage
	log   *slog.Logger
}

func NewAdminService(repo *Repo, store storage.Storage, log *slog.Logger) *AdminService {
	return &AdminService{repo: repo, store: store, log: log}
}

func (s *AdminService) Repo() *Repo { return s.repo }

type ProductInput struct {
	Name        string
	Slug        string
	Brand       string
	Description string
	CategoryID  *string
	Status      string
	Featured    bool
	Rating      float64
	NumReviews  int
}

func (s *AdminService) normalize(ctx context.Context, in ProductInput) (ProductInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Brand = strings.TrimSpace(in.Brand)
	in.Slug = slug.FromName(in.Slug, "")
	if in.Slug == "" {
		in.Slug = slug.FromName(in.Name, "product")
	}
	if in.Status == "" {
		in.Status = StatusDraft
	}
	if !ValidStatus(in.Status) {
		return in, ErrInvalidStatus
	}
	if in.CategoryID != nil && strings.TrimSpace(*in.CategoryID) == "" {
		in.CategoryID = nil
	}
	if in.CategoryID != nil {
		if _, err := s.repo.GetCategory(ctx, *in.CategoryID); err != nil {
			return in, err
		}
	}
	return in, nil
}

func (s *AdminService) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	in, err := s.normalize(ctx, in)
	if err != nil {
		return Product{}, err
	}
	p := Product{
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
	if err := s.repo.CreateProduct(ctx, &p); err != nil {
		return Product{}, err
	}
	return s.repo.Get(ctx, p.ID)
}

func (s *AdminService) UpdateProduct(ctx context.Context, id string, in ProductInput) (Product, error) {
	in, err := s.normalize(ctx, in)
	if err != nil {
		return Product{}, err
	}
	p := Product{
		ID:          id,
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
	if err := s.repo.UpdateProduct(ctx, &p); err != nil {
		return Product{}, err
	}
	return s.repo.Get(ctx, id)
}

// DeleteProduct removes the rows first; stored images are removed after,
// failures there are only logged.
func (s *AdminService) DeleteProduct(ctx context.Context, id string) error {
	keys, err := s.repo.DeleteProduct(ctx, id)
	if err != nil {
		return err
	}
	for _, k := range keys {
		s.deleteObject(ctx, k)
	}
	return nil
}

func (s *AdminService) AddVariant(ctx context.Context, productID string, in VariantInput) (Variant, error) {
	return s.repo.AddVariant(ctx, productID, in)
}

func (s *AdminService) UpdateVariant(ctx context.Context, productID, variantID string, in VariantInput) (Variant, error) {
	return s.repo.UpdateVariant(ctx, productID, variantID, in)
}

func (s *AdminService) DeleteVariant(ctx context.Context, productID, variantID string) error {
	return s.repo.DeleteVariant(ctx, productID, variantID)
}

type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

func (s *AdminService) UploadImage(ctx context.Context, productID string, up Upload) (Image, error) {
	if err := s.repo.exists(ctx, productID); err != nil {
		return Image{}, err
	}
	if s.store == nil {
		return Image{}, errors.New("products: no storage configured")
	}
	res, err := s.store.Put(ctx, up.Body, storage.PutInput{
		Filename:    up.Filename,
		ContentType: up.ContentType,
		Size:        up.Size,
		Folder:      "products/" + productID,
	})
	if err != nil {
		return Image{}, err
	}
	im, err := s.repo.AddImageWithKey(ctx, productID, res.Key, res.URL)
	if err != nil {
		s.deleteObject(ctx, res.Key)
		return Image{}, err
	}
	return im, nil
}

func (s *AdminService) DeleteImage(ctx context.Context, productID, imageID string) error {
	im, err := s.repo.GetImage(ctx, productID, imageID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteImage(ctx, productID, imageID); err != nil {
		return err
	}
	s.deleteObject(ctx, im.StorageKey)
	return nil
}

func (s *AdminService) deleteObject(ctx context.Context, key string) {
	if s.store == nil || key == "" {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil && s.log != nil {
		s.log.Warn("storage delete failed", "key", key, "err", err)
	}
}
