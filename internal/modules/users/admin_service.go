// Package users holds the admin user screens and the password reset flow.
// Identity, sessions and password hashing live in auth.
package users

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"shopdesk.io/app/internal/modules/auth"
	"shopdesk.io/app/internal/modules/customers"
	"shopdesk.io/app/internal/platform/database"
)

type AdminService struct {
	db   *gorm.DB
	repo *auth.Repo
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{db: db, repo: auth.NewRepo(db)}
}

type ListParams struct {
	Q        string
	Role     string
	Page     int
	PageSize int
}

type ListResult struct {
	Items    []auth.User `json:"items"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func validRole(r string) bool { return r == auth.RoleAdmin || r == auth.RoleCustomer }

func (s *AdminService) List(ctx context.Context, p ListParams) (ListResult, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 100 {
		p.PageSize = 20
	}
	q := s.db.WithContext(ctx).Model(&auth.User{})
	if term := strings.ToLower(strings.TrimSpace(p.Q)); term != "" {
		like := database.LikeContains(term)
		q = q.Where("email LIKE ? ESCAPE '!' OR LOWER(name) LIKE ? ESCAPE '!'", like, like)
	}
	if p.Role != "" {
		q = q.Where("role = ?", p.Role)
	}

	out := ListResult{Page: p.Page, PageSize: p.PageSize}
	if err := q.Count(&out.Total).Error; err != nil {
		return out, err
	}
	err := q.Order("created_at DESC").
		Offset((p.Page - 1) * p.PageSize).
		Limit(p.PageSize).
		Find(&out.Items).Error
	return out, err
}

func (s *AdminService) Get(ctx context.Context, id string) (*auth.User, error) {
	return s.repo.GetByID(ctx, id)
}

type CreateInput struct {
	Email    string
	Name     string
	Password string
	Role     string
}

func (s *AdminService) Create(ctx context.Context, in CreateInput) (*auth.User, error) {
	if in.Role == "" {
		in.Role = auth.RoleCustomer
	}
	if !validRole(in.Role) {
		return nil, ErrInvalidRole
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &auth.User{
		Email:        in.Email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Role:         in.Role,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

type UpdateInput struct {
	Email    string
	Name     string
	Role     string
	Password string // empty keeps the current one
}

// Update edits a user on behalf of actorID. An admin may not take away their
// own admin role. A password change signs the user out everywhere.
func (s *AdminService) Update(ctx context.Context, actorID, id string, in UpdateInput) (*auth.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Role != "" {
		if !validRole(in.Role) {
			return nil, ErrInvalidRole
		}
		if id == actorID && u.IsAdmin() && in.Role != auth.RoleAdmin {
			return nil, ErrSelfDemote
		}
		u.Role = in.Role
	}
	if e := strings.TrimSpace(in.Email); e != "" {
		u.Email = e
	}
	u.Name = strings.TrimSpace(in.Name)

	passwordChanged := false
	if in.Password != "" {
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
		passwordChanged = true
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := auth.NewRepo(tx)
		if err := repo.Save(ctx, u); err != nil {
			return err
		}
		if passwordChanged && id != actorID {
			return repo.DeleteUserSessions(ctx, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Delete removes a user and their sessions. Orders keep their snapshot; the
// customer record is unlinked.
func (s *AdminService) Delete(ctx context.Context, actorID, id string) error {
	if id == actorID {
		return ErrSelfDelete
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := auth.NewRepo(tx)
		if _, err := repo.GetByID(ctx, id); err != nil {
			return err
		}
		if err := repo.DeleteUserSessions(ctx, id); err != nil {
			return err
		}
		err := tx.Model(&customers.Customer{}).
			Where("user_id = ?", id).
			Update("user_id", nil).Error
		if err != nil {
			return err
		}
		res := tx.Delete(&auth.User{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return auth.ErrUserNotFound
		}
		return nil
	})
}
