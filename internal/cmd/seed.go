package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"shopdesk.io/app/internal/modules/auth"
	"shopdesk.io/app/internal/modules/products"
	"shopdesk.io/app/internal/platform/database"
	"shopdesk.io/app/internal/platform/logging"
	"shopdesk.io/app/internal/platform/schema"
)

var (
	seedAdminEmail    string
	seedAdminPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo catalog and an admin account",
	Long:  "seed is safe to run repeatedly: rows that already exist are left alone.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, closeLog := logging.New(cfg.Log)
		defer closeLog.Close()

		db, err := database.Open(cfg.DB, log)
		if err != nil {
			return err
		}
		if err := schema.Migrate(cmd.Context(), db); err != nil {
			return err
		}
		return seedDemo(cmd.Context(), db, log, cfg.Checkout.Currency, seedAdminEmail, seedAdminPassword)
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedAdminEmail, "admin-email", "admin@example.com", "admin account email")
	seedCmd.Flags().StringVar(&seedAdminPassword, "admin-password", "admin123", "admin account password")
	rootCmd.AddCommand(seedCmd)
}

type demoVariant struct {
	sku     string
	options map[string]any
	price   int
	stock   int
}

type demoProduct struct {
	name, brand, category, description string
	featured                           bool
	rating                             float64
	reviews                            int
	variants                           []demoVariant
}

var demoCategories = []string{"Shoes", "Apparel", "Accessories"}

var demoCatalog = []demoProduct{
	{
		name: "Trail Runner", brand: "Northpeak", category: "Shoes", featured: true, rating: 4.6, reviews: 128,
		description: "Lightweight trail shoe with a grippy outsole.",
		variants: []demoVariant{
			{"TR-41", map[string]any{"size": "41"}, 12900, 8},
			{"TR-42", map[string]any{"size": "42"}, 12900, 12},
			{"TR-43", map[string]any{"size": "43"}, 12900, 3},
		},
	},
	{
		name: "City Sneaker", brand: "Urbane", category: "Shoes", rating: 4.1, reviews: 54,
		description: "Everyday leather sneaker.",
		variants: []demoVariant{
			{"CS-40-WHT", map[string]any{"size": "40", "color": "white"}, 8900, 10},
			{"CS-42-BLK", map[string]any{"size": "42", "color": "black"}, 8900, 0},
		},
	},
	{
		name: "Merino Tee", brand: "Northpeak", category: "Apparel", featured: true, rating: 4.8, reviews: 312,
		description: "Soft merino wool t-shirt.",
		variants: []demoVariant{
			{"MT-S", map[string]any{"size": "S"}, 5900, 20},
			{"MT-M", map[string]any{"size": "M"}, 5900, 25},
			{"MT-L", map[string]any{"size": "L"}, 5900, 4},
		},
	},
	{
		name: "Canvas Tote", brand: "Urbane", category: "Accessories", rating: 3.9, reviews: 17,
		description: "Heavy canvas tote bag.",
		variants: []demoVariant{
			{"CT-ONE", nil, 2400, 40},
		},
	},
}

// seedDemo inserts what is missing of the demo data and the admin user.
func seedDemo(ctx context.Context, db *gorm.DB, log *slog.Logger, currency, adminEmail, adminPassword string) error {
	repo := products.NewRepo(db)
	admin := products.NewAdminService(repo, nil, log)

	catIDs := map[string]string{}
	for i, name := range demoCategories {
		var existing products.Category
		err := db.WithContext(ctx).Where("name = ?", name).First(&existing).Error
		switch {
		case err == nil:
			catIDs[name] = existing.ID
			continue
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		c, err := repo.CreateCategory(ctx, products.CategoryInput{Name: name, Position: i})
		if err != nil {
			return fmt.Errorf("seed category %s: %w", name, err)
		}
		catIDs[name] = c.ID
	}

	created := 0
	for _, dp := range demoCatalog {
		var n int64
		if err := db.WithContext(ctx).Model(&products.Product{}).Where("name = ?", dp.name).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		catID := catIDs[dp.category]
		p, err := admin.CreateProduct(ctx, products.ProductInput{
			Name:        dp.name,
			Brand:       dp.brand,
			Description: dp.description,
			CategoryID:  &catID,
			Status:      products.StatusActive,
			Featured:    dp.featured,
			Rating:      dp.rating,
			NumReviews:  dp.reviews,
		})
		if err != nil {
			return fmt.Errorf("seed product %s: %w", dp.name, err)
		}
		for _, v := range dp.variants {
			if _, err := admin.AddVariant(ctx, p.ID, products.VariantInput{
				SKU: v.sku, Options: v.options, PriceCents: v.price, Currency: currency, Stock: v.stock,
			}); err != nil {
				return fmt.Errorf("seed variant %s: %w", v.sku, err)
			}
		}
		created++
	}

	authSvc := auth.NewService(db, 0)
	u, err := authSvc.Signup(ctx, auth.SignupInput{Email: adminEmail, Password: adminPassword, Name: "Admin"})
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		u, err = authSvc.Repo().GetByEmail(ctx, adminEmail)
		if err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("seed admin: %w", err)
	}
	if u.Role != auth.RoleAdmin {
		if err := db.WithContext(ctx).Model(&auth.User{}).Where("id = ?", u.ID).Update("role", auth.RoleAdmin).Error; err != nil {
			return err
		}
	}

	log.Info("seed complete", "products_created", created, "admin", adminEmail)
	return nil
}
