package checkout

import (
	"context"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopdesk.io/app/internal/platform/database"
)

type StockLine struct {
	VariantID string
	Qty       int
}

func aggregate(lines []StockLine) (map[string]int, []string) {
	want := make(map[string]int, len(lines))
	for _, ln := range lines {
		q := ln.Qty
		if q < 1 {
			q = 1
		}
		want[ln.VariantID] += q
	}
	ids := make([]string, 0, len(want))
	for id := range want {
		ids = append(ids, id)
	}
	// lock in a fixed order so concurrent checkouts cannot deadlock each other
	sort.Strings(ids)
	return want, ids
}

// DeductStockInTx runs inside the caller's transaction (no nested tx).
// Every short line is reported in one OutOfStockError.
func DeductStockInTx(ctx context.Context, tx *gorm.DB, lines []StockLine) error {
	if len(lines) == 0 {
		return nil
	}
	want, ids := aggregate(lines)

	type variantRow struct {
		ID    string `gorm:"column:id"`
		SKU   string `gorm:"column:sku"`
		Stock int    `gorm:"column:stock"`
	}
	var rows []variantRow

	if err := tx.WithContext(ctx).
		Table("product_variants").
		Select("id, sku, stock").
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return err
	}

	byID := make(map[string]variantRow, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	var oos []OutOfStockItem
	for _, id := range ids {
		req := want[id]
		r, ok := byID[id]
		if !ok || r.Stock < req {
			oos = append(oos, OutOfStockItem{VariantID: id, SKU: r.SKU, Requested: req, Available: r.Stock})
		}
	}
	if len(oos) > 0 {
		return &OutOfStockError{Items: oos}
	}

	for _, id := range ids {
		req := want[id]
		res := tx.WithContext(ctx).
			Table("product_variants").
			Where("id = ? AND stock >= ?", id, req).
			UpdateColumn("stock", gorm.Expr("stock - ?", req))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return &OutOfStockError{Items: []OutOfStockItem{{VariantID: id, SKU: byID[id].SKU, Requested: req}}}
		}
	}
	return nil
}

// RestoreStockInTx puts quantities back, e.g. when an unpaid order is
// cancelled. Variants deleted since are skipped.
func RestoreStockInTx(ctx context.Context, tx *gorm.DB, lines []StockLine) error {
	if len(lines) == 0 {
		return nil
	}
	want, ids := aggregate(lines)
	for _, id := range ids {
		if err := tx.WithContext(ctx).
			Table("product_variants").
			Where("id = ?", id).
			UpdateColumn("stock", gorm.Expr("stock + ?", want[id])).Error; err != nil {
			return err
		}
	}
	return nil
}

// DeductStockTx wraps DeductStockInTx in its own retried transaction.
func DeductStockTx(ctx context.Context, db *gorm.DB, lines []StockLine) error {
	return database.WithTxRetry(ctx, db, 3, func(tx *gorm.DB) error {
		return DeductStockInTx(ctx, tx, lines)
	})
}
