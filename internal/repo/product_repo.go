// Package repo: repository functions for the Product catalog.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. The in-memory search index is built
// from ListProducts at startup; the engine never reads products through
// GORM on the turn hot path.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/QHanh/ChatbotHM/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across callers.
var ErrNotFound = gorm.ErrRecordNotFound

// ListProducts returns the whole catalog ordered by product code. It is the
// source the startup index build reads from.
func ListProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	var out []domain.Product
	err := db.WithContext(ctx).
		Order("product_code asc").
		Find(&out).Error
	return out, err
}

// CountProducts returns the catalog size.
func CountProducts(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Product{}).
		Count(&total).Error
	return total, err
}

// GetProduct fetches one product by its code, or ErrNotFound.
func GetProduct(ctx context.Context, db *gorm.DB, code string) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).
		Where("product_code = ?", code).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProducts inserts or replaces catalog rows in one batch, keyed by
// product code. Used by the catalog import path.
func UpsertProducts(ctx context.Context, db *gorm.DB, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_code"}},
			UpdateAll: true,
		}).
		CreateInBatches(products, 200).Error
}
