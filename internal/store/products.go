package store

import (
	"context"
	"strings"

	"socialflow/internal/models"

	"gorm.io/gorm"
)

const defaultProductLimit = 10

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Search matches products by name, newest first. An empty query returns the
// most recent products instead.
func (r *ProductRepository) Search(ctx context.Context, tenantID, query string, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = defaultProductLimit
	}
	q := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if query = strings.TrimSpace(query); query != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(query)+"%")
	}
	var products []models.Product
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&products).Error
	return products, err
}

// Create inserts the product. in_stock has a database default of true, so an
// out-of-stock product is written in a second statement.
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	inStock := product.InStock
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(product).Error; err != nil {
			return err
		}
		if inStock {
			return nil
		}
		product.InStock = false
		return tx.Model(product).UpdateColumn("in_stock", false).Error
	})
}
