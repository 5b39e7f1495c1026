package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/pagination"
)

// ProductQuery filters the product listing.
type ProductQuery struct {
	CategorySlug string
	Search       string
	Cursor       *pagination.Cursor
	Limit        int
}

// Repository reads the catalog tables.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// ListProducts returns active products newest first. Limit is passed through
// as-is so callers can request one extra row for paging.
func (r *Repository) ListProducts(ctx context.Context, q ProductQuery) ([]models.Product, error) {
	tx := r.db.WithContext(ctx).Model(&models.Product{}).Where("is_active = ?", true)

	if slug := strings.TrimSpace(q.CategorySlug); slug != "" {
		tx = tx.Where("category_slug = ?", slug)
	}
	if term := strings.ToLower(strings.TrimSpace(q.Search)); term != "" {
		like := "%" + escapeLike(term) + "%"
		en, hi := r.localizedExpr("name", "en"), r.localizedExpr("name", "hi")
		tx = tx.Where("(LOWER("+en+") LIKE ? ESCAPE '\\' OR LOWER("+hi+") LIKE ? ESCAPE '\\' OR LOWER(sku) LIKE ? ESCAPE '\\')", like, like, like)
	}
	if q.Cursor != nil {
		tx = tx.Where("(created_at < ?) OR (created_at = ? AND id < ?)", q.Cursor.At, q.Cursor.At, q.Cursor.ID)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []models.Product
	if err := tx.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindProductByID includes inactive products; cart snapshots may reference them.
func (r *Repository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) FindProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "sku = ?", sku).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProductsByIDs returns active products in the order of ids. Unknown ids
// are skipped.
func (r *Repository) ListProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]models.Product, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	ordered := make([]models.Product, 0, len(rows))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
			delete(byID, id)
		}
	}
	return ordered, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	if err := r.db.WithContext(ctx).Order("position ASC").Order("slug ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) ListBanners(ctx context.Context) ([]models.Banner, error) {
	var rows []models.Banner
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("position ASC").
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) FindBanner(ctx context.Context, id uuid.UUID) (*models.Banner, error) {
	var banner models.Banner
	if err := r.db.WithContext(ctx).First(&banner, "id = ? AND is_active = ?", id, true).Error; err != nil {
		return nil, err
	}
	return &banner, nil
}

// ListDailyOffers returns offers whose window contains now.
func (r *Repository) ListDailyOffers(ctx context.Context, now time.Time) ([]models.DailyOffer, error) {
	var rows []models.DailyOffer
	if err := r.db.WithContext(ctx).
		Where("(starts_at IS NULL OR starts_at <= ?) AND (ends_at IS NULL OR ends_at > ?)", now, now).
		Order("position ASC").
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetCartRules loads the singleton rule row.
func (r *Repository) GetCartRules(ctx context.Context) (*models.CartRule, error) {
	var rule models.CartRule
	if err := r.db.WithContext(ctx).First(&rule, "id = ?", 1).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// UpsertProducts inserts or updates products keyed by SKU.
func (r *Repository) UpsertProducts(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "sku"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "price", "mrp", "category_slug", "category", "subcategory",
				"image_url", "is_promoted", "is_active", "updated_at",
			}),
		}).
		Create(&products).Error
}

// localizedExpr extracts one locale from a json column in the active dialect.
func (r *Repository) localizedExpr(column, locale string) string {
	if r.db.Dialector != nil && r.db.Dialector.Name() == "sqlite" {
		return "json_extract(" + column + ", '$." + locale + "')"
	}
	return column + "->>'" + locale + "'"
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
