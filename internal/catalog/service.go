package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/kirana-backend/pkg/config"
	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kirana-backend/pkg/errors"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
	"github.com/angelmondragon/kirana-backend/pkg/money"
	"github.com/angelmondragon/kirana-backend/pkg/pagination"
	"github.com/angelmondragon/kirana-backend/pkg/types"
)

// Service is the read model over products and offers. The locale is an
// argument of every read; nothing is cached between calls.
type Service interface {
	ListProducts(ctx context.Context, locale enums.Locale, filter ProductFilter) (*ProductPage, error)
	SearchProducts(ctx context.Context, locale enums.Locale, query, categorySlug string) ([]ProductDTO, error)
	GetProduct(ctx context.Context, locale enums.Locale, id uuid.UUID) (*ProductDTO, error)
	GetProductBySKU(ctx context.Context, locale enums.Locale, sku string) (*ProductDTO, error)
	ListProductsByIDs(ctx context.Context, locale enums.Locale, ids []uuid.UUID) ([]ProductDTO, error)
	ListBannerProducts(ctx context.Context, locale enums.Locale, bannerID uuid.UUID) ([]ProductDTO, error)
	ListCategories(ctx context.Context, locale enums.Locale) ([]CategoryDTO, error)
	ListBanners(ctx context.Context, locale enums.Locale) ([]BannerDTO, error)
	ListDailyOffers(ctx context.Context, locale enums.Locale) ([]DailyOfferDTO, error)
	GetCartRules(ctx context.Context) (CartRules, error)
	ResolveProduct(ctx context.Context, id *uuid.UUID, sku string) (*models.Product, error)
	ImportProducts(ctx context.Context, rows []ImportRow) (*ImportResult, error)
}

type repository interface {
	ListProducts(ctx context.Context, q ProductQuery) ([]models.Product, error)
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindProductBySKU(ctx context.Context, sku string) (*models.Product, error)
	ListProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListBanners(ctx context.Context) ([]models.Banner, error)
	FindBanner(ctx context.Context, id uuid.UUID) (*models.Banner, error)
	ListDailyOffers(ctx context.Context, now time.Time) ([]models.DailyOffer, error)
	GetCartRules(ctx context.Context) (*models.CartRule, error)
	UpsertProducts(ctx context.Context, products []models.Product) error
}

const searchLimit = 50

type service struct {
	repo     repository
	defaults CartRules
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the catalog service. Checkout defaults back the cart
// rules when the rule row is missing.
func NewService(repo repository, cfg config.CheckoutConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo: repo,
		defaults: CartRules{
			DeliveryCharge:        cfg.DefaultDeliveryCharge,
			FreeDeliveryThreshold: cfg.DefaultThreshold,
		},
		logg: logg,
		now:  time.Now,
	}, nil
}

func (s *service) ListProducts(ctx context.Context, locale enums.Locale, filter ProductFilter) (*ProductPage, error) {
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(filter.Limit)

	rows, err := s.repo.ListProducts(ctx, ProductQuery{
		CategorySlug: filter.CategorySlug,
		Search:       filter.Query,
		Cursor:       cursor,
		Limit:        limit + 1,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	page, next := pagination.Trim(rows, limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{At: p.CreatedAt, ID: p.ID}
	})
	return &ProductPage{Items: toProductDTOs(page, locale), NextCursor: next}, nil
}

func (s *service) SearchProducts(ctx context.Context, locale enums.Locale, query, categorySlug string) ([]ProductDTO, error) {
	if strings.TrimSpace(query) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search query is required")
	}
	rows, err := s.repo.ListProducts(ctx, ProductQuery{
		CategorySlug: categorySlug,
		Search:       query,
		Limit:        searchLimit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search products")
	}
	return toProductDTOs(rows, locale), nil
}

func (s *service) GetProduct(ctx context.Context, locale enums.Locale, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindProductByID(ctx, id)
	if err != nil {
		return nil, mapLookupErr(err, "product not found")
	}
	dto := toProductDTO(*product, locale)
	return &dto, nil
}

func (s *service) GetProductBySKU(ctx context.Context, locale enums.Locale, sku string) (*ProductDTO, error) {
	product, err := s.repo.FindProductBySKU(ctx, strings.TrimSpace(sku))
	if err != nil {
		return nil, mapLookupErr(err, "product not found")
	}
	dto := toProductDTO(*product, locale)
	return &dto, nil
}

func (s *service) ListProductsByIDs(ctx context.Context, locale enums.Locale, ids []uuid.UUID) ([]ProductDTO, error) {
	rows, err := s.repo.ListProductsByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products by id")
	}
	return toProductDTOs(rows, locale), nil
}

func (s *service) ListBannerProducts(ctx context.Context, locale enums.Locale, bannerID uuid.UUID) ([]ProductDTO, error) {
	banner, err := s.repo.FindBanner(ctx, bannerID)
	if err != nil {
		return nil, mapLookupErr(err, "banner not found")
	}
	ids := make([]uuid.UUID, 0, len(banner.ProductIDs))
	for _, raw := range banner.ProductIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"banner_id": bannerID.String(), "product_id": raw}), "banner references malformed product id")
			continue
		}
		ids = append(ids, id)
	}
	return s.ListProductsByIDs(ctx, locale, ids)
}

func (s *service) ListCategories(ctx context.Context, locale enums.Locale) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for _, c := range rows {
		out = append(out, CategoryDTO{
			ID:       c.ID,
			Slug:     c.Slug,
			Name:     c.Name.Resolve(locale),
			ImageURL: c.ImageURL,
			Position: c.Position,
		})
	}
	return out, nil
}

func (s *service) ListBanners(ctx context.Context, locale enums.Locale) ([]BannerDTO, error) {
	rows, err := s.repo.ListBanners(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list banners")
	}
	out := make([]BannerDTO, 0, len(rows))
	for _, b := range rows {
		ids := b.ProductIDs
		if ids == nil {
			ids = []string{}
		}
		out = append(out, BannerDTO{
			ID:         b.ID,
			Title:      b.Title.Resolve(locale),
			ImageURL:   b.ImageURL,
			ProductIDs: ids,
			Position:   b.Position,
		})
	}
	return out, nil
}

func (s *service) ListDailyOffers(ctx context.Context, locale enums.Locale) ([]DailyOfferDTO, error) {
	offers, err := s.repo.ListDailyOffers(ctx, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list daily offers")
	}
	if len(offers) == 0 {
		return []DailyOfferDTO{}, nil
	}

	ids := make([]uuid.UUID, 0, len(offers))
	for _, o := range offers {
		ids = append(ids, o.ProductID)
	}
	products, err := s.repo.ListProductsByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer products")
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	out := make([]DailyOfferDTO, 0, len(offers))
	for _, o := range offers {
		p, ok := byID[o.ProductID]
		if !ok {
			// product deactivated since the offer was created
			continue
		}
		dto := toProductDTO(p, locale)
		out = append(out, DailyOfferDTO{
			ID:              o.ID,
			Title:           o.Title.Resolve(locale),
			DiscountPercent: o.DiscountPercent,
			EndsAt:          o.EndsAt,
			Product:         &dto,
		})
	}
	return out, nil
}

func (s *service) GetCartRules(ctx context.Context) (CartRules, error) {
	rule, err := s.repo.GetCartRules(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.defaults, nil
		}
		return CartRules{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart rules")
	}
	return CartRules{
		DeliveryCharge:        rule.DeliveryCharge,
		FreeDeliveryThreshold: rule.FreeDeliveryThreshold,
	}, nil
}

// ResolveProduct finds the product referenced by id or, failing that, sku.
func (s *service) ResolveProduct(ctx context.Context, id *uuid.UUID, sku string) (*models.Product, error) {
	var (
		product *models.Product
		err     error
	)
	switch {
	case id != nil && *id != uuid.Nil:
		product, err = s.repo.FindProductByID(ctx, *id)
	case strings.TrimSpace(sku) != "":
		product, err = s.repo.FindProductBySKU(ctx, strings.TrimSpace(sku))
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id or sku is required")
	}
	if err != nil {
		return nil, mapLookupErr(err, "product not found")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func (s *service) ImportProducts(ctx context.Context, rows []ImportRow) (*ImportResult, error) {
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no rows to import")
	}

	result := &ImportResult{}
	seen := make(map[string]int, len(rows))
	products := make([]models.Product, 0, len(rows))
	for i, row := range rows {
		sku := strings.TrimSpace(row.SKU)
		if prev, ok := seen[sku]; ok {
			result.Rejected = append(result.Rejected, RowError{Row: i, SKU: sku, Message: fmt.Sprintf("duplicate sku, first seen at row %d", prev)})
			continue
		}
		product, err := productFromRow(row)
		if err != nil {
			result.Rejected = append(result.Rejected, RowError{Row: i, SKU: sku, Message: err.Error()})
			continue
		}
		seen[sku] = i
		products = append(products, product)
	}

	if err := s.repo.UpsertProducts(ctx, products); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "import products")
	}
	result.Imported = len(products)

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"imported": result.Imported,
		"rejected": len(result.Rejected),
	}), "catalog import finished")
	return result, nil
}

func productFromRow(row ImportRow) (models.Product, error) {
	sku := strings.TrimSpace(row.SKU)
	if sku == "" {
		return models.Product{}, fmt.Errorf("sku is required")
	}
	name := types.NewLocalizedText(row.NameEN, row.NameHI)
	if len(name) == 0 {
		return models.Product{}, fmt.Errorf("name is required")
	}
	price, err := money.ParseRupees(row.Price)
	if err != nil {
		return models.Product{}, fmt.Errorf("price: %w", err)
	}
	var mrp *int64
	if strings.TrimSpace(row.MRP) != "" {
		v, err := money.ParseRupees(row.MRP)
		if err != nil {
			return models.Product{}, fmt.Errorf("mrp: %w", err)
		}
		mrp = &v
	}
	slug := strings.ToLower(strings.TrimSpace(row.CategorySlug))
	if slug == "" {
		return models.Product{}, fmt.Errorf("category_slug is required")
	}

	return models.Product{
		SKU:          sku,
		Name:         name,
		Price:        price,
		MRP:          mrp,
		CategorySlug: slug,
		Category:     types.NewLocalizedText(row.CategoryEN, row.CategoryHI),
		Subcategory:  types.NewLocalizedText(row.SubcategoryEN, row.SubcategoryHI),
		ImageURL:     strings.TrimSpace(row.ImageURL),
		IsPromoted:   row.IsPromoted,
		IsActive:     !row.Inactive,
	}, nil
}

func mapLookupErr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
