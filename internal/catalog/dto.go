package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/pkg/db/models"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
)

// ProductDTO is a product resolved to one locale.
type ProductDTO struct {
	ID           uuid.UUID `json:"id"`
	SKU          string    `json:"sku"`
	Name         string    `json:"name"`
	Price        int64     `json:"price"`
	MRP          *int64    `json:"mrp,omitempty"`
	CategorySlug string    `json:"category_slug"`
	Category     string    `json:"category"`
	Subcategory  string    `json:"subcategory"`
	ImageURL     string    `json:"image_url"`
	IsPromoted   bool      `json:"is_promoted"`
}

// CategoryDTO is a category resolved to one locale.
type CategoryDTO struct {
	ID       uuid.UUID `json:"id"`
	Slug     string    `json:"slug"`
	Name     string    `json:"name"`
	ImageURL string    `json:"image_url"`
	Position int       `json:"position"`
}

// BannerDTO is a banner resolved to one locale.
type BannerDTO struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	ImageURL   string    `json:"image_url"`
	ProductIDs []string  `json:"product_ids"`
	Position   int       `json:"position"`
}

// DailyOfferDTO joins an offer with its product.
type DailyOfferDTO struct {
	ID              uuid.UUID   `json:"id"`
	Title           string      `json:"title"`
	DiscountPercent int         `json:"discount_percent"`
	EndsAt          *time.Time  `json:"ends_at,omitempty"`
	Product         *ProductDTO `json:"product,omitempty"`
}

// CartRules holds the delivery fee policy in paise.
type CartRules struct {
	DeliveryCharge        int64 `json:"delivery_charge"`
	FreeDeliveryThreshold int64 `json:"free_delivery_threshold"`
}

// DeliveryChargeFor returns the charge owed for a subtotal.
func (r CartRules) DeliveryChargeFor(subtotal int64) int64 {
	if subtotal < r.FreeDeliveryThreshold {
		return r.DeliveryCharge
	}
	return 0
}

// ProductFilter is the public listing input.
type ProductFilter struct {
	CategorySlug string
	Query        string
	Cursor       string
	Limit        int
}

// ProductPage is one page of products.
type ProductPage struct {
	Items      []ProductDTO `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// ImportRow is one product in a bulk import. Prices are decimal rupee strings.
type ImportRow struct {
	SKU           string `json:"sku" validate:"required,max=64"`
	NameEN        string `json:"name_en" validate:"required"`
	NameHI        string `json:"name_hi"`
	Price         string `json:"price" validate:"required"`
	MRP           string `json:"mrp"`
	CategorySlug  string `json:"category_slug" validate:"required"`
	CategoryEN    string `json:"category_en" validate:"required"`
	CategoryHI    string `json:"category_hi"`
	SubcategoryEN string `json:"subcategory_en"`
	SubcategoryHI string `json:"subcategory_hi"`
	ImageURL      string `json:"image_url" validate:"omitempty,url"`
	IsPromoted    bool   `json:"is_promoted"`
	Inactive      bool   `json:"inactive"`
}

// RowError reports why an import row was rejected.
type RowError struct {
	Row     int    `json:"row"`
	SKU     string `json:"sku"`
	Message string `json:"message"`
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Imported int        `json:"imported"`
	Rejected []RowError `json:"rejected,omitempty"`
}

func toProductDTO(p models.Product, locale enums.Locale) ProductDTO {
	return ProductDTO{
		ID:           p.ID,
		SKU:          p.SKU,
		Name:         p.Name.Resolve(locale),
		Price:        p.Price,
		MRP:          p.MRP,
		CategorySlug: p.CategorySlug,
		Category:     p.Category.Resolve(locale),
		Subcategory:  p.Subcategory.Resolve(locale),
		ImageURL:     p.ImageURL,
		IsPromoted:   p.IsPromoted,
	}
}

func toProductDTOs(rows []models.Product, locale enums.Locale) []ProductDTO {
	out := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toProductDTO(row, locale))
	}
	return out
}
