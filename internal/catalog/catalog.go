// Package catalog serves the read-only menu the operator picks products from.
package catalog

import (
	"context"
	"strings"

	"github.com/Shibarkan/cafe/internal/domain"
)

type Filter struct {
	// Category is empty for every category.
	Category domain.Category
	// Search matches a case-insensitive substring of the product name.
	Search string
}

type Catalog interface {
	Products(ctx context.Context, filter Filter) ([]domain.Product, error)
	Product(ctx context.Context, id int64) (domain.Product, error)
}

type StaticCatalog struct {
	products []domain.Product
}

func NewStaticCatalog(products []domain.Product) *StaticCatalog {
	out := make([]domain.Product, len(products))
	copy(out, products)
	return &StaticCatalog{products: out}
}

// Default is the house menu.
func Default() *StaticCatalog {
	return NewStaticCatalog(menu)
}

func (c *StaticCatalog) Products(_ context.Context, filter Filter) ([]domain.Product, error) {
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	out := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *StaticCatalog) Product(_ context.Context, id int64) (domain.Product, error) {
	for _, p := range c.products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, domain.ErrProductNotFound
}

var menu = []domain.Product{
	{ID: 1, Name: "Nasi Goreng", Price: 15000, Category: domain.CategoryFood, ImageURL: "https://i.pinimg.com/736x/43/a2/d2/43a2d2285738357d3bb922ac4ef19634.jpg"},
	{ID: 2, Name: "Es Teh", Price: 5000, Category: domain.CategoryDrink, ImageURL: "https://i.pinimg.com/736x/1b/9a/23/1b9a2382bc0fb55a1f8cea2c28e1be12.jpg"},
	{ID: 3, Name: "Pisang Goreng", Price: 8000, Category: domain.CategorySnack, ImageURL: "https://i.pinimg.com/736x/52/f1/7f/52f17f28556fda817459693f74911306.jpg"},
	{ID: 4, Name: "Mie Rebus", Price: 12000, Category: domain.CategoryFood, ImageURL: "https://i.pinimg.com/1200x/f2/7c/35/f27c357f3520ae891d38a7eb00865db0.jpg"},
	{ID: 5, Name: "Kopi Hitam", Price: 7000, Category: domain.CategoryDrink, ImageURL: "https://i.pinimg.com/736x/9b/55/5c/9b555c2588cc0581072fd81dd099edf2.jpg"},
	{ID: 6, Name: "Roti Bakar", Price: 10000, Category: domain.CategorySnack, ImageURL: "https://i.pinimg.com/736x/27/56/af/2756afd3c970c884fd627f5d0939268f.jpg"},
	{ID: 7, Name: "Soto Ayam", Price: 18000, Category: domain.CategoryFood, ImageURL: "https://i.pinimg.com/736x/9b/e7/70/9be7701ba3a1729d1c3f3c44f96b3cfc.jpg"},
	{ID: 8, Name: "Jus Jeruk", Price: 9000, Category: domain.CategoryDrink, ImageURL: "https://i.pinimg.com/736x/67/da/11/67da119b3e64e950c0e56caec3182142.jpg"},
	{ID: 9, Name: "Singkong Keju", Price: 8500, Category: domain.CategorySnack, ImageURL: "https://i.pinimg.com/1200x/3e/83/d3/3e83d3e6a150eec3c6d1f79b3e5c496d.jpg"},
	{ID: 10, Name: "Bakso", Price: 17000, Category: domain.CategoryFood, ImageURL: "https://i.pinimg.com/736x/f7/6c/93/f76c93a3a23c2666e107ada4c4f33aec.jpg"},
}
