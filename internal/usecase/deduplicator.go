package usecase

import "github.com/partscout/backend/internal/domain"

// productKey identifies the same listing repeated within one source
type productKey struct {
	manufacturer string
	name         string
	price        int64
}

// Dedupe drops repeated listings from a single source's products. The first
// occurrence of each (manufacturer, name, price) wins and order is kept. A
// later product pointing at an already kept purchase URL is dropped too.
// Products from different sources must not be passed together.
func Dedupe(products []domain.Product) []domain.Product {
	out := make([]domain.Product, 0, len(products))
	seenKeys := make(map[productKey]bool, len(products))
	seenURLs := make(map[string]bool, len(products))

	for _, p := range products {
		key := productKey{manufacturer: p.ManufacturerCanonical, name: p.Name, price: p.PriceAmount}
		if seenKeys[key] || seenURLs[p.PurchaseURL] {
			continue
		}
		seenKeys[key] = true
		seenURLs[p.PurchaseURL] = true
		out = append(out, p)
	}
	return out
}
