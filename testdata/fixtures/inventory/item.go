package inventory

import "errors"

// ErrNotFound is returned for an unknown SKU.
var ErrNotFound = errors.New("inventory: not found")

// Item is one stocked product.
type Item struct {
	SKU   string
	Name  string
	Count int
}

// Loader fetches items from a backing source.
type Loader interface {
	Load(sku string) (Item, error)
}

func normalize(sku string) string {
	return sku
}
