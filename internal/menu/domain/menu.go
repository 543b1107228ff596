package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownVariant  = errors.New("unknown menu variant")
	ErrInvalidOverride = errors.New("invalid menu override")
)

// Item is one catalog entry. Key is the stable identifier orders carry;
// Label and Price may be overridden per deployment without touching the
// compiled catalog.
type Item struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Price       int64    `json:"price"`
	Category    string   `json:"category"`
	ImageRef    string   `json:"imageRef,omitempty"`
	Allergens   []string `json:"allergens,omitempty"`
}

// Override adjusts a base item. Nil fields leave the base value alone.
type Override struct {
	Label *string `json:"label,omitempty"`
	Price *int64  `json:"price,omitempty"`
}

type Overrides map[string]Override

// Validate rejects overrides that would corrupt the catalog: negative
// prices, blank labels, keys not present in the base catalog.
func (ov Overrides) Validate(base []Item) error {
	keys := make(map[string]bool, len(base))
	for _, it := range base {
		keys[it.Key] = true
	}
	for key, o := range ov {
		if !keys[key] {
			return fmt.Errorf("%w: unknown item %q", ErrInvalidOverride, key)
		}
		if o.Price != nil && *o.Price < 0 {
			return fmt.Errorf("%w: negative price for %q", ErrInvalidOverride, key)
		}
		if o.Label != nil && *o.Label == "" {
			return fmt.Errorf("%w: empty label for %q", ErrInvalidOverride, key)
		}
	}
	return nil
}

// Apply layers overrides onto a base catalog, returning a fresh slice.
func Apply(base []Item, ov Overrides) []Item {
	out := make([]Item, len(base))
	copy(out, base)
	for i := range out {
		o, ok := ov[out[i].Key]
		if !ok {
			continue
		}
		if o.Label != nil {
			out[i].Label = *o.Label
		}
		if o.Price != nil {
			out[i].Price = *o.Price
		}
	}
	return out
}

// Variant selects which compiled catalog a deployment serves. The two
// festival days run different line-ups.
type Variant string

const (
	VariantA Variant = "a"
	VariantB Variant = "b"
)

// Catalog returns the base catalog for a variant.
func Catalog(v Variant) ([]Item, error) {
	switch v {
	case VariantA:
		return catalogA(), nil
	case VariantB:
		return catalogB(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, v)
}

func catalogA() []Item {
	return []Item{
		{
			Key:         "plain",
			Label:       "Fried Bread (Sugar)",
			Description: "Deep-fried roll tossed in sugar",
			Price:       250,
			Category:    "friedbread",
			ImageRef:    "img/plain.jpg",
			Allergens:   []string{"wheat"},
		},
		{
			Key:         "cocoa",
			Label:       "Fried Bread (Cocoa)",
			Description: "Deep-fried roll dusted with cocoa",
			Price:       250,
			Category:    "friedbread",
			ImageRef:    "img/cocoa.jpg",
			Allergens:   []string{"wheat"},
		},
		{
			Key:         "kinako",
			Label:       "Fried Bread (Kinako)",
			Description: "Deep-fried roll coated in roasted soy flour",
			Price:       250,
			Category:    "friedbread",
			ImageRef:    "img/kinako.jpg",
			Allergens:   []string{"wheat", "soy"},
		},
		{
			Key:         "stew",
			Label:       "Pork Miso Stew",
			Description: "Tonjiru with root vegetables",
			Price:       300,
			Category:    "stew",
			ImageRef:    "img/stew.jpg",
			Allergens:   []string{"soy"},
		},
	}
}

func catalogB() []Item {
	return []Item{
		{
			Key:         "plain",
			Label:       "Fried Bread (Sugar)",
			Description: "Deep-fried roll tossed in sugar",
			Price:       250,
			Category:    "friedbread",
			ImageRef:    "img/plain.jpg",
			Allergens:   []string{"wheat"},
		},
		{
			Key:         "cocoa",
			Label:       "Fried Bread (Cocoa)",
			Description: "Deep-fried roll dusted with cocoa",
			Price:       250,
			Category:    "friedbread",
			ImageRef:    "img/cocoa.jpg",
			Allergens:   []string{"wheat"},
		},
		{
			Key:         "cinnamon",
			Label:       "Fried Bread (Cinnamon)",
			Description: "Deep-fried roll rolled in cinnamon sugar",
			Price:       250,
			Category:    "friedbread",
			ImageRef:    "img/cinnamon.jpg",
			Allergens:   []string{"wheat"},
		},
		{
			Key:         "stew",
			Label:       "Pork Miso Stew",
			Description: "Tonjiru with root vegetables",
			Price:       300,
			Category:    "stew",
			ImageRef:    "img/stew.jpg",
			Allergens:   []string{"soy"},
		},
	}
}
