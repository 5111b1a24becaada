// Package catalog models a tenant's offerable items and renders them for prompts.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// EmptyText is rendered when a tenant has no items.
const EmptyText = "No menu items yet."

var (
	// ErrInvalidItem is returned for items with a blank name or a negative price.
	ErrInvalidItem = errors.New("catalog: invalid item")
	// ErrDuplicateItem is returned when two items share a name within one tenant.
	ErrDuplicateItem = errors.New("catalog: duplicate item name")
)

// Item is one offerable entry. Price is in whole currency units.
type Item struct {
	Name  string `json:"name" yaml:"name"`
	Price int64  `json:"price" yaml:"price"`
}

// Normalize trims names, rejects invalid entries and duplicates, and returns
// the items ordered by name.
func Normalize(items []Item) ([]Item, error) {
	out := make([]Item, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" || item.Price < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidItem, item.Name)
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateItem, name)
		}
		seen[key] = struct{}{}
		out = append(out, Item{Name: name, Price: item.Price})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Render formats items as "- Name: Price" lines in the order given.
// An empty slice renders EmptyText.
func Render(items []Item) string {
	if len(items) == 0 {
		return EmptyText
	}
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s: %d", item.Name, item.Price)
	}
	return b.String()
}
