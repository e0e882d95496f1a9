package pagination

import (
	"fmt"
	"net/url"
	"strconv"
)

const (
	DefaultSize = 20
	MaxSize     = 100
)

// Page is offset pagination parsed from page/size query parameters.
type Page struct {
	Page int
	Size int
}

// Parse reads page and size from the query, applying defaults and
// clamping size to MaxSize.
func Parse(query url.Values) (Page, error) {
	page := Page{Page: 1, Size: DefaultSize}

	if raw := query.Get("page"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 1 {
			return Page{}, fmt.Errorf("invalid page: %q", raw)
		}
		page.Page = value
	}

	if raw := query.Get("size"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 1 {
			return Page{}, fmt.Errorf("invalid size: %q", raw)
		}
		if value > MaxSize {
			value = MaxSize
		}
		page.Size = value
	}

	return page, nil
}

// Slice applies the page window to an already-loaded list.
func Slice[T any](items []T, page Page) []T {
	start := (page.Page - 1) * page.Size
	if start >= len(items) {
		return nil
	}
	end := start + page.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
