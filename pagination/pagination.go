// Package pagination parses and clamps page/limit request parameters.
package pagination

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Params is a normalized page request. Page is 1-based.
type Params struct {
	Page  int
	Limit int
}

// Offset returns the number of records to skip. It saturates at math.MaxInt
// instead of overflowing for very large pages.
func (p Params) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// Config configures normalization.
type Config struct {
	DefaultPage  int
	DefaultLimit int
	// MaxLimit caps the limit. Zero disables the cap.
	MaxLimit int
}

// DefaultConfig returns page 1, limit 50 and no ceiling.
func DefaultConfig() Config {
	return Config{
		DefaultPage:  1,
		DefaultLimit: 50,
	}
}

// Parse normalizes raw values with DefaultConfig.
func Parse(rawPage, rawLimit string) Params {
	return DefaultConfig().Parse(rawPage, rawLimit)
}

// FromQuery reads "page" and "limit" from query values with DefaultConfig.
func FromQuery(values url.Values) Params {
	return DefaultConfig().FromQuery(values)
}

// FromQuery reads "page" and "limit" from query values.
func (c Config) FromQuery(values url.Values) Params {
	return c.Parse(values.Get("page"), values.Get("limit"))
}

// Parse normalizes raw values: missing or non-numeric values take the
// defaults, page is clamped to at least 1 and a limit below 1 takes the
// default limit.
func (c Config) Parse(rawPage, rawLimit string) Params {
	c = c.withDefaults()

	page, ok := parseInt(rawPage)
	if !ok {
		page = c.DefaultPage
	}
	if page < 1 {
		page = 1
	}

	limit, ok := parseInt(rawLimit)
	if !ok || limit < 1 {
		limit = c.DefaultLimit
	}
	if c.MaxLimit > 0 && limit > c.MaxLimit {
		limit = c.MaxLimit
	}

	return Params{Page: page, Limit: limit}
}

func (c Config) withDefaults() Config {
	if c.DefaultPage < 1 {
		c.DefaultPage = 1
	}
	if c.DefaultLimit < 1 {
		c.DefaultLimit = 50
	}
	return c
}

func parseInt(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
