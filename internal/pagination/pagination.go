// Package pagination holds the page/limit arithmetic shared by every listing endpoint.
package pagination

import (
	"errors"
	"math"
	"strconv"
)

// Per-endpoint default page sizes.
const (
	DefaultPage      = 1
	DefaultFeedLimit = 10
	DefaultUserPosts = 12
	DefaultUserLimit = 20
	MaxLimit         = 100
)

// Params is a parsed, normalized page request.
type Params struct {
	Page  int
	Limit int
}

// Meta describes where a page sits within the full result set.
type Meta struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	Total       int64 `json:"-"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
}

// New normalizes page and limit. Values below 1 fall back to the defaults and
// limit is capped at MaxLimit.
func New(page, limit, defaultLimit int) Params {
	if defaultLimit < 1 {
		defaultLimit = DefaultFeedLimit
	}
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Page: page, Limit: limit}
}

// ParseParams parses raw query values. Absent or non-numeric input uses the
// defaults; numbers too large for an int saturate rather than wrap.
func ParseParams(pageRaw, limitRaw string, defaultLimit int) Params {
	return New(atoiOr(pageRaw, 0), atoiOr(limitRaw, 0), defaultLimit)
}

func atoiOr(raw string, fallback int) int {
	v, err := strconv.Atoi(raw)
	if errors.Is(err, strconv.ErrRange) {
		// Atoi already returns the saturated bound here.
		return v
	}
	if err != nil {
		return fallback
	}
	return v
}

// Skip is the number of documents the store should skip. It saturates at
// math.MaxInt64, which any store treats as past the end.
func (p Params) Skip() int64 {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	pages := int64(p.Page - 1)
	if pages > math.MaxInt64/int64(p.Limit) {
		return math.MaxInt64
	}
	return pages * int64(p.Limit)
}

// NewMeta builds page metadata for total matching documents.
func NewMeta(total int64, p Params) Meta {
	totalPages := 0
	if total > 0 && p.Limit > 0 {
		totalPages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return Meta{
		CurrentPage: p.Page,
		TotalPages:  totalPages,
		Total:       total,
		HasNext:     p.Page < totalPages,
		HasPrev:     p.Page > 1,
	}
}

// Window returns the [start, end) bounds of this page over an in-memory list of n items.
func (p Params) Window(n int) (start, end int) {
	skip := p.Skip()
	if skip >= int64(n) {
		return n, n
	}
	start = int(skip)
	end = n
	if p.Limit < n-start {
		end = start + p.Limit
	}
	return start, end
}

// JSON renders the metadata with the endpoint-specific total key,
// e.g. "totalPosts" or "totalFollowers".
func (m Meta) JSON(totalKey string) map[string]any {
	return map[string]any{
		"currentPage": m.CurrentPage,
		"totalPages":  m.TotalPages,
		totalKey:      m.Total,
		"hasNext":     m.HasNext,
		"hasPrev":     m.HasPrev,
	}
}
