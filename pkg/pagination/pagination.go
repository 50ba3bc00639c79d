// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package pagination parses page/limit query parameters for admin listings
// and builds the matching response metadata.
package pagination

import (
	"net/http"

	"github.com/taibuivan/ecgscan/pkg/convert"
)

const (
	// DefaultPage is the first page (1-indexed).
	DefaultPage = 1
	// DefaultLimit is used when limit is missing or out of range.
	DefaultLimit = 20
	// MaxLimit caps a single page of identities.
	MaxLimit = 100
)

// Params is a validated page window.
type Params struct {
	Page  int
	Limit int
}

// Offset is the number of rows skipped before this page.
func (p Params) Offset() int {
	return (max(p.Page, 1) - 1) * p.Limit
}

// Meta is the "meta" block of a paginated envelope.
type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewMeta derives TotalPages from total and limit.
func NewMeta(page, limit, total int) Meta {
	meta := Meta{Page: page, Limit: limit, Total: total}
	if limit > 0 {
		meta.TotalPages = (total + limit - 1) / limit
	}
	return meta
}

// FromRequest reads "page" and "limit" from the query string.
//
// Malformed or non-positive values fall back to the defaults, and a limit
// above [MaxLimit] is replaced by [DefaultLimit] rather than clamped.
func FromRequest(r *http.Request) Params {
	query := r.URL.Query()

	page := convert.ToIntD(query.Get("page"), DefaultPage)
	if page < 1 {
		page = DefaultPage
	}

	limit := convert.ToIntD(query.Get("limit"), DefaultLimit)
	if limit < 1 || limit > MaxLimit {
		limit = DefaultLimit
	}

	return Params{Page: page, Limit: limit}
}
