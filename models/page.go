package models

import "math"

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// PageRequest is bound from the page and limit query parameters.
type PageRequest struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// Normalize applies the defaults and caps the limit.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	// keeps Skip from overflowing
	if last := math.MaxInt / p.Limit; p.Page > last {
		p.Page = last
	}
	return p
}

func (p PageRequest) Skip() int {
	return (p.Page - 1) * p.Limit
}

type Page[T any] struct {
	Items       []T   `json:"items"`
	TotalCount  int64 `json:"totalCount"`
	TotalPages  int64 `json:"totalPages"`
	CurrentPage int   `json:"currentPage"`
}

// NewPage wraps one page of items. totalPages is ceil(total/limit), which is
// zero for an empty set.
func NewPage[T any](items []T, total int64, req PageRequest) Page[T] {
	if items == nil {
		items = []T{}
	}
	limit := int64(req.Limit)
	var pages int64
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Page[T]{Items: items, TotalCount: total, TotalPages: pages, CurrentPage: req.Page}
}

// Paginate slices an already ordered, already filtered set.
func Paginate[T any](all []T, req PageRequest) Page[T] {
	req = req.Normalize()
	start := req.Skip()
	if start < 0 || start > len(all) {
		start = len(all)
	}
	end := start + req.Limit
	if end > len(all) {
		end = len(all)
	}
	return NewPage(all[start:end], int64(len(all)), req)
}
