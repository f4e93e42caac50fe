package model

// Page is one page of a paginated listing.
type Page[T any] struct {
	Docs       []T `json:"docs"`
	TotalDocs  int `json:"total_docs"`
	Limit      int `json:"limit"`
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
}

// NewPage assembles a Page and derives TotalPages.
func NewPage[T any](docs []T, total, page, limit int) Page[T] {
	if docs == nil {
		docs = []T{}
	}
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Page[T]{Docs: docs, TotalDocs: total, Limit: limit, Page: page, TotalPages: pages}
}
