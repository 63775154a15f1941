// Package pagination holds the page/limit vocabulary shared by every list
// query and list response.
package pagination

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds the pagination parameters attached to a collection query.
type Params struct {
	Page  int
	Limit int
}

// Normalize clamps raw page/limit values into the accepted range.
func Normalize(page, limit int) Params {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Page: page, Limit: limit}
}

// Meta is the pagination block decoded from a list response.
type Meta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Limit int `json:"limit"`
}

// HasNext reports whether there are more pages after the current one.
func (m Meta) HasNext() bool {
	return m.Page < m.Pages
}

// HasPrevious reports whether there are pages before the current one.
func (m Meta) HasPrevious() bool {
	return m.Page > 1
}

// NextPage returns the next page number, capped at the last page.
func (m Meta) NextPage() int {
	if m.HasNext() {
		return m.Page + 1
	}
	return m.Page
}

// PreviousPage returns the previous page number. Returns 1 at the start.
func (m Meta) PreviousPage() int {
	if m.Page <= 1 {
		return 1
	}
	return m.Page - 1
}
