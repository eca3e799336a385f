package entity

// Pagination describes where a page sits in a filtered result set.
type Pagination struct {
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	CurrentPage int   `json:"currentPage"`
	Limit       int   `json:"limit"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// PageQuery is a validated page request. Page starts at 1.
type PageQuery struct {
	Page  int
	Limit int
}

// Offset is the number of rows skipped before this page.
func (q PageQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// NewPagination computes the pagination descriptor for page of size limit
// over total matching rows. page and limit must be positive.
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		Total:       total,
		TotalPages:  totalPages,
		CurrentPage: page,
		Limit:       limit,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}
