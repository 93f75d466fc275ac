package search

// Pagination describes one page of a result set.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Paginate returns the [start, end) slice bounds for page/limit over total
// items. Pages past the end yield an empty range. limit must be positive.
func Paginate(total, page, limit int) (start, end int, p Pagination) {
	if page < 1 {
		page = 1
	}
	p = Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: total / limit,
	}
	if total%limit != 0 {
		p.TotalPages++
	}
	// Compare before multiplying so a huge page cannot overflow.
	if page-1 > total/limit {
		start = total
	} else {
		start = min((page-1)*limit, total)
	}
	end = start + min(limit, total-start)
	return start, end, p
}
