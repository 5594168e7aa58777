package main

const (
	defaultPageSize int64 = 5
	maxPageSize     int64 = 100
)

// Queries holds the literal arguments of the fixed sequence.
type Queries struct {
	Genre          string
	PublishedAfter int
	Author         string
	InStockAfter   int

	UpdateTitle string
	NewPrice    float64
	DeleteTitle string

	PageSize int64
	Pages    int

	ExplainTitle string
}

func DefaultQueries() Queries {
	return Queries{
		Genre:          "Fiction",
		PublishedAfter: 1950,
		Author:         "George Orwell",
		InStockAfter:   2010,
		UpdateTitle:    "1984",
		NewPrice:       12.50,
		DeleteTitle:    "Moby Dick",
		PageSize:       defaultPageSize,
		Pages:          2,
		ExplainTitle:   "1984",
	}
}

// pageWindow turns a 1-based page number into skip/limit.
func pageWindow(page, size int64) (skip, limit int64) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return (page - 1) * size, size
}
