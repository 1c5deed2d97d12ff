package repository

import (
	"strings"
	"time"

	"github.com/sjperalta/fintera-matching-api/internal/models"
)

// MaxPerPage caps page sizes requested by clients
const MaxPerPage = 100

// ListQuery represents common query parameters
type ListQuery struct {
	Page    int
	PerPage int
	Search  string
	SortBy  string
	SortDir string
	Filters map[string]string
}

// NewListQuery creates a ListQuery with defaults
func NewListQuery() *ListQuery {
	return &ListQuery{
		Page:    1,
		PerPage: 20,
		Filters: make(map[string]string),
	}
}

// Normalize clamps paging values into their valid ranges
func (q *ListQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = 20
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	if q.Filters == nil {
		q.Filters = make(map[string]string)
	}
}

// Offset returns the row offset of the requested page
func (q *ListQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.PerPage
}

// TotalPages returns the number of pages for total rows
func (q *ListQuery) TotalPages(total int64) int64 {
	if q.PerPage <= 0 {
		return 0
	}
	return (total + int64(q.PerPage) - 1) / int64(q.PerPage)
}

// IncomeFilter narrows income record queries. Now is the instant used to split
// pending from eligible records.
type IncomeFilter struct {
	ListQuery
	UserIDs      []uint
	IncomeType   models.IncomeType
	Status       models.IncomeStatus
	LegType      models.Leg
	StartDate    *time.Time
	EndDate      *time.Time
	EligibleOnly bool
	Now          time.Time
}

// NewIncomeFilter creates an IncomeFilter with default paging
func NewIncomeFilter(now time.Time) *IncomeFilter {
	return &IncomeFilter{
		ListQuery: *NewListQuery(),
		Now:       now,
	}
}

var incomeSortColumns = map[string]string{
	"saleDate":                "sale_date",
	"sale_date":               "sale_date",
	"saleAmount":              "sale_amount",
	"incomeAmount":            "income_amount",
	"income_amount":           "income_amount",
	"status":                  "status",
	"eligibleForApprovalDate": "eligible_for_approval_date",
	"createdAt":               "created_at",
	"created_at":              "created_at",
}

// OrderClause returns a whitelisted ORDER BY clause, newest first by default
func (f *IncomeFilter) OrderClause() string {
	column, ok := incomeSortColumns[f.SortBy]
	if !ok {
		column = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(f.SortDir, "asc") {
		dir = "ASC"
	}
	return column + " " + dir + ", id " + dir
}
