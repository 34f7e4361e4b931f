package repository

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/Nkambwe/Mfi-Mananger-sub000/capability"
)

// Paging defaults. Requests outside the valid range are clamped rather than
// rejected so callers can pass user input straight through.
const (
	DefaultPage     = 1
	DefaultPageSize = 25
	MaxPageSize     = 500
)

// Page is one page of results plus the count metadata used to render
// pagination controls. Approximate is true when TotalCount came from engine
// statistics instead of COUNT(*).
type Page[T any] struct {
	Items       []T   `json:"items"`
	TotalCount  int64 `json:"total_count"`
	Page        int   `json:"page"`
	PageSize    int   `json:"page_size"`
	TotalPages  int   `json:"total_pages"`
	Approximate bool  `json:"approximate"`
}

// GetPaged fetches one page of matching records. The total count is exact
// unless the pagination policy decides the table qualifies for an
// approximate count, in which case the engine's statistics views are
// consulted instead; an unusable statistics answer falls back to the exact
// count. Rows are ordered by the given columns, or by id when none are
// given.
func (r *Repository[T]) GetPaged(ctx context.Context, page, pageSize int, pred *Predicate, orderBy ...string) (*Page[T], error) {
	if page < DefaultPage {
		page = DefaultPage
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	total, approximate := r.totalCount(ctx, pred)

	var items []T
	q := r.selectQuery(&items, pred, queryOpts{})
	if len(orderBy) == 0 {
		q = q.OrderExpr("? ASC", bun.Ident("id"))
	} else {
		for _, col := range orderBy {
			q = q.OrderExpr("? ASC", bun.Ident(col))
		}
	}
	q = q.Limit(pageSize).Offset((page - 1) * pageSize)

	if err := q.Scan(ctx); err != nil {
		r.logger.Error().Err(err).Str("op", "get_paged").Int("page", page).Msg("read failed")
		return nil, err
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize != 0 {
		totalPages++
	}

	return &Page[T]{
		Items:       items,
		TotalCount:  total,
		Page:        page,
		PageSize:    pageSize,
		TotalPages:  totalPages,
		Approximate: approximate,
	}, nil
}

// PageAll is GetPaged without a predicate.
func (r *Repository[T]) PageAll(ctx context.Context, page, pageSize int, orderBy ...string) (*Page[T], error) {
	return r.GetPaged(ctx, page, pageSize, nil, orderBy...)
}

// totalCount resolves the count for a page, consulting the pagination
// policy first. The second return reports whether the answer is approximate.
func (r *Repository[T]) totalCount(ctx context.Context, pred *Predicate) (int64, bool) {
	if r.policy != nil && r.policy.ShouldUseApproximateCount(ctx, r.table, !pred.IsEmpty()) {
		if n, ok := r.approximateCount(ctx); ok {
			return n, true
		}
	}
	return int64(r.CountWhere(ctx, pred)), false
}

// approximateCount reads the row estimate from the engine's statistics
// views. Statistics can trail reality or be missing for new tables, so a
// negative or failed answer is rejected and the caller falls back to the
// exact count.
func (r *Repository[T]) approximateCount(ctx context.Context) (int64, bool) {
	if r.detector == nil {
		return 0, false
	}
	stmt, ok := capability.ApproximateCountSQL(r.detector.Provider())
	if !ok {
		return 0, false
	}

	var estimate int64
	if err := r.db.NewRaw(stmt, r.table).Scan(ctx, &estimate); err != nil {
		r.logger.Warn().Err(err).Str("op", "approximate_count").Msg("statistics query failed, using exact count")
		return 0, false
	}
	if estimate < 0 {
		return 0, false
	}
	return estimate, true
}
