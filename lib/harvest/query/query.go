// Package query pages through every row of a table store matching a filter.
package query

import (
	"context"
	"fmt"
	"tablestream/lib/metrics"
	"tablestream/stream"
)

//Row is one decoded entity, property name to value.
type Row map[string]any

//Continuation is the store-issued token telling that more pages remain.
type Continuation struct {
	NextPartitionKey string
	NextRowKey       string
}

//Empty reports whether c marks the last page.
func (c *Continuation) Empty() bool {
	return c == nil || (c.NextPartitionKey == "" && c.NextRowKey == "")
}

type Page struct {
	Rows []Row
	Next *Continuation
}

//Store fetches one page of a filtered table scan. top is a page size hint, nil lets the store decide.
type Store interface {
	QueryPage(ctx context.Context, table string, filter string, top *int32, next *Continuation) (Page, error)
}

//StoreError is returned by Run when a page fetch fails.
type StoreError struct {
	Query  string
	Table  string
	Filter string
	Pages  int
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("[%s] query %s failed after %d pages: %v", e.Query, e.Table, e.Pages, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

//Query is one scan session, not safe for concurrent use.
type Query struct {
	store  Store
	table  string
	filter string
	id     string
	top    *int32
	next   *Continuation
	logger stream.Logger
}

func New(store Store, table, filter, id string, top *int32, logger stream.Logger) *Query {
	return &Query{store: store, table: table, filter: filter, id: id, top: top, logger: logger}
}

func (q *Query) ID() string {
	return q.id
}

func (q *Query) Filter() string {
	return q.filter
}

//Reset forget the continuation, the next Run starts from the first page.
func (q *Query) Reset() {
	q.next = nil
}

//Run fetch pages until the store returns no continuation, calling onRow for
//every row in page order. Rows delivered before a failing page stay delivered.
func (q *Query) Run(ctx context.Context, onRow func(Row)) (bool, error) {
	found := false
	pages := 0
	q.logger.Debugw("query filter.", "query", q.id, "filter", q.filter)
	for {
		q.logger.Debugw("running query.", "query", q.id, "continuation", q.next)
		page, err := q.store.QueryPage(ctx, q.table, q.filter, q.top, q.next)
		if err != nil {
			return found, &StoreError{Query: q.id, Table: q.table, Filter: q.filter, Pages: pages, Err: err}
		}
		pages++
		metrics.PagesTotal.With(q.table).Inc()
		if len(page.Rows) > 0 {
			found = true
			q.logger.Debugw("results found.", "query", q.id, "count", len(page.Rows))
			for _, row := range page.Rows {
				onRow(row)
			}
		}
		if page.Next.Empty() {
			q.next = nil
			return found, nil
		}
		q.next = page.Next
	}
}
