package query

import (
	"context"
	"errors"
	"tablestream/lib/log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pageCall struct {
	table  string
	filter string
	top    *int32
	next   *Continuation
}

//scriptedStore returns pages in order, page i carries a continuation unless it is the last one.
type scriptedStore struct {
	pages  [][]Row
	failAt int
	err    error
	calls  []pageCall
}

func (s *scriptedStore) QueryPage(_ context.Context, table, filter string, top *int32, next *Continuation) (Page, error) {
	s.calls = append(s.calls, pageCall{table: table, filter: filter, top: top, next: next})
	index := len(s.calls) - 1
	if s.err != nil && index == s.failAt {
		return Page{}, s.err
	}
	if index >= len(s.pages) {
		return Page{}, nil
	}
	page := Page{Rows: s.pages[index]}
	if index < len(s.pages)-1 {
		page.Next = &Continuation{NextPartitionKey: "pk", NextRowKey: string(rune('a' + index))}
	}
	return page, nil
}

func collect(t *testing.T, q *Query) ([]string, bool, error) {
	var rows []string
	found, err := q.Run(context.Background(), func(row Row) {
		rows = append(rows, row["RowKey"].(string))
	})
	return rows, found, err
}

func row(key string) Row {
	return Row{"RowKey": key}
}

func TestRunFollowsContinuations(t *testing.T) {
	store := &scriptedStore{pages: [][]Row{{row("A"), row("B")}, {row("C")}, {}}}
	top := int32(100)
	q := New(store, "WADLogsTable", "(PartitionKey gt '1')", "1-2", &top, log.Nop())

	rows, found, err := collect(t, q)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"A", "B", "C"}, rows)

	require.Len(t, store.calls, 3)
	assert.Nil(t, store.calls[0].next)
	assert.Equal(t, &Continuation{NextPartitionKey: "pk", NextRowKey: "a"}, store.calls[1].next)
	assert.Equal(t, &Continuation{NextPartitionKey: "pk", NextRowKey: "b"}, store.calls[2].next)
	for _, call := range store.calls {
		assert.Equal(t, "WADLogsTable", call.table)
		assert.Equal(t, "(PartitionKey gt '1')", call.filter)
		assert.Equal(t, int32(100), *call.top)
	}
}

func TestRunWithoutRows(t *testing.T) {
	store := &scriptedStore{}
	q := New(store, "WADLogsTable", "", "empty", nil, log.Nop())

	rows, found, err := collect(t, q)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, rows)
	assert.Len(t, store.calls, 1)
}

func TestRunSkipsEmptyPagesWithContinuation(t *testing.T) {
	store := &scriptedStore{pages: [][]Row{{}, {}, {row("A")}}}
	rows, found, err := collect(t, New(store, "t", "", "id", nil, log.Nop()))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"A"}, rows)
	assert.Len(t, store.calls, 3)
}

func TestRunFailureKeepsDeliveredRows(t *testing.T) {
	cause := errors.New("connection reset")
	store := &scriptedStore{pages: [][]Row{{row("A"), row("B")}, {row("C")}, {row("D")}}, failAt: 1, err: cause}
	q := New(store, "WADLogsTable", "f", "1-2", nil, log.Nop())

	rows, found, err := collect(t, q)
	assert.Equal(t, []string{"A", "B"}, rows)
	assert.True(t, found)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "1-2", storeErr.Query)
	assert.Equal(t, 1, storeErr.Pages)
}

func TestReset(t *testing.T) {
	store := &scriptedStore{pages: [][]Row{{row("A")}, {row("B")}}}
	q := New(store, "t", "", "id", nil, log.Nop())
	q.next = &Continuation{NextPartitionKey: "stale"}
	q.Reset()
	q.Reset()

	rows, _, err := collect(t, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, rows)
	assert.Nil(t, store.calls[0].next)
}

func TestContinuationEmpty(t *testing.T) {
	var c *Continuation
	assert.True(t, c.Empty())
	assert.True(t, (&Continuation{}).Empty())
	assert.False(t, (&Continuation{NextRowKey: "r"}).Empty())
}
