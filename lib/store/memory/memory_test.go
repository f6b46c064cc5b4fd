package memory

import (
	"context"
	"tablestream/lib/harvest"
	"tablestream/lib/harvest/query"
	"tablestream/lib/log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rows(keys ...string) []query.Row {
	var rows []query.Row
	for i, key := range keys {
		rows = append(rows, query.Row{"PartitionKey": key, "RowKey": string(rune('a' + i))})
	}
	return rows
}

func TestQueryPageRange(t *testing.T) {
	s := New()
	s.Append("WADLogsTable", rows("03", "01", "02", "05")...)
	assert.Equal(t, 4, s.Len("WADLogsTable"))

	page, err := s.QueryPage(context.Background(), "WADLogsTable", harvest.Filter("01", "05"), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, page.Next)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, "02", page.Rows[0]["PartitionKey"])
	assert.Equal(t, "03", page.Rows[1]["PartitionKey"])
}

func TestQueryPaginates(t *testing.T) {
	s := New()
	s.Append("WADLogsTable", rows("01", "02", "03", "04", "05")...)
	top := int32(2)

	q := query.New(s, "WADLogsTable", harvest.Filter("00", "09"), "00-09", &top, log.Nop())
	var seen []any
	found, err := q.Run(context.Background(), func(row query.Row) {
		seen = append(seen, row["PartitionKey"])
	})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []any{"01", "02", "03", "04", "05"}, seen)
}

func TestUnsupportedFilter(t *testing.T) {
	_, err := New().QueryPage(context.Background(), "WADLogsTable", "RowKey eq 'a'", nil, nil)
	assert.ErrorIs(t, err, ErrFilter)
}

func TestRowsAreCopied(t *testing.T) {
	s := New()
	s.Append("WADLogsTable", rows("01")...)
	page, err := s.QueryPage(context.Background(), "WADLogsTable", harvest.Filter("00", "09"), nil, nil)
	require.NoError(t, err)
	page.Rows[0]["PartitionKey"] = "changed"

	page, err = s.QueryPage(context.Background(), "WADLogsTable", harvest.Filter("00", "09"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "01", page.Rows[0]["PartitionKey"])
}
