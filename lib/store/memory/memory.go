// Package memory implements query.Store over rows held in process, for local
// runs and tests. It understands the partition range filters the harvester builds.
package memory

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"tablestream/lib/harvest/query"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

//DefaultTop is the page size when the caller gives no hint, the same as Azure tables.
const DefaultTop = 1000

var (
	ErrFilter = errors.New("unsupported filter")

	rangeFilter = regexp.MustCompile(`^\(PartitionKey gt '([^']*)' and PartitionKey lt '([^']*)'\)$`)
)

type Store struct {
	mutex  sync.RWMutex
	tables map[string][]query.Row
}

func New() *Store {
	return &Store{tables: map[string][]query.Row{}}
}

//Append add rows, a table stays ordered by PartitionKey then RowKey like a real table.
func (s *Store) Append(table string, rows ...query.Row) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	all := append(s.tables[table], rows...)
	sort.SliceStable(all, func(i, j int) bool {
		pi, pj := cast.ToString(all[i]["PartitionKey"]), cast.ToString(all[j]["PartitionKey"])
		if pi != pj {
			return pi < pj
		}
		return cast.ToString(all[i]["RowKey"]) < cast.ToString(all[j]["RowKey"])
	})
	s.tables[table] = all
}

func (s *Store) Len(table string) int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.tables[table])
}

//QueryPage return up to top matching rows, the continuation carries the offset of the next one.
func (s *Store) QueryPage(_ context.Context, table string, filter string, top *int32, next *query.Continuation) (query.Page, error) {
	bounds := rangeFilter.FindStringSubmatch(filter)
	if bounds == nil {
		return query.Page{}, errors.WithMessage(ErrFilter, filter)
	}
	offset := 0
	if !next.Empty() {
		var err error
		if offset, err = strconv.Atoi(next.NextRowKey); err != nil {
			return query.Page{}, errors.WithMessage(err, "invalid continuation")
		}
	}
	size := DefaultTop
	if top != nil && *top > 0 {
		size = int(*top)
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	var matched []query.Row
	for _, row := range s.tables[table] {
		key := cast.ToString(row["PartitionKey"])
		if key > bounds[1] && key < bounds[2] {
			matched = append(matched, row)
		}
	}
	if offset >= len(matched) {
		return query.Page{}, nil
	}
	end := offset + size
	page := query.Page{}
	if end < len(matched) {
		page.Next = &query.Continuation{NextPartitionKey: cast.ToString(matched[end]["PartitionKey"]), NextRowKey: strconv.Itoa(end)}
	} else {
		end = len(matched)
	}
	page.Rows = make([]query.Row, 0, end-offset)
	for _, row := range matched[offset:end] {
		copied := make(query.Row, len(row))
		for key, value := range row {
			copied[key] = value
		}
		page.Rows = append(page.Rows, copied)
	}
	return page, nil
}
