package aztable

import (
	"bytes"
	_c "context"
	"sync"
	"tablestream/lib/checkpoint"
	"tablestream/lib/context"
	"tablestream/lib/harvest/query"
	"tablestream/lib/harvest/watermark"
	"tablestream/lib/properties"
	azstore "tablestream/lib/store/aztable"
	"tablestream/stream"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const config = `
source:
  harvest:
    type: aztable
    account-name: diagnostics
    access-key: c2VjcmV0
    table-name: WADLogsTable
    collection-start-time-utc: "2023-01-01T00:00:00Z"
`

type pagesStore struct {
	mutex sync.Mutex
	pages [][]query.Row
}

func (p *pagesStore) QueryPage(_ _c.Context, _ string, _ string, _ *int32, _ *query.Continuation) (query.Page, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if len(p.pages) == 0 {
		return query.Page{}, nil
	}
	page := query.Page{Rows: p.pages[0]}
	p.pages = p.pages[1:]
	return page, nil
}

type committer struct {
	commits chan []byte
}

func (c *committer) Commit(name string, snapshot []byte) error {
	if name == "source.harvest" {
		c.commits <- snapshot
	}
	return nil
}

func newCtx(t *testing.T, c stream.Committer) stream.Context {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(config)))
	root := context.New(_c.Background(), properties.FromViper(v))
	if c != nil {
		root.Store(stream.CommitterKey, c)
	}
	ctx := root.Named("source.harvest")
	_, err := properties.InitAndRender(ctx.Properties(), New().PropertiesDef())
	require.NoError(t, err)
	return ctx
}

func newSource(store query.Store, now time.Time) *source {
	return &source{
		clock:    watermark.ClockFunc(func() time.Time { return now }),
		newStore: func(azstore.Config) (query.Store, error) { return store, nil },
	}
}

func TestOpenStartsFromConfiguredTime(t *testing.T) {
	s := newSource(&pagesStore{}, time.Date(2023, 1, 1, 0, 3, 0, 0, time.UTC))
	require.NoError(t, s.Open(newCtx(t, nil)))
	assert.Equal(t, "0638081280000000000", s.tracker.Low())
	assert.Equal(t, "WADLogsTable", s.table)
}

func TestCollectEmitsAndCommits(t *testing.T) {
	store := &pagesStore{pages: [][]query.Row{{
		{"PartitionKey": "0638081281200000000", "RowKey": "a", "Message": "hello"},
		{"PartitionKey": "0638081281200000000", "RowKey": "b", "Message": "world"},
	}}}
	c := &committer{commits: make(chan []byte, 1)}
	ctx := newCtx(t, c)
	s := newSource(store, time.Date(2023, 1, 1, 0, 3, 0, 0, time.UTC))
	require.NoError(t, s.Open(ctx))

	var (
		mutex  sync.Mutex
		events []*stream.Event
	)
	done := make(chan error, 1)
	go func() {
		done <- s.Collect(func(event *stream.Event) {
			mutex.Lock()
			defer mutex.Unlock()
			events = append(events, event)
		})
	}()

	var snapshot []byte
	select {
	case snapshot = <-c.commits:
	case <-time.After(5 * time.Second):
		t.Fatal("watermark was not committed")
	}
	ctx.Cancel()
	require.NoError(t, <-done)
	require.NoError(t, s.Close())

	st := &state{}
	require.NoError(t, checkpoint.Unmarshal(snapshot, st))
	assert.Equal(t, state{Table: "WADLogsTable", Watermark: "0638081281200000000"}, *st)

	mutex.Lock()
	defer mutex.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, "WADLogsTable", events[0].Message.(map[string]any)["type"])
	assert.Equal(t, "source.harvest", events[0].Meta["source"])
	assert.Equal(t, "WADLogsTable", events[0].Meta["table"])
	assert.Equal(t, "world", events[1].Message.(map[string]any)["Message"])
}

func TestCloseBeforeCollect(t *testing.T) {
	s := newSource(&pagesStore{}, time.Now())
	require.NoError(t, s.Open(newCtx(t, nil)))
	require.NoError(t, s.Close())
	assert.NoError(t, s.Collect(func(*stream.Event) {}))
}

func TestRestore(t *testing.T) {
	s := newSource(&pagesStore{}, time.Date(2023, 1, 1, 0, 3, 0, 0, time.UTC))
	require.NoError(t, s.Open(newCtx(t, nil)))

	other, err := checkpoint.Marshal(&state{Table: "WADPerformanceCountersTable", Watermark: "0638081289999999999"})
	require.NoError(t, err)
	require.NoError(t, s.Restore(other))
	assert.Equal(t, "0638081280000000000", s.tracker.Low())

	own, err := checkpoint.Marshal(&state{Table: "WADLogsTable", Watermark: "0638081283000000000"})
	require.NoError(t, err)
	require.NoError(t, s.Restore(own))
	assert.Equal(t, "0638081283000000000", s.tracker.Low())

	snapshot, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, own, snapshot)

	assert.Error(t, s.Restore([]byte{0xc1}))
}
