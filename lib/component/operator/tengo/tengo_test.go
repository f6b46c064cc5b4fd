package tengo

import (
	"bytes"
	_c "context"
	"sync"
	"tablestream/lib/context"
	"tablestream/lib/properties"
	"tablestream/stream"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mutex  sync.Mutex
	events []*stream.Event
}

func (c *collector) emit(event *stream.Event) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.events = append(c.events, event)
}

func newCtx(t *testing.T, config string, def stream.PropertiesDef) stream.Context {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(config)))
	ctx := context.New(_c.Background(), properties.FromViper(v)).Named("operator.test")
	_, err := properties.InitAndRender(ctx.Properties(), def)
	require.NoError(t, err)
	return ctx
}

func row(level float64, role string) *stream.Event {
	return &stream.Event{
		Meta:    map[string]any{"table": "WADLogsTable"},
		Message: map[string]any{"PartitionKey": "0638081281200000000", "Level": level, "Role": role},
		Time:    time.Date(2023, 1, 1, 0, 3, 0, 0, time.UTC),
	}
}

func TestCondition(t *testing.T) {
	tests := []struct {
		expression string
		event      *stream.Event
		match      bool
		err        bool
	}{
		{`event.message.Level <= 2`, row(2, "web"), true, false},
		{`event.message.Level <= 2`, row(4, "web"), false, false},
		{`event.meta.table == "WADLogsTable" && event.message.Role == "worker"`, row(1, "worker"), true, false},
		{`event.message.Level`, row(1, "web"), false, true},
	}
	for _, test := range tests {
		t.Run(test.expression, func(t *testing.T) {
			condition, err := NewCondition(test.expression)
			require.NoError(t, err)
			match, err := condition.Match(_c.Background(), test.event)
			if test.err {
				assert.ErrorIs(t, err, ErrNotBool)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.match, match)
		})
	}

	_, err := NewCondition(`event.message.Level <=`)
	assert.Error(t, err)
}

func TestFilterOperator(t *testing.T) {
	operator := NewFilter()
	ctx := newCtx(t, "operator:\n  test:\n    condition: event.message.Level <= 2\n", operator.PropertiesDef())
	require.NoError(t, operator.Open(ctx))
	c := &collector{}
	operator.Bind(c.emit)

	emit := operator.GenerateEmit(nil)
	emit(row(1, "web"))
	emit(row(4, "web"))
	emit(row(2, "worker"))
	require.NoError(t, operator.Close())

	require.Len(t, c.events, 2)
	assert.Equal(t, "worker", c.events[1].Message.(map[string]any)["Role"])
}

func TestScriptOperator(t *testing.T) {
	operator := NewScript()
	config := "operator:\n  test:\n    script: |\n      event.meta.severity = event.message.Level < 3 ? \"high\" : \"low\"\n"
	ctx := newCtx(t, config, operator.PropertiesDef())
	require.NoError(t, operator.Open(ctx))
	c := &collector{}
	operator.Bind(c.emit)

	operator.GenerateEmit(nil)(row(1, "web"))
	require.Len(t, c.events, 1)
	assert.Equal(t, "high", c.events[0].Meta["severity"])
	assert.Equal(t, "WADLogsTable", c.events[0].Meta["table"])
	assert.Equal(t, time.Date(2023, 1, 1, 0, 3, 0, 0, time.UTC), c.events[0].Time)
}

func TestAggregateOperator(t *testing.T) {
	operator := NewAggregate()
	config := `
operator:
  test:
    cron: "@every 1h"
    id: id = event.message.Role
    value: |
      if value == undefined { value = {count: 0} }
      value.count = value.count + 1
`
	ctx := newCtx(t, config, operator.PropertiesDef())
	require.NoError(t, operator.Open(ctx))
	c := &collector{}
	operator.Bind(c.emit)

	emit := operator.GenerateEmit(nil)
	emit(row(1, "web"))
	emit(row(2, "web"))
	emit(row(3, "worker"))
	require.NoError(t, operator.Close())

	counts := map[any]any{}
	for _, event := range c.events {
		counts[event.Meta["aggregate"]] = event.Message.(map[string]any)["count"]
	}
	assert.Equal(t, map[any]any{"web": int64(2), "worker": int64(1)}, counts)
}

func TestTableModule(t *testing.T) {
	condition, err := NewCondition(`event.message.PartitionKey < import("table").partition_key("2023-01-01T00:03:00Z")`)
	require.NoError(t, err)
	match, err := condition.Match(_c.Background(), row(1, "web"))
	require.NoError(t, err)
	assert.True(t, match)

	condition, err = NewCondition(`import("table").partition_key(event.time) == "0638081281800000000"`)
	require.NoError(t, err)
	match, err = condition.Match(_c.Background(), row(1, "web"))
	require.NoError(t, err)
	assert.True(t, match)

	condition, err = NewCondition(`is_error(import("table").parse_time("not a time"))`)
	require.NoError(t, err)
	match, err = condition.Match(_c.Background(), row(1, "web"))
	require.NoError(t, err)
	assert.True(t, match)
}
