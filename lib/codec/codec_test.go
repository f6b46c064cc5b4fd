package codec

import (
	"encoding/json"
	"tablestream/stream"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

var event = &stream.Event{
	Meta:    map[string]any{"table": "WADLogsTable"},
	Message: map[string]any{"PartitionKey": "0638081281200000000", "RowKey": "a", "Level": 2.0},
	Time:    time.Date(2023, 1, 1, 0, 3, 0, 0, time.UTC),
}

func TestJSON(t *testing.T) {
	encode, err := New("json")
	require.NoError(t, err)
	data, err := encode(event)
	require.NoError(t, err)

	decoded := map[string]any{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "WADLogsTable", decoded["meta"].(map[string]any)["table"])
	assert.Equal(t, "a", decoded["message"].(map[string]any)["RowKey"])
	assert.Equal(t, "2023-01-01T00:03:00Z", decoded["time"])
}

func TestMsgPack(t *testing.T) {
	encode, err := New("msgpack")
	require.NoError(t, err)
	data, err := encode(event)
	require.NoError(t, err)

	decoded := map[string]any{}
	require.NoError(t, msgpack.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "meta")
	assert.Equal(t, "0638081281200000000", decoded["message"].(map[string]any)["PartitionKey"])
}

func TestUnknownFormat(t *testing.T) {
	_, err := New("avro")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "0638081281200000000/a", Key(event))
	assert.Equal(t, "", Key(&stream.Event{Message: "plain"}))
	assert.Equal(t, "", Key(&stream.Event{Message: map[string]any{"Level": 1}}))
}
