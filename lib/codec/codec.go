// Package codec serializes events for sinks that publish bytes.
package codec

import (
	"bytes"
	"encoding/json"
	"tablestream/stream"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/vmihailenco/msgpack/v5"
)

type Format string

const (
	JSON    Format = "json"
	MsgPack Format = "msgpack"
)

var ErrUnknownFormat = errors.New("unknown event format")

type Encoder func(event *stream.Event) ([]byte, error)

func New(format string) (Encoder, error) {
	switch Format(format) {
	case JSON:
		return encodeJSON, nil
	case MsgPack:
		return encodeMsgPack, nil
	default:
		return nil, errors.WithMessage(ErrUnknownFormat, format)
	}
}

func encodeJSON(event *stream.Event) ([]byte, error) {
	return json.Marshal(event)
}

func encodeMsgPack(event *stream.Event) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(event); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

//Key is "<PartitionKey>/<RowKey>" of a table row, empty for other messages.
func Key(event *stream.Event) string {
	message, ok := event.Message.(map[string]any)
	if !ok {
		return ""
	}
	partition, row := cast.ToString(message["PartitionKey"]), cast.ToString(message["RowKey"])
	if partition == "" && row == "" {
		return ""
	}
	return partition + "/" + row
}
