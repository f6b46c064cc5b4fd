package sample

import (
	"sync/atomic"
	"tablestream/lib/component"
	"tablestream/lib/properties"
	"tablestream/stream"

	"github.com/pkg/errors"
)

var (
	RateProperty = properties.NewProperty[uint64]("rate", "forward one event out of rate", 10)
)

//operator forwards every rate-th event, useful to preview a noisy table.
type operator struct {
	rate     uint64
	seen     atomic.Uint64
	emitNext stream.EmitNext
}

func (o *operator) Open(ctx stream.Context) error {
	o.rate = ctx.Properties().GetUint64(RateProperty)
	if o.rate == 0 {
		return errors.New("rate must be greater than 0")
	}
	return nil
}

func (o *operator) Close() error {
	return nil
}

func (o *operator) PropertiesDef() stream.PropertiesDef {
	return stream.PropertiesDef{RateProperty}
}

func (o *operator) Bind(emitNext stream.EmitNext) {
	o.emitNext = emitNext
}

func (o *operator) GenerateEmit(_ stream.Context) stream.Emit {
	return func(event *stream.Event) {
		if o.seen.Add(1)%o.rate == 0 {
			o.emitNext(event)
		}
	}
}

func New() stream.Operator {
	return &operator{}
}

func init() {
	component.RegisterNewOperatorFunc("sample", New)
}
