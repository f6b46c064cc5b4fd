package tengo

import (
	"sync"
	"tablestream/lib/component"
	"tablestream/lib/log"
	"tablestream/lib/properties"
	"tablestream/stream"

	"github.com/d5/tengo/v2"
	"github.com/pkg/errors"
)

var (
	ScriptProperty = properties.NewRequiredProperty[string]("script", "tengo script, rewrites event in place.")
)

type scriptOperator struct {
	ctx      stream.Context
	logger   stream.Logger
	emitNext stream.EmitNext

	mutex    sync.Mutex
	compiled *tengo.Compiled
}

func (o *scriptOperator) Open(ctx stream.Context) error {
	o.ctx = ctx
	o.logger = log.Ctx(o.ctx)
	compiled, err := compile(o.ctx.Properties().GetString(ScriptProperty), map[string]interface{}{"event": emptyEvent})
	if err != nil {
		return errors.WithMessage(err, "can't compile script")
	}
	o.compiled = compiled
	return nil
}

func (o *scriptOperator) Close() error {
	return nil
}

func (o *scriptOperator) PropertiesDef() stream.PropertiesDef {
	return stream.PropertiesDef{ScriptProperty}
}

func (o *scriptOperator) Bind(emitNext stream.EmitNext) {
	o.emitNext = emitNext
}

func (o *scriptOperator) transform(event *stream.Event) (*stream.Event, error) {
	object, err := toObject(event)
	if err != nil {
		return nil, err
	}
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if err = o.compiled.Set("event", object); err != nil {
		return nil, err
	}
	if err = o.compiled.RunContext(o.ctx.Ctx()); err != nil {
		return nil, err
	}
	result, ok := o.compiled.Get("event").Object().(*eventObject)
	if !ok {
		return nil, errors.New("script must leave event an event")
	}
	return result.toEvent(), nil
}

func (o *scriptOperator) emit(event *stream.Event) {
	result, err := o.transform(event)
	if err != nil {
		o.logger.Errorw("can't run script, drop event.", "event", event, "err", err)
		return
	}
	o.emitNext(result)
}

func (o *scriptOperator) GenerateEmit(_ stream.Context) stream.Emit {
	return o.emit
}

func NewScript() stream.Operator {
	return &scriptOperator{}
}

func init() {
	component.RegisterNewOperatorFunc("tengo-script", NewScript)
}
