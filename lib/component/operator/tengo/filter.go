package tengo

import (
	"tablestream/lib/component"
	"tablestream/lib/log"
	"tablestream/lib/properties"
	"tablestream/stream"
)

var (
	ConditionProperty = properties.NewRequiredProperty[string]("condition", "condition tengo script, events it is false for are dropped")
)

type filterOperator struct {
	ctx       stream.Context
	logger    stream.Logger
	emitNext  stream.EmitNext
	condition *Condition
}

func (f *filterOperator) Open(ctx stream.Context) error {
	f.ctx = ctx
	f.logger = log.Ctx(f.ctx)
	condition, err := NewCondition(f.ctx.Properties().GetString(ConditionProperty))
	if err != nil {
		f.logger.Errorw("can't compile condition.", "err", err)
		return err
	}
	f.condition = condition
	return nil
}

func (f *filterOperator) Close() error {
	return nil
}

func (f *filterOperator) PropertiesDef() stream.PropertiesDef {
	return stream.PropertiesDef{ConditionProperty}
}

func (f *filterOperator) Bind(emitNext stream.EmitNext) {
	f.emitNext = emitNext
}

func (f *filterOperator) emit(event *stream.Event) {
	match, err := f.condition.Match(f.ctx.Ctx(), event)
	if err != nil {
		f.logger.Errorw("can't evaluate condition, drop event.", "event", event, "err", err)
		return
	}
	if !match {
		f.logger.Debugf("filter event: %+v", event)
		return
	}
	f.emitNext(event)
}

func (f *filterOperator) GenerateEmit(_ stream.Context) stream.Emit {
	return f.emit
}

func NewFilter() stream.Operator {
	return &filterOperator{}
}

func init() {
	component.RegisterNewOperatorFunc("tengo-filter", NewFilter)
}
