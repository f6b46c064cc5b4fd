package tengo

import (
	"sync"
	"tablestream/lib/component"
	"tablestream/lib/log"
	"tablestream/lib/properties"
	"tablestream/stream"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cast"
)

var (
	IdProperty    = properties.NewRequiredProperty[string]("id", "tengo script, sets id, the aggregate key of event.")
	ValueProperty = properties.NewRequiredProperty[string]("value", "tengo script, folds event into the map value.")
	CronProperty  = properties.NewProperty[string]("cron", "cron expression the aggregates are emitted on", "@every 1m")
)

//aggregateOperator folds events into one map per id and emits the maps on every cron tick.
type aggregateOperator struct {
	ctx      stream.Context
	logger   stream.Logger
	emitNext stream.EmitNext

	idCompiled    *tengo.Compiled
	valueCompiled *tengo.Compiled

	mutex sync.Mutex
	cron  *cron.Cron
	pool  map[string]*tengo.Map
	now   func() time.Time
}

func compile(source string, variables map[string]interface{}) (*tengo.Compiled, error) {
	script := tengo.NewScript([]byte(source))
	script.SetImports(modules())
	for name, value := range variables {
		if err := script.Add(name, value); err != nil {
			return nil, errors.WithMessagef(err, "can't add %s variable", name)
		}
	}
	return script.Compile()
}

func (a *aggregateOperator) Open(ctx stream.Context) error {
	a.ctx = ctx
	a.logger = log.Ctx(a.ctx)
	a.pool = map[string]*tengo.Map{}

	var err error
	a.idCompiled, err = compile(a.ctx.Properties().GetString(IdProperty),
		map[string]interface{}{"event": emptyEvent, "id": ""})
	if err != nil {
		return errors.WithMessage(err, "can't compile id script")
	}
	a.valueCompiled, err = compile(a.ctx.Properties().GetString(ValueProperty),
		map[string]interface{}{"event": emptyEvent, "value": tengo.UndefinedValue})
	if err != nil {
		return errors.WithMessage(err, "can't compile value script")
	}

	a.cron = cron.New(cron.WithSeconds())
	if _, err = a.cron.AddFunc(a.ctx.Properties().GetString(CronProperty), a.flush); err != nil {
		return errors.WithMessage(err, "can't add flush function to cron")
	}
	return nil
}

func (a *aggregateOperator) Bind(emitNext stream.EmitNext) {
	a.emitNext = emitNext
	a.cron.Start()
}

//Close stop the cron and emit what is left.
func (a *aggregateOperator) Close() error {
	<-a.cron.Stop().Done()
	a.flush()
	return nil
}

func (a *aggregateOperator) PropertiesDef() stream.PropertiesDef {
	return stream.PropertiesDef{IdProperty, ValueProperty, CronProperty}
}

func (a *aggregateOperator) GenerateEmit(_ stream.Context) stream.Emit {
	return a.emit
}

func (a *aggregateOperator) flush() {
	a.mutex.Lock()
	pool := a.pool
	a.pool = map[string]*tengo.Map{}
	a.mutex.Unlock()

	now := a.now()
	for id, value := range pool {
		a.emitNext(&stream.Event{
			Meta:    map[string]any{"aggregate": id},
			Message: tengo.ToInterface(value),
			Time:    now,
		})
	}
}

func (a *aggregateOperator) emit(event *stream.Event) {
	if err := a.fold(event); err != nil {
		a.logger.Errorw("can't aggregate event, drop event.", "event", event, "err", err)
	}
}

func (a *aggregateOperator) fold(event *stream.Event) error {
	object, err := toObject(event)
	if err != nil {
		return err
	}
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if err = a.idCompiled.Set("event", object); err != nil {
		return err
	}
	if err = a.idCompiled.RunContext(a.ctx.Ctx()); err != nil {
		return errors.WithMessage(err, "can't run id script")
	}
	id, err := cast.ToStringE(a.idCompiled.Get("id").Value())
	if err != nil {
		return errors.WithMessage(err, "id is not a string")
	}

	var value tengo.Object = tengo.UndefinedValue
	if current, ok := a.pool[id]; ok {
		value = current
	}
	if err = a.valueCompiled.Set("event", object); err != nil {
		return err
	}
	if err = a.valueCompiled.Set("value", value); err != nil {
		return err
	}
	if err = a.valueCompiled.RunContext(a.ctx.Ctx()); err != nil {
		return errors.WithMessage(err, "can't run value script")
	}
	folded, ok := a.valueCompiled.Get("value").Object().(*tengo.Map)
	if !ok {
		return errors.New("value script must leave value a map")
	}
	a.pool[id] = folded
	return nil
}

func NewAggregate() stream.Operator {
	return &aggregateOperator{now: time.Now}
}

func init() {
	component.RegisterNewOperatorFunc("tengo-aggregate", NewAggregate)
}
