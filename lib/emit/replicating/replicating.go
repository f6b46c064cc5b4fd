package replicating

import (
	"fmt"
	"regexp"
	"tablestream/lib/emit"
	"tablestream/lib/metrics"
	"tablestream/lib/properties"
	"tablestream/stream"
)

const Name = "replicating"

var (
	OutputsProperty = properties.NewRequiredProperty[[]string]("outputs", "regexps of downstream component names, like sink\\..*")
	ErrEmitNextNil  = fmt.Errorf("replicating emit next can't be nil")
)

//Generate fan every event out to each component whose name matches one of the outputs.
func Generate(ctx stream.Context, allEmitGenerator map[stream.Context]stream.EmitGenerator, topology map[stream.Context][]stream.Context) stream.EmitNext {
	var emits []stream.Emit
	for _, emitNextRegexp := range ctx.Properties().GetStringSlice(OutputsProperty) {
		compile, err := regexp.Compile("^" + emitNextRegexp + "$")
		if err != nil {
			panic(fmt.Sprintf("output %s can't compile.", emitNextRegexp))
		}
		for _ctx, emitGenerator := range allEmitGenerator {
			if _ctx.Name() != ctx.Name() && compile.MatchString(_ctx.Name()) {
				emit, name := emitGenerator(ctx), _ctx.Name()
				emits = append(emits, func(event *stream.Event) {
					metrics.EmittedTotal.With(name).Inc()
					emit(event)
				})
				topology[_ctx] = append(topology[_ctx], ctx)
			}
		}
	}
	if len(emits) == 0 {
		panic(ErrEmitNextNil)
	}
	if len(emits) == 1 {
		return stream.EmitNext(emits[0])
	}
	return func(event *stream.Event) {
		for _, emit := range emits {
			emit(event)
		}
	}
}

func init() {
	emit.RegisterEmitNextGeneratorFunc(Name, func() stream.EmitNextGenerator {
		return Generate
	})
}
