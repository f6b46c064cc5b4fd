package stream

//Emit describe operator sink Emit Func
type Emit func(event *Event)

type EmitGenerator func(upstreamCtx Context) Emit

//EmitNext send event to every downstream component of the caller.
type EmitNext func(event *Event)

//EmitNextGenerator generate EmitNext from all known EmitGenerator, recording the edges it creates in topology
type EmitNextGenerator func(ctx Context, allEmitGenerator map[Context]EmitGenerator, topology map[Context][]Context) EmitNext

//Component is core
type Component interface {
	//Open initialize the component
	Open(ctx Context) error
	//Close cleaning up after the context done.
	Close() error
	//PropertiesDef return Component properties defend
	PropertiesDef() PropertiesDef
}

type Source interface {
	Component
	//Collect should block caller,and wait for ctx done or source done.
	Collect(emitNext EmitNext) error
}

type Operator interface {
	Component
	//Bind receive the downstream emit, called after Open and before any event arrives
	Bind(emitNext EmitNext)
	//GenerateEmit is a method to receive events
	GenerateEmit(upstreamCtx Context) Emit
}

type Sink interface {
	Component
	//GenerateEmit is a method to receive events
	GenerateEmit(upstreamCtx Context) Emit
}

type NewSourceFunc func() Source
type NewSinkFunc func() Sink
type NewOperatorFunc func() Operator

type NewEmitNextGeneratorFunc func() EmitNextGenerator
