package task

import (
	"tablestream/stream"
)

type OperatorTask struct {
	stream.Operator
	Ctx      stream.Context
	EmitNext stream.EmitNext
	Drained  <-chan struct{}
}

func (o *OperatorTask) Start() error {
	if err := o.Open(o.Ctx); err != nil {
		return err
	}
	o.Bind(o.EmitNext)
	return nil
}

func (o *OperatorTask) Run() error {
	<-o.Ctx.Done()
	<-o.Drained
	return o.Close()
}
