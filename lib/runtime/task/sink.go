package task

import (
	"tablestream/stream"
)

type SinkTask struct {
	stream.Sink
	Ctx stream.Context
	//Drained is closed once no upstream can emit anymore
	Drained <-chan struct{}
}

func (s *SinkTask) Start() error {
	return s.Open(s.Ctx)
}

func (s *SinkTask) Run() error {
	//Sink does not block, so wait
	<-s.Ctx.Done()
	<-s.Drained
	return s.Close()
}
