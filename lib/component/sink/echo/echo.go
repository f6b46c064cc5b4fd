package echo

import (
	"sync"
	"tablestream/lib/component"
	"tablestream/lib/log"
	"tablestream/lib/properties"
	"tablestream/stream"
)

var (
	BatchSizeProperty = properties.NewProperty[int]("batch", "echo sink echo batch size", 1)
	LevelProperty     = properties.NewProperty[string]("echo", "echo level, like info debug", "info")
)

type sink struct {
	ctx       stream.Context
	logger    stream.Logger
	batch     int
	buffer    []*stream.Event
	bufferMux sync.Mutex
	echoFunc  func(format string, args ...interface{})
}

func (s *sink) GenerateEmit(_ stream.Context) stream.Emit {
	return func(event *stream.Event) {
		s.bufferMux.Lock()
		defer s.bufferMux.Unlock()
		s.buffer = append(s.buffer, event)
		if len(s.buffer) >= s.batch {
			s.flush()
		}
	}
}

func (s *sink) flush() {
	for _, event := range s.buffer {
		s.echoFunc("%+v", event)
	}
	s.buffer = s.buffer[:0]
}

func (s *sink) Open(ctx stream.Context) error {
	s.ctx = ctx
	s.logger = log.Ctx(s.ctx)
	s.batch = ctx.Properties().GetInt(BatchSizeProperty)
	if s.batch <= 0 {
		s.batch = 1
	}
	s.buffer = make([]*stream.Event, 0, s.batch)
	switch level := ctx.Properties().GetString(LevelProperty); level {
	case "debug":
		s.echoFunc = s.logger.Debugf
	case "warn":
		s.echoFunc = s.logger.Warnf
	case "error":
		s.echoFunc = s.logger.Errorf
	case "info":
		s.echoFunc = s.logger.Infof
	default:
		s.logger.Warnf("unknown echo level %s, use info", level)
		s.echoFunc = s.logger.Infof
	}
	return nil
}

func (s *sink) Close() error {
	s.bufferMux.Lock()
	defer s.bufferMux.Unlock()
	s.flush()
	return nil
}

func (s *sink) PropertiesDef() stream.PropertiesDef {
	return stream.PropertiesDef{BatchSizeProperty, LevelProperty}
}

func New() stream.Sink {
	return &sink{}
}

func init() {
	component.RegisterNewSinkFunc("echo", New)
}
