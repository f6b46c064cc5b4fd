package nats

import (
	_c "context"
	"strings"
	"tablestream/lib/codec"
	"tablestream/lib/component"
	"tablestream/lib/log"
	"tablestream/lib/properties"
	"tablestream/stream"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/pkg/errors"
)

var (
	URLProperty       = properties.NewProperty[string]("url", "nats server url", nats.DefaultURL)
	SubjectProperty   = properties.NewRequiredProperty[string]("subject", "subject events are published to")
	FormatProperty    = properties.NewProperty[string]("format", "event encoding, json or msgpack", "json")
	JetStreamProperty = properties.NewProperty[bool]("jetstream", "publish through jetstream and wait for the ack", false)
	StreamProperty    = properties.NewProperty[string]("stream", "jetstream stream to create for the subject, empty keeps the existing one", "")
	TimeoutProperty   = properties.NewProperty[time.Duration]("timeout", "jetstream publish timeout", 5*time.Second)
)

const KeyHeader = "key"

type sink struct {
	ctx     stream.Context
	logger  stream.Logger
	subject string
	timeout time.Duration
	encode  codec.Encoder
	conn    *nats.Conn
	js      jetstream.JetStream
}

func (s *sink) Open(ctx stream.Context) error {
	s.ctx = ctx
	s.logger = log.Ctx(s.ctx)
	p := ctx.Properties()
	s.subject = p.GetString(SubjectProperty)
	s.timeout = p.GetDuration(TimeoutProperty)

	var err error
	if s.encode, err = codec.New(p.GetString(FormatProperty)); err != nil {
		return err
	}
	s.conn, err = nats.Connect(p.GetString(URLProperty),
		nats.Name(ctx.Name()),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return errors.WithMessage(err, "can't connect to nats")
	}
	if !p.GetBool(JetStreamProperty) {
		return nil
	}
	if s.js, err = jetstream.New(s.conn); err != nil {
		s.conn.Close()
		return errors.WithMessage(err, "can't create jetstream context")
	}
	if name := p.GetString(StreamProperty); name != "" {
		timeout, cancel := _c.WithTimeout(ctx.Ctx(), s.timeout)
		defer cancel()
		_, err = s.js.CreateOrUpdateStream(timeout, jetstream.StreamConfig{
			Name:      streamName(name),
			Subjects:  []string{s.subject},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
		})
		if err != nil {
			s.conn.Close()
			return errors.WithMessagef(err, "can't ensure stream %s", name)
		}
	}
	return nil
}

//streamName replace the characters jetstream rejects in stream names.
func streamName(name string) string {
	return strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(name)
}

func (s *sink) message(event *stream.Event) (*nats.Msg, error) {
	data, err := s.encode(event)
	if err != nil {
		return nil, err
	}
	msg := nats.NewMsg(s.subject)
	msg.Data = data
	if key := codec.Key(event); key != "" {
		msg.Header.Set(KeyHeader, key)
	}
	return msg, nil
}

func (s *sink) emit(event *stream.Event) {
	msg, err := s.message(event)
	if err != nil {
		s.logger.Errorw("can't encode event, drop event.", "event", event, "err", err)
		return
	}
	if s.js == nil {
		if err = s.conn.PublishMsg(msg); err != nil {
			s.logger.Errorw("can't publish event.", "subject", s.subject, "err", err)
		}
		return
	}
	timeout, cancel := _c.WithTimeout(_c.Background(), s.timeout)
	defer cancel()
	if _, err = s.js.PublishMsg(timeout, msg); err != nil {
		s.logger.Errorw("can't publish event to jetstream.", "subject", s.subject, "err", err)
	}
}

func (s *sink) GenerateEmit(_ stream.Context) stream.Emit {
	return s.emit
}

//Close flush pending messages before closing the connection.
func (s *sink) Close() error {
	if s.conn == nil {
		return nil
	}
	defer s.conn.Close()
	return errors.WithMessage(s.conn.FlushTimeout(s.timeout), "can't flush nats connection")
}

func (s *sink) PropertiesDef() stream.PropertiesDef {
	return stream.PropertiesDef{URLProperty, SubjectProperty, FormatProperty, JetStreamProperty, StreamProperty, TimeoutProperty}
}

func New() stream.Sink {
	return &sink{}
}

func init() {
	component.RegisterNewSinkFunc("nats", New)
}
