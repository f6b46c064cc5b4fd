package kafka

import (
	"tablestream/lib/codec"
	"tablestream/lib/component"
	"tablestream/lib/log"
	"tablestream/lib/properties"
	"tablestream/stream"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
)

var (
	TopicProperty    = properties.NewRequiredProperty[string]("topic", "kafka topic events are produced to")
	VersionProperty  = properties.NewProperty[string]("version", "kafka protocol version", "2.4.0")
	BrokersProperty  = properties.NewRequiredProperty[[]string]("brokers", "kafka brokers")
	ClientIdProperty = properties.NewProperty[string]("client.id", "client id", "tablestream")
	FormatProperty   = properties.NewProperty[string]("format", "event encoding, json or msgpack", "json")
	AcksProperty     = properties.NewProperty[int]("acks", "required acks, -1 all, 1 leader, 0 none", -1)

	SASLUserProperty     = properties.NewProperty[string]("sasl-username", "", "")
	SASLPasswordProperty = properties.NewSecretProperty("sasl-password", "")
)

type sink struct {
	ctx         stream.Context
	logger      stream.Logger
	topic       string
	encode      codec.Encoder
	producer    sarama.SyncProducer
	newProducer func(brokers []string, config *sarama.Config) (sarama.SyncProducer, error)
}

func (s *sink) config() (*sarama.Config, error) {
	p := s.ctx.Properties()
	config := sarama.NewConfig()
	version, err := sarama.ParseKafkaVersion(p.GetString(VersionProperty))
	if err != nil {
		return nil, err
	}
	config.Version = version
	config.ClientID = p.GetString(ClientIdProperty)
	//sasl
	saslUser := p.GetString(SASLUserProperty)
	saslPassword := p.GetString(SASLPasswordProperty)
	if saslUser != "" && saslPassword != "" {
		config.Net.SASL.User = saslUser
		config.Net.SASL.Password = saslPassword
		config.Net.SASL.Enable = true
	}
	config.Producer.RequiredAcks = sarama.RequiredAcks(p.GetInt(AcksProperty))
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.Partitioner = sarama.NewHashPartitioner
	return config, nil
}

func (s *sink) Open(ctx stream.Context) error {
	s.ctx = ctx
	s.logger = log.Ctx(s.ctx)
	sarama.Logger = &log.StdLoggerWrapper{Logger: log.Named("sarama")}
	s.topic = ctx.Properties().GetString(TopicProperty)

	var err error
	if s.encode, err = codec.New(ctx.Properties().GetString(FormatProperty)); err != nil {
		return err
	}
	config, err := s.config()
	if err != nil {
		return errors.WithMessage(err, "invalid kafka config")
	}
	s.producer, err = s.newProducer(ctx.Properties().GetStringSlice(BrokersProperty), config)
	if err != nil {
		return errors.WithMessage(err, "can't create kafka producer")
	}
	return nil
}

func (s *sink) GenerateEmit(_ stream.Context) stream.Emit {
	return s.emit
}

//emit produce one message per event, keyed by the row so a partition keeps row order.
func (s *sink) emit(event *stream.Event) {
	value, err := s.encode(event)
	if err != nil {
		s.logger.Errorw("can't encode event, drop event.", "event", event, "err", err)
		return
	}
	message := &sarama.ProducerMessage{
		Topic:     s.topic,
		Value:     sarama.ByteEncoder(value),
		Timestamp: event.Time,
	}
	if key := codec.Key(event); key != "" {
		message.Key = sarama.StringEncoder(key)
	}
	partition, offset, err := s.producer.SendMessage(message)
	if err != nil {
		s.logger.Errorw("can't produce event.", "topic", s.topic, "err", err)
		return
	}
	s.logger.Debugw("produced event.", "topic", s.topic, "partition", partition, "offset", offset)
}

func (s *sink) Close() error {
	return errors.WithMessage(s.producer.Close(), "can't close kafka producer")
}

func (s *sink) PropertiesDef() stream.PropertiesDef {
	return stream.PropertiesDef{
		TopicProperty, VersionProperty, BrokersProperty, ClientIdProperty, FormatProperty, AcksProperty,
		SASLUserProperty, SASLPasswordProperty,
	}
}

func New() stream.Sink {
	return &sink{newProducer: sarama.NewSyncProducer}
}

func init() {
	component.RegisterNewSinkFunc("kafka", New)
}
