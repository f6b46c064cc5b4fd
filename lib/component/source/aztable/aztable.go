package aztable

import (
	"sync"
	"tablestream/lib/checkpoint"
	"tablestream/lib/component"
	"tablestream/lib/harvest"
	"tablestream/lib/harvest/query"
	"tablestream/lib/harvest/watermark"
	"tablestream/lib/log"
	"tablestream/lib/properties"
	azstore "tablestream/lib/store/aztable"
	"tablestream/stream"
	"time"

	"github.com/pkg/errors"
)

const Type = "aztable"

var (
	AccountNameProperty      = properties.NewRequiredProperty[string]("account-name", "storage account name")
	AccessKeyProperty        = properties.NewSecretProperty("access-key", "storage account shared key")
	SASTokenProperty         = properties.NewSecretProperty("sas-token", "table sas token, used when access-key is empty")
	TableNameProperty        = properties.NewRequiredProperty[string]("table-name", "table to harvest")
	StartTimeProperty        = properties.NewProperty[string]("collection-start-time-utc", "ISO-8601 time to start from, empty starts from now - data latency - 1m", "")
	IdleDelayProperty        = properties.NewProperty[int]("idle-delay-seconds", "delay between two poll cycles", 15)
	DataLatencyProperty      = properties.NewProperty[int]("data-latency-minutes", "how late rows may arrive", 1)
	PastQueriesCountProperty = properties.NewProperty[int]("past-queries-count", "reserved, previous windows to re-scan", 5)
	EndpointProperty         = properties.NewProperty[string]("endpoint", "storage endpoint suffix", azstore.DefaultEndpoint)
	PageSizeProperty         = properties.NewProperty[int]("page-size", "rows per page hint, 0 uses the store default", 0)
	EventTypeProperty        = properties.NewProperty[string]("event-type", "type attached to every event, empty uses table-name", "")
)

//state is the snapshot of a source, the table guards against resuming another table's watermark.
type state struct {
	Table     string `msgpack:"table"`
	Watermark string `msgpack:"watermark"`
}

type source struct {
	ctx       stream.Context
	logger    stream.Logger
	table     string
	store     query.Store
	tracker   *watermark.Tracker
	clock     watermark.Clock
	newStore  func(config azstore.Config) (query.Store, error)
	committer stream.Committer

	mutex     sync.Mutex
	harvester *harvest.Harvester
	closed    bool
}

func (s *source) Open(ctx stream.Context) error {
	s.ctx = ctx
	s.logger = log.Ctx(ctx)
	p := ctx.Properties()
	s.table = p.GetString(TableNameProperty)

	store, err := s.newStore(azstore.Config{
		AccountName: p.GetString(AccountNameProperty),
		AccessKey:   p.GetString(AccessKeyProperty),
		SASToken:    p.GetString(SASTokenProperty),
		Endpoint:    p.GetString(EndpointProperty),
	})
	if err != nil {
		return errors.WithMessage(err, "can't create table store")
	}
	s.store = store

	latency := time.Duration(p.GetInt(DataLatencyProperty)) * time.Minute
	s.tracker, err = watermark.NewTracker(p.GetString(StartTimeProperty), latency, s.clock, s.logger)
	if err != nil {
		return err
	}
	if v, ok := ctx.Load(stream.CommitterKey); ok {
		s.committer, _ = v.(stream.Committer)
	}
	s.logger.Infow("opened table source.", "table", s.table, "watermark", s.tracker.Low())
	return nil
}

func (s *source) Collect(emitNext stream.EmitNext) error {
	p := s.ctx.Properties()
	h, err := harvest.New(harvest.Config{
		Table:            s.table,
		Type:             p.GetString(EventTypeProperty),
		IdleDelay:        time.Duration(p.GetInt(IdleDelayProperty)) * time.Second,
		PageSize:         p.GetInt32(PageSizeProperty),
		PastQueriesCount: p.GetInt(PastQueriesCountProperty),
	}, s.store, s.tracker, emitNext, s.logger,
		harvest.WithClock(s.clock),
		harvest.WithDecorator(harvest.SourceDecorator(s.ctx.Name(), s.table)),
		harvest.WithCommitHook(s.commit),
	)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil
	}
	s.harvester = h
	s.mutex.Unlock()

	return h.Start(s.ctx.Ctx())
}

//commit persist every advanced watermark, a failed write only costs re-emitted rows.
func (s *source) commit(_ string) {
	if s.committer == nil {
		return
	}
	snapshot, err := s.Snapshot()
	if err != nil {
		s.logger.Warnw("can't snapshot watermark.", "err", err)
		return
	}
	if err = s.committer.Commit(s.ctx.Name(), snapshot); err != nil {
		s.logger.Warnw("can't commit watermark.", "err", err)
	}
}

func (s *source) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.closed = true
	if s.harvester != nil {
		s.harvester.Stop()
	}
	return nil
}

func (s *source) Snapshot() ([]byte, error) {
	return checkpoint.Marshal(&state{Table: s.table, Watermark: s.tracker.Low()})
}

func (s *source) Restore(snapshot []byte) error {
	st := &state{}
	if err := checkpoint.Unmarshal(snapshot, st); err != nil {
		return err
	}
	if st.Table != s.table {
		s.logger.Warnw("snapshot belongs to another table, ignored.", "snapshot", st.Table, "table", s.table)
		return nil
	}
	s.tracker.Restore(st.Watermark)
	s.logger.Infow("restored watermark.", "table", s.table, "watermark", st.Watermark)
	return nil
}

func (s *source) PropertiesDef() stream.PropertiesDef {
	return stream.PropertiesDef{
		AccountNameProperty, AccessKeyProperty, SASTokenProperty, TableNameProperty,
		StartTimeProperty, IdleDelayProperty, DataLatencyProperty, PastQueriesCountProperty,
		EndpointProperty, PageSizeProperty, EventTypeProperty,
	}
}

func newStore(config azstore.Config) (query.Store, error) {
	return azstore.New(config)
}

func New() stream.Source {
	return &source{clock: watermark.SystemClock, newStore: newStore}
}

func init() {
	component.RegisterNewSourceFunc(Type, New)
}
