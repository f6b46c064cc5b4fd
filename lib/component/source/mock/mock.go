package mock

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"tablestream/lib/component"
	"tablestream/lib/harvest"
	"tablestream/lib/harvest/query"
	"tablestream/lib/harvest/watermark"
	"tablestream/lib/log"
	"tablestream/lib/properties"
	"tablestream/lib/store/memory"
	"tablestream/stream"
	"time"
)

var (
	IntervalProperty    = properties.NewProperty[int]("interval", "milliseconds between two generated rows", 100)
	TableNameProperty   = properties.NewProperty[string]("table-name", "name of the generated table", "MockTable")
	IdleDelayProperty   = properties.NewProperty[int]("idle-delay-seconds", "delay between two poll cycles", 1)
	LagProperty         = properties.NewProperty[int]("lag-seconds", "generated rows are partitioned this far in the past", 0)
	DataLatencyProperty = properties.NewProperty[int]("data-latency-minutes", "how late rows may arrive", 1)
)

//source writes synthetic log rows into an in-memory table and harvests them like a real one.
type source struct {
	ctx      stream.Context
	logger   stream.Logger
	interval time.Duration
	lag      time.Duration
	table    string
	store    *memory.Store
	tracker  *watermark.Tracker
	sequence atomic.Uint64
	clock    watermark.Clock

	mutex     sync.Mutex
	harvester *harvest.Harvester
	closed    bool
}

func (s *source) PropertiesDef() stream.PropertiesDef {
	return stream.PropertiesDef{IntervalProperty, TableNameProperty, IdleDelayProperty, LagProperty, DataLatencyProperty}
}

func (s *source) Open(ctx stream.Context) error {
	s.ctx = ctx
	s.logger = log.Ctx(ctx)
	p := ctx.Properties()
	s.interval = time.Duration(p.GetInt(IntervalProperty)) * time.Millisecond
	s.lag = time.Duration(p.GetInt(LagProperty)) * time.Second
	s.table = p.GetString(TableNameProperty)
	s.store = memory.New()
	if s.clock == nil {
		s.clock = watermark.SystemClock
	}

	var err error
	latency := time.Duration(p.GetInt(DataLatencyProperty)) * time.Minute
	s.tracker, err = watermark.NewTracker("", latency, s.clock, s.logger)
	return err
}

func (s *source) newHarvester(emitNext stream.EmitNext) (*harvest.Harvester, error) {
	return harvest.New(harvest.Config{
		Table:     s.table,
		IdleDelay: time.Duration(s.ctx.Properties().GetInt(IdleDelayProperty)) * time.Second,
	}, s.store, s.tracker, emitNext, s.logger,
		harvest.WithClock(s.clock),
		harvest.WithDecorator(harvest.SourceDecorator(s.ctx.Name(), s.table)))
}

func (s *source) Collect(emitNext stream.EmitNext) error {
	h, err := s.newHarvester(emitNext)
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

	s.append(s.clock.Now())
	go s.generate()
	return h.Start(s.ctx.Ctx())
}

func (s *source) generate() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.append(s.clock.Now())
		}
	}
}

//append partition the row by its own minute, the harvester holds that minute back until it has passed.
//RowKey is zero padded so later rows sort after earlier ones within a partition.
func (s *source) append(now time.Time) {
	sequence := s.sequence.Add(1)
	s.store.Append(s.table, query.Row{
		"PartitionKey":     watermark.Encode(now.Add(-s.lag)),
		"RowKey":           fmt.Sprintf("%010d", sequence),
		"Timestamp":        now.UTC().Format(time.RFC3339Nano),
		"Level":            float64(sequence%5 + 1),
		"Role":             "mock",
		"RoleInstance":     "mock_IN_0",
		"Message":          "generated row " + strconv.FormatUint(sequence, 10),
		"EventTickCount":   float64(now.Unix()),
		"DeploymentId":     "local",
		"PreciseTimeStamp": now.UTC().Format(time.RFC3339Nano),
	})
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

//Snapshot keeps the watermark so the runtime checkpoint path can be tried without a storage account.
func (s *source) Snapshot() ([]byte, error) {
	return []byte(s.tracker.Low()), nil
}

func (s *source) Restore(snapshot []byte) error {
	s.tracker.Restore(string(snapshot))
	return nil
}

func New() stream.Source {
	return &source{}
}

func init() {
	component.RegisterNewSourceFunc("mock", New)
}
