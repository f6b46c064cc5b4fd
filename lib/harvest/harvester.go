// Package harvest runs the poll loop that scans a table store window by window
// and emits every row once, advancing the watermark only from delivered rows.
package harvest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"tablestream/lib/harvest/query"
	"tablestream/lib/harvest/watermark"
	"tablestream/lib/metrics"
	"tablestream/stream"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

const (
	PartitionKey = "PartitionKey"
	TypeField    = "type"

	DefaultIdleDelay = 15 * time.Second
)

var quotes = strings.NewReplacer(`"`, "", "'", "")

type Config struct {
	Table string
	//Type tags every event, defaults to Table
	Type      string
	IdleDelay time.Duration
	//PageSize is passed to the store as a hint, 0 lets the store decide
	PageSize int32
	//PastQueriesCount is reserved for re-scanning previous windows, the loop doesn't read it
	PastQueriesCount int
}

type Option func(h *Harvester)

//WithClock replace the wall clock events are stamped with.
func WithClock(clock watermark.Clock) Option {
	return func(h *Harvester) { h.clock = clock }
}

//WithDecorator attach host metadata to every event before it is emitted.
func WithDecorator(decorate func(event *stream.Event)) Option {
	return func(h *Harvester) { h.decorate = decorate }
}

//WithCommitHook is called with every watermark the loop commits.
func WithCommitHook(hook func(watermark string)) Option {
	return func(h *Harvester) { h.onCommit = hook }
}

//SourceDecorator tag events with the emitting component, the table and the ingestion time.
func SourceDecorator(source, table string) func(event *stream.Event) {
	return func(event *stream.Event) {
		event.Meta["source"] = source
		event.Meta["table"] = table
		event.Meta["ingested"] = event.Time
	}
}

type Harvester struct {
	config   Config
	store    query.Store
	tracker  *watermark.Tracker
	emit     stream.EmitNext
	clock    watermark.Clock
	decorate func(event *stream.Event)
	onCommit func(watermark string)
	logger   stream.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(config Config, store query.Store, tracker *watermark.Tracker, emit stream.EmitNext, logger stream.Logger, options ...Option) (*Harvester, error) {
	if config.Table == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if store == nil {
		return nil, fmt.Errorf("table store is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("watermark tracker is required")
	}
	if emit == nil {
		return nil, fmt.Errorf("emit is required")
	}
	if config.Type == "" {
		config.Type = config.Table
	}
	if config.IdleDelay <= 0 {
		config.IdleDelay = DefaultIdleDelay
	}
	h := &Harvester{
		config:  config,
		store:   store,
		tracker: tracker,
		emit:    emit,
		clock:   watermark.SystemClock,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
	for _, option := range options {
		option(h)
	}
	return h, nil
}

//Filter build the scan filter of the window (low, high), both bounds exclusive.
func Filter(low, high string) string {
	return fmt.Sprintf("(PartitionKey gt '%s' and PartitionKey lt '%s')", quotes.Replace(low), quotes.Replace(high))
}

//Start run poll cycles until ctx is done or Stop is called. A scan in progress
//is never interrupted, the stop signal is checked between cycles. A store
//failure ends the loop and is returned.
func (h *Harvester) Start(ctx context.Context) error {
	h.logger.Infow("starting harvest.", "table", h.config.Table, "watermark", h.tracker.Low(), "idle", h.config.IdleDelay)
	for {
		if h.stopped(ctx) {
			h.logger.Infow("harvest stopped.", "table", h.config.Table, "watermark", h.tracker.Low())
			return nil
		}
		h.logger.Debugw("starting cycle.", "table", h.config.Table)
		if _, err := h.Cycle(context.WithoutCancel(ctx)); err != nil {
			return err
		}
		h.logger.Debugw("starting delay.", "table", h.config.Table, "idle", h.config.IdleDelay)
		h.sleep(ctx)
	}
}

//Stop ask the loop to exit at the top of the next cycle. A scan in progress
//completes, the idle delay in progress is cut short.
func (h *Harvester) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

//Watermark is the committed low watermark.
func (h *Harvester) Watermark() string {
	return h.tracker.Low()
}

//Cycle scan the window (watermark, now) once and return the number of rows emitted.
func (h *Harvester) Cycle(ctx context.Context) (int, error) {
	table := h.config.Table
	low, high := h.tracker.Low(), h.tracker.High()
	if low > high {
		h.logger.Debugw("watermark is in the future, will not run any query.", "low", low, "high", high)
		metrics.CyclesTotal.With(table, "inverted").Inc()
		return 0, nil
	}

	start := time.Now()
	q := query.New(h.store, table, Filter(low, high), low+"-"+high, h.top(), h.logger)
	q.Reset()

	var (
		count int
		//last is the key of the latest row, completed the key before it
		last, completed string
	)
	found, err := q.Run(ctx, func(row query.Row) {
		h.emit(h.newEvent(row))
		count++
		if key := cast.ToString(row[PartitionKey]); key != "" && key != last {
			completed, last = last, key
		}
	})
	metrics.CycleDurationSeconds.With(table).Observe(time.Since(start).Seconds())
	metrics.RowsTotal.With(table).Add(float64(count))

	if err != nil {
		//rows of the last partition may continue on the failed page, only keys followed by a greater one are complete
		h.commit(completed)
		h.logger.Errorw("an error occurred while querying.",
			"query", q.ID(), "filter", q.Filter(), "low", low, "high", high,
			"delivered", count, "watermark", h.tracker.Low(), "err", err)
		metrics.CyclesTotal.With(table, "failed").Inc()
		return count, errors.WithMessagef(err, "harvest %s", table)
	}

	h.logger.Debugw("cycle complete.", "query", q.ID(), "count", count)
	if !found {
		metrics.CyclesTotal.With(table, "empty").Inc()
		return 0, nil
	}
	h.commit(last)
	metrics.CyclesTotal.With(table, "rows").Inc()
	return count, nil
}

func (h *Harvester) commit(key string) {
	if !h.tracker.Commit(key) {
		return
	}
	metrics.LastCommitSeconds.With(h.config.Table).Set(float64(h.clock.Now().Unix()))
	if h.onCommit != nil {
		h.onCommit(key)
	}
}

func (h *Harvester) newEvent(row query.Row) *stream.Event {
	message := make(map[string]any, len(row)+1)
	for key, value := range row {
		message[key] = value
	}
	message[TypeField] = h.config.Type
	event := &stream.Event{Meta: map[string]any{}, Message: message, Time: h.clock.Now()}
	if h.decorate != nil {
		h.decorate(event)
	}
	return event
}

func (h *Harvester) top() *int32 {
	if h.config.PageSize <= 0 {
		return nil
	}
	top := h.config.PageSize
	return &top
}

func (h *Harvester) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-h.stopCh:
		return true
	default:
		return false
	}
}

func (h *Harvester) sleep(ctx context.Context) {
	timer := time.NewTimer(h.config.IdleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-h.stopCh:
	case <-timer.C:
	}
}
