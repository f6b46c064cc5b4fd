// Package watermark encodes wall-clock time into the sortable partition keys
// diagnostics tables are written with, and tracks the low watermark of a
// harvest: the exclusive lower bound of the next scan window.
package watermark

import (
	"strconv"
	"sync"
	"tablestream/stream"
	"time"

	"github.com/pkg/errors"
)

const (
	ticksPerSecond = 10_000_000
	//DefaultDataLatency tolerates the store's own ingestion delay.
	DefaultDataLatency = time.Minute
	//lookBack is added on top of the data latency for the default start.
	lookBack = 60 * time.Second
)

var (
	ErrInvalidTimeInput = errors.New("invalid time input")
	ErrArgument         = errors.New("invalid argument")

	//ticksAtEpoch is the tick count of 0001-01-01T00:00:00Z relative to the unix epoch.
	ticksAtEpoch = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC).Unix() * ticksPerSecond
)

//Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

var SystemClock Clock = ClockFunc(time.Now)

//Encode convert t into a partition key: seconds are zeroed, the remainder is
//counted in 100ns ticks since year 1 and prefixed with "0".
func Encode(t time.Time) string {
	t = t.Add(-time.Duration(t.Second()) * time.Second)
	ticks := t.Unix()*ticksPerSecond - ticksAtEpoch
	return "0" + strconv.FormatInt(ticks, 10)
}

//Parse read an ISO-8601 timestamp.
func Parse(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.WithMessage(ErrInvalidTimeInput, "empty time")
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.WithMessagef(ErrInvalidTimeInput, "can't parse %q", value)
}

//Tracker holds the low watermark. It is written by a single harvest loop,
//the mutex only protects readers taking snapshots.
type Tracker struct {
	mutex       sync.RWMutex
	low         string
	clock       Clock
	dataLatency time.Duration
	logger      stream.Logger
}

//NewTracker start from startTimeUTC, or from now - dataLatency - 60s when it is
//empty or can't be parsed.
func NewTracker(startTimeUTC string, dataLatency time.Duration, clock Clock, logger stream.Logger) (*Tracker, error) {
	if clock == nil {
		return nil, errors.WithMessage(ErrArgument, "clock can't be nil")
	}
	if dataLatency < 0 {
		return nil, errors.WithMessagef(ErrArgument, "data latency %s is negative", dataLatency)
	}
	t := &Tracker{clock: clock, dataLatency: dataLatency, logger: logger}
	t.low = t.EncodeOrDefault(startTimeUTC)
	return t, nil
}

//Default is the start time used when none is configured.
func (t *Tracker) Default() time.Time {
	return t.clock.Now().Add(-t.dataLatency - lookBack)
}

//EncodeOrDefault encode an ISO-8601 time, falling back to Default on invalid input.
func (t *Tracker) EncodeOrDefault(value string) string {
	parsed, err := Parse(value)
	if err != nil {
		if value == "" {
			t.logger.Debugw("no start time, use default.", "latency", t.dataLatency)
		} else {
			t.logger.Errorw("invalid start time, use default.", "value", value, "err", err)
		}
		parsed = t.Default()
	}
	return Encode(parsed)
}

//High is the exclusive upper bound of a window scanned now.
func (t *Tracker) High() string {
	return Encode(t.clock.Now())
}

func (t *Tracker) Low() string {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.low
}

//Commit advance the watermark to key, keys not greater than the current one are ignored.
func (t *Tracker) Commit(key string) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if key == "" || key <= t.low {
		return false
	}
	t.low = key
	return true
}

//Restore replace the watermark with a previously committed one.
func (t *Tracker) Restore(key string) {
	if key == "" {
		return
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.low = key
}
