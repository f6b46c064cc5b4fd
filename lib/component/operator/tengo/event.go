package tengo

import (
	"fmt"
	"tablestream/stream"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/pkg/errors"
)

var emptyEvent = &eventObject{
	Meta:    &tengo.Map{Value: map[string]tengo.Object{}},
	Message: tengo.UndefinedValue,
	Time:    &tengo.Time{Value: time.Time{}},
}

//eventObject exposes stream.Event to scripts as event.meta, event.message and event.time.
type eventObject struct {
	tengo.ObjectImpl
	Meta    *tengo.Map
	Message tengo.Object
	Time    *tengo.Time
}

func (e *eventObject) TypeName() string {
	return "event"
}

func (e *eventObject) String() string {
	return "<event>"
}

func (e *eventObject) IsFalsy() bool {
	return e.Message.IsFalsy() && e.Meta.IsFalsy() && e.Time.IsFalsy()
}

func (e *eventObject) IndexGet(index tengo.Object) (tengo.Object, error) {
	key, ok := tengo.ToString(index)
	if !ok {
		return nil, tengo.ErrInvalidIndexType
	}
	switch key {
	case "meta":
		return e.Meta, nil
	case "message":
		return e.Message, nil
	case "time":
		return e.Time, nil
	default:
		return tengo.UndefinedValue, fmt.Errorf("unknown key %s", key)
	}
}

func (e *eventObject) IndexSet(index, value tengo.Object) error {
	key, ok := tengo.ToString(index)
	if !ok {
		return tengo.ErrInvalidIndexType
	}
	switch key {
	case "meta":
		meta, ok := value.(*tengo.Map)
		if !ok {
			return fmt.Errorf("meta only support map, but received is %s", value.TypeName())
		}
		e.Meta = meta
	case "message":
		e.Message = value
	case "time":
		t, ok := value.(*tengo.Time)
		if !ok {
			return fmt.Errorf("time only support time, but received is %s", value.TypeName())
		}
		e.Time = t
	default:
		return fmt.Errorf("unknown key %s", key)
	}
	return nil
}

func (e *eventObject) toEvent() *stream.Event {
	meta := make(map[string]any, len(e.Meta.Value))
	for key, value := range e.Meta.Value {
		meta[key] = tengo.ToInterface(value)
	}
	return &stream.Event{Meta: meta, Message: tengo.ToInterface(e.Message), Time: e.Time.Value}
}

func toObject(event *stream.Event) (*eventObject, error) {
	message, err := tengo.FromInterface(event.Message)
	if err != nil {
		return nil, errors.WithMessage(err, "message can't convert to tengo type")
	}
	meta := make(map[string]tengo.Object, len(event.Meta))
	for key, value := range event.Meta {
		object, err := tengo.FromInterface(value)
		if err != nil {
			return nil, errors.WithMessagef(err, "meta %s can't convert to tengo type", key)
		}
		meta[key] = object
	}
	return &eventObject{
		Meta:    &tengo.Map{Value: meta},
		Message: message,
		Time:    &tengo.Time{Value: event.Time},
	}, nil
}
