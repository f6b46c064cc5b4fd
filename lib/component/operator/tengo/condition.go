package tengo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"tablestream/stream"

	"github.com/d5/tengo/v2"
	"github.com/pkg/errors"
)

const matchVariable = "__match__"

var ErrNotBool = errors.New("condition result is not bool")

//Condition is a compiled tengo boolean expression over event.
type Condition struct {
	mutex    sync.Mutex
	compiled *tengo.Compiled
}

//NewCondition compile an expression such as `event.message.Level <= 2`.
func NewCondition(expression string) (*Condition, error) {
	script := tengo.NewScript([]byte(fmt.Sprintf("%s := (%s)", matchVariable, strings.TrimSpace(expression))))
	script.SetImports(modules())
	if err := script.Add("event", emptyEvent); err != nil {
		return nil, errors.WithMessage(err, "can't add event to condition")
	}
	compiled, err := script.Compile()
	if err != nil {
		return nil, errors.WithMessage(err, "can't compile condition")
	}
	return &Condition{compiled: compiled}, nil
}

func (c *Condition) Match(ctx context.Context, event *stream.Event) (bool, error) {
	object, err := toObject(event)
	if err != nil {
		return false, err
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err = c.compiled.Set("event", object); err != nil {
		return false, errors.WithMessage(err, "can't set event")
	}
	if err = c.compiled.RunContext(ctx); err != nil {
		return false, errors.WithMessage(err, "can't run condition")
	}
	match, ok := c.compiled.Get(matchVariable).Value().(bool)
	if !ok {
		return false, ErrNotBool
	}
	return match, nil
}
