package context

import (
	_c "context"
	"strings"
	"sync"
	"tablestream/stream"
)

type context struct {
	ctx    _c.Context
	v      stream.Properties
	cancel _c.CancelFunc
	kv     *sync.Map
	name   string
}

func (c *context) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *context) Cancel() {
	c.cancel()
}

func (c *context) Ctx() _c.Context {
	return c.ctx
}

func (c *context) Name() string {
	return c.name
}

//Named derive a child context, the properties sub tree is addressed by the dot separated value.
func (c *context) Named(value string) stream.Context {
	ctx, cancel := _c.WithCancel(c.ctx)
	name := value
	if c.name != "" {
		name = strings.Join([]string{c.name, value}, ".")
	}
	var v stream.Properties
	if c.v != nil {
		v = c.v
		for _, key := range strings.Split(value, ".") {
			if v = v.Sub(key); v == nil {
				break
			}
		}
	}
	//kv is shared by the whole tree
	return &context{v: v, ctx: ctx, cancel: cancel, name: name, kv: c.kv}
}

func (c *context) Properties() stream.Properties {
	return c.v
}

func (c *context) Store(key string, value interface{}) {
	c.kv.Store(key, value)
}

func (c *context) Load(key string) (interface{}, bool) {
	return c.kv.Load(key)
}

func New(ctx _c.Context, properties stream.Properties) stream.Context {
	parent, cancelFunc := _c.WithCancel(ctx)
	return &context{ctx: parent, v: properties, cancel: cancelFunc, name: "", kv: &sync.Map{}}
}
