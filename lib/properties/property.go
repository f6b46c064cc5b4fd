package properties

import (
	"reflect"
	"tablestream/stream"
)

type property[T any] struct {
	name        string
	description string
	_default    interface{}
	secret      bool
	_t          T
}

func (p *property[T]) Required() bool {
	return p._default == nil
}

func (p *property[T]) Name() string {
	return p.name
}

func (p *property[T]) Description() string {
	return p.description
}

func (p *property[T]) Default() interface{} {
	return p._default
}

func (p *property[T]) Secret() bool {
	return p.secret
}

func (p *property[T]) Type() string {
	return reflect.TypeOf(&p._t).Elem().String()
}

func NewProperty[T any](name, description string, _default T) stream.Property {
	return &property[T]{
		name:        name,
		description: description,
		_default:    _default,
	}
}

func NewRequiredProperty[T any](name, description string) stream.Property {
	return &property[T]{
		name:        name,
		description: description,
	}
}

//NewSecretProperty is an optional property whose value is masked when rendered.
func NewSecretProperty(name, description string) stream.Property {
	return &property[string]{
		name:        name,
		description: description,
		_default:    "",
		secret:      true,
	}
}
