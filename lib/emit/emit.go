package emit

import (
	"tablestream/stream"

	"github.com/pkg/errors"
)

var ErrUnknownSelector = errors.New("unknown emit selector")

var (
	emitNextGeneratorMap = map[string]stream.NewEmitNextGeneratorFunc{}
)

func RegisterEmitNextGeneratorFunc(name string, emitNextGeneratorFunc stream.NewEmitNextGeneratorFunc) {
	emitNextGeneratorMap[name] = emitNextGeneratorFunc
}

func NewEmitNextGeneratorFunc(name string) (stream.NewEmitNextGeneratorFunc, error) {
	if f, ok := emitNextGeneratorMap[name]; ok {
		return f, nil
	}
	return nil, errors.WithMessage(ErrUnknownSelector, name)
}
