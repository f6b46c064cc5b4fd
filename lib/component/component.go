package component

import (
	"fmt"
	"sort"
	"tablestream/stream"

	"github.com/pkg/errors"
)

var ErrUnknownComponent = fmt.Errorf("unknown component type")

var (
	sinkMap     = map[string]stream.NewSinkFunc{}
	sourceMap   = map[string]stream.NewSourceFunc{}
	operatorMap = map[string]stream.NewOperatorFunc{}
)

func RegisterNewSinkFunc(_type string, sinkFunc stream.NewSinkFunc) {
	sinkMap[_type] = sinkFunc
}

func RegisterNewSourceFunc(_type string, sourceFunc stream.NewSourceFunc) {
	sourceMap[_type] = sourceFunc
}

func RegisterNewOperatorFunc(_type string, operatorFunc stream.NewOperatorFunc) {
	operatorMap[_type] = operatorFunc
}

func NewSourceFunc(_type string) (stream.NewSourceFunc, error) {
	if f, ok := sourceMap[_type]; ok {
		return f, nil
	}
	return nil, errors.WithMessagef(ErrUnknownComponent, "source %q", _type)
}

func NewOperatorFunc(_type string) (stream.NewOperatorFunc, error) {
	if f, ok := operatorMap[_type]; ok {
		return f, nil
	}
	return nil, errors.WithMessagef(ErrUnknownComponent, "operator %q", _type)
}

func NewSinkFunc(_type string) (stream.NewSinkFunc, error) {
	if f, ok := sinkMap[_type]; ok {
		return f, nil
	}
	return nil, errors.WithMessagef(ErrUnknownComponent, "sink %q", _type)
}

func ListSourceDef() map[string]stream.PropertiesDef {
	sourceDefMap := map[string]stream.PropertiesDef{}
	for name, sourceFunc := range sourceMap {
		sourceDefMap[name] = sourceFunc().PropertiesDef()
	}
	return sourceDefMap
}

func ListOperatorDef() map[string]stream.PropertiesDef {
	operatorDefMap := map[string]stream.PropertiesDef{}
	for name, operatorFunc := range operatorMap {
		operatorDefMap[name] = operatorFunc().PropertiesDef()
	}
	return operatorDefMap
}

func ListSinkDef() map[string]stream.PropertiesDef {
	sinkDefMap := map[string]stream.PropertiesDef{}
	for name, sinkFunc := range sinkMap {
		sinkDefMap[name] = sinkFunc().PropertiesDef()
	}
	return sinkDefMap
}

//SortedNames return the keys of a def map in order, for stable output.
func SortedNames(defs map[string]stream.PropertiesDef) []string {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
