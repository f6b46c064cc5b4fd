package tengo

import (
	"tablestream/lib/harvest/watermark"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
)

//tableModule is imported by scripts as `table := import("table")`.
var tableModule = map[string]tengo.Object{
	"partition_key": &tengo.UserFunction{Name: "partition_key", Value: partitionKey},
	"parse_time":    &tengo.UserFunction{Name: "parse_time", Value: parseTime},
}

func modules() *tengo.ModuleMap {
	m := stdlib.GetModuleMap(stdlib.AllModuleNames()...)
	m.AddBuiltinModule("table", tableModule)
	return m
}

func toTime(arg tengo.Object) (time.Time, error) {
	switch v := arg.(type) {
	case *tengo.Time:
		return v.Value, nil
	case *tengo.String:
		return watermark.Parse(v.Value)
	default:
		return time.Time{}, tengo.ErrInvalidArgumentType{Name: "first", Expected: "time(compatible)", Found: arg.TypeName()}
	}
}

//partitionKey encode a time or an ISO-8601 string the way row partitions are keyed.
func partitionKey(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 1 {
		return nil, tengo.ErrWrongNumArguments
	}
	t, err := toTime(args[0])
	if err != nil {
		return wrapError(err), nil
	}
	return &tengo.String{Value: watermark.Encode(t)}, nil
}

func parseTime(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 1 {
		return nil, tengo.ErrWrongNumArguments
	}
	t, err := toTime(args[0])
	if err != nil {
		return wrapError(err), nil
	}
	return &tengo.Time{Value: t}, nil
}

func wrapError(err error) tengo.Object {
	return &tengo.Error{Value: &tengo.String{Value: err.Error()}}
}
