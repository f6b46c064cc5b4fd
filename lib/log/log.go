package log

import (
	"os"
	"sync"
	"tablestream/stream"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type OutputEncoder string

const (
	ConsoleOutputEncoder OutputEncoder = "console"
	JSONOutputEncoder    OutputEncoder = "json"
)

type Options struct {
	level   zapcore.Level
	encoder OutputEncoder
}

func DefaultOptions() *Options {
	return &Options{level: zapcore.InfoLevel, encoder: ConsoleOutputEncoder}
}

func (o *Options) WithOutputEncoder(encoder OutputEncoder) *Options {
	o.encoder = encoder
	return o
}

//WithLevel accepts zap level names, unknown names keep the current level.
func (o *Options) WithLevel(level string) *Options {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err == nil {
		o.level = l
	}
	return o
}

var (
	mutex sync.RWMutex
	root  = zap.NewNop().Sugar()
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

//Setup replace the root logger, loggers created before keep their old core.
func Setup(options *Options) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	var encoder zapcore.Encoder
	switch options.encoder {
	case JSONOutputEncoder:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}
	level.SetLevel(options.level)
	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)

	mutex.Lock()
	defer mutex.Unlock()
	root = zap.New(core, zap.AddCaller()).Sugar()
}

//SetLevel change the level of every logger created by Setup.
func SetLevel(lvl string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(lvl)); err == nil {
		level.SetLevel(l)
	}
}

func Named(name string) stream.Logger {
	mutex.RLock()
	defer mutex.RUnlock()
	return root.Named(name)
}

//Ctx return a logger named after the component path.
func Ctx(ctx stream.Context) stream.Logger {
	if ctx.Name() == "" {
		return Named("runtime")
	}
	return Named(ctx.Name())
}

//Nop discards everything, for tests.
func Nop() stream.Logger {
	return zap.NewNop().Sugar()
}
