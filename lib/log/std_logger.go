package log

import (
	"fmt"
	"tablestream/stream"
)

//StdLoggerWrapper adapt stream.Logger to the Print family expected by client libraries.
type StdLoggerWrapper struct {
	stream.Logger
}

func (l *StdLoggerWrapper) Print(v ...interface{}) {
	l.Logger.Debug(v...)
}

func (l *StdLoggerWrapper) Println(v ...interface{}) {
	l.Logger.Debug(fmt.Sprintln(v...))
}

func (l *StdLoggerWrapper) Printf(format string, args ...interface{}) {
	l.Logger.Debugf(format, args...)
}
