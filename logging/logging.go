package logging

import (
	"os"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// SubSystem tags every log line with the component it came from, so
// operators can filter router, pool, and validation noise independently.
type SubSystem string

const (
	PoC         SubSystem = "PoC"
	Nodes       SubSystem = "Nodes"
	Server      SubSystem = "Server"
	Consensus   SubSystem = "Consensus"
	Validation  SubSystem = "Validation"
	Config      SubSystem = "Config"
	ResultStore SubSystem = "ResultStore"
)

var logger atomic.Pointer[zerolog.Logger]

func init() {
	l := newLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	logger.Store(&l)
}

// Init reconfigures the global logger. Safe to call at any point; callers
// before Init get the env-derived default.
func Init(level string, format string) {
	l := newLogger(level, format)
	logger.Store(&l)
}

func newLogger(level string, format string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil && level != "" {
		lvl = parsed
	}

	var l zerolog.Logger
	if format == "console" {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		l = zerolog.New(os.Stderr)
	}
	return l.Level(lvl).With().Timestamp().Logger()
}

func Debug(msg string, subSystem SubSystem, keyvals ...interface{}) {
	emit(logger.Load().Debug(), msg, subSystem, keyvals)
}

func Info(msg string, subSystem SubSystem, keyvals ...interface{}) {
	emit(logger.Load().Info(), msg, subSystem, keyvals)
}

func Warn(msg string, subSystem SubSystem, keyvals ...interface{}) {
	emit(logger.Load().Warn(), msg, subSystem, keyvals)
}

func Error(msg string, subSystem SubSystem, keyvals ...interface{}) {
	emit(logger.Load().Error(), msg, subSystem, keyvals)
}

func emit(e *zerolog.Event, msg string, subSystem SubSystem, keyvals []interface{}) {
	e = e.Str("subsystem", string(subSystem))
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		switch v := keyvals[i+1].(type) {
		case string:
			e = e.Str(key, v)
		case error:
			if v != nil {
				e = e.Str(key, v.Error())
			}
		default:
			e = e.Interface(key, v)
		}
	}
	e.Msg(msg)
}
