// Package log provides the structured, leveled logger shared by every
// registrar, tallyer, arbiter and voter process.
package log

import (
	"bytes"
	"cmp"
	"fmt"
	"io"
	"os"
	"path"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	timeFormat = "2006-01-02T15:04:05.000Z07:00"
)

var (
	logger zerolog.Logger
	mu     sync.RWMutex

	// panicOnInvalidChars makes the logger panic when a formatted message
	// contains the Unicode replacement character, which usually indicates a
	// fmt verb/argument mismatch upstream. Controlled by $LOG_PANIC_ON_INVALIDCHARS.
	panicOnInvalidChars = os.Getenv("LOG_PANIC_ON_INVALIDCHARS") == "true"
)

func init() {
	Init(cmp.Or(os.Getenv("LOG_LEVEL"), "error"), "stderr", nil)
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func replace(l zerolog.Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

var logTestWriter io.Writer

const logTestWriterName = "log_test_writer"

var logTestTime, _ = time.Parse(timeFormat, "2006-01-02T15:04:05.000Z")

type invalidCharWriter struct{}

func (*invalidCharWriter) Write(p []byte) (int, error) {
	if bytes.ContainsRune(p, '�') {
		panic(fmt.Sprintf("log line with invalid chars: %q", string(p)))
	}
	return len(p), nil
}

// Init (re)configures the global logger. output is one of "stdout",
// "stderr", or a file path; level is one of LogLevelDebug/Info/Warn/Error.
func Init(level, output string, errorOutput io.Writer) {
	var out io.Writer
	var extra []io.Writer

	switch output {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	case logTestWriterName:
		out = logTestWriter
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			panic(fmt.Sprintf("log: cannot open output %q: %v", output, err))
		}
		out = f
		if strings.HasSuffix(output, ".json") {
			extra = append(extra, f)
			out = os.Stdout
		}
	}

	writers := append([]io.Writer{zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}}, extra...)
	if errorOutput != nil {
		writers = append(writers, &errorOnlyWriter{zerolog.ConsoleWriter{
			Out:        errorOutput,
			TimeFormat: timeFormat,
			NoColor:    true,
		}})
	}
	if panicOnInvalidChars {
		writers = append(writers, zerolog.ConsoleWriter{Out: &invalidCharWriter{}})
	}

	var sink io.Writer = writers[0]
	if len(writers) > 1 {
		sink = zerolog.MultiLevelWriter(writers...)
	}

	l := zerolog.New(sink).With().Timestamp().Logger()
	if output == logTestWriterName {
		zerolog.TimestampFunc = func() time.Time { return logTestTime }
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	zerolog.CallerSkipFrameCount = 3
	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		return fmt.Sprintf("%s/%s:%d", path.Base(path.Dir(file)), path.Base(file), line)
	}
	l = l.With().Caller().Logger()

	switch level {
	case LogLevelDebug:
		l = l.Level(zerolog.DebugLevel)
	case LogLevelInfo:
		l = l.Level(zerolog.InfoLevel)
	case LogLevelWarn:
		l = l.Level(zerolog.WarnLevel)
	case LogLevelError:
		l = l.Level(zerolog.ErrorLevel)
	default:
		panic(fmt.Sprintf("log: invalid level %q", level))
	}

	replace(l)
	l.Info().Msgf("logger ready at level %s, output %s", level, output)
}

type errorOnlyWriter struct {
	io.Writer
}

var _ zerolog.LevelWriter = &errorOnlyWriter{}

func (*errorOnlyWriter) Write(_ []byte) (int, error) {
	panic("errorOnlyWriter: Write called directly, expected WriteLevel")
}

func (w *errorOnlyWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.WarnLevel {
		return len(p), nil
	}
	return w.Writer.Write(p)
}

// Level returns the current log level.
func Level() string {
	switch l := current().GetLevel(); l {
	case zerolog.DebugLevel:
		return LogLevelDebug
	case zerolog.InfoLevel:
		return LogLevelInfo
	case zerolog.WarnLevel:
		return LogLevelWarn
	case zerolog.ErrorLevel:
		return LogLevelError
	default:
		panic(fmt.Sprintf("log: invalid level %v", l))
	}
}

func Debug(args ...any) {
	l := current()
	if l.GetLevel() > zerolog.DebugLevel {
		return
	}
	l.Debug().Msg(fmt.Sprint(args...))
}

func Info(args ...any) {
	current().Info().Msg(fmt.Sprint(args...))
}

func Warn(args ...any) {
	current().Warn().Msg(fmt.Sprint(args...))
}

func Error(args ...any) {
	current().Error().Msg(fmt.Sprint(args...))
}

func Fatal(args ...any) {
	current().Fatal().Msg(fmt.Sprint(args...) + "\n" + string(debug.Stack()))
	panic("unreachable")
}

func Debugf(template string, args ...any) {
	current().Debug().Msgf(template, args...)
}

func Infof(template string, args ...any) {
	current().Info().Msgf(template, args...)
}

func Warnf(template string, args ...any) {
	current().Warn().Msgf(template, args...)
}

func Errorf(template string, args ...any) {
	current().Error().Msgf(template, args...)
}

func Fatalf(template string, args ...any) {
	current().Fatal().Msgf(template+"\n"+string(debug.Stack()), args...)
}

func Debugw(msg string, keyvalues ...any) {
	current().Debug().Fields(keyvalues).Msg(msg)
}

func Infow(msg string, keyvalues ...any) {
	current().Info().Fields(keyvalues).Msg(msg)
}

func Warnw(msg string, keyvalues ...any) {
	current().Warn().Fields(keyvalues).Msg(msg)
}

func Errorw(err error, msg string) {
	current().Error().Err(err).Msg(msg)
}
