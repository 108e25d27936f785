package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog and optionally mirrors error lines into an
// aggregating collector.
type Logger struct {
	zl        zerolog.Logger
	collector *LogCollector
}

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr, or a file path
	TimeFormat string
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		output = file
	}

	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: cfg.TimeFormat,
		}
	}

	zl := zerolog.New(output).
		With().
		Timestamp().
		CallerWithSkipFrameCount(4).
		Logger()

	return &Logger{zl: zl}, nil
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.emit(l.zl.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.emit(l.zl.Warn(), msg, fields) }

func (l *Logger) Error(msg string, fields ...Field) {
	l.emit(l.zl.Error(), msg, fields)
	l.collect("error", msg, fields)
}

func (l *Logger) emit(event *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		f.addTo(event)
	}
	event.Msg(msg)
}

// AddCollector routes subsequent error lines into an aggregating
// collector, replacing any previous one.
func (l *Logger) AddCollector(config *CollectionConfig) {
	if l.collector != nil {
		l.collector.Close()
	}
	l.collector = NewLogCollector(config)
}

func (l *Logger) RemoveCollector() {
	if l.collector != nil {
		l.collector.Close()
	}
}

func (l *Logger) collect(level, msg string, fields []Field) {
	if l.collector == nil {
		return
	}

	// caller of the Error method, two frames up
	_, file, line, ok := runtime.Caller(2)
	caller := "unknown"
	if ok {
		parts := strings.Split(file, "LevelScan")
		caller = fmt.Sprintf("%s:%d", parts[len(parts)-1], line)
	}

	fieldMap := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if err, isErr := f.Value.(error); isErr {
			fieldMap[f.Key] = err.Error()
			continue
		}
		fieldMap[f.Key] = f.Value
	}

	l.collector.AddLog(level, msg, fieldMap, caller)
}

// Field is one structured key/value pair. The zerolog accessor is
// picked by value type when the field is written.
type Field struct {
	Key   string
	Value interface{}
}

func (f Field) addTo(event *zerolog.Event) {
	switch v := f.Value.(type) {
	case string:
		event.Str(f.Key, v)
	case int:
		event.Int(f.Key, v)
	case int64:
		event.Int64(f.Key, v)
	case float64:
		event.Float64(f.Key, v)
	case bool:
		event.Bool(f.Key, v)
	case error:
		event.Err(v)
	default:
		event.Interface(f.Key, v)
	}
}

func String(key, value string) Field { return Field{key, value} }

func Int(key string, value int) Field { return Field{key, value} }

func Int64(key string, value int64) Field { return Field{key, value} }

func Float64(key string, value float64) Field { return Field{key, value} }

func Bool(key string, value bool) Field { return Field{key, value} }

func Error(err error) Field { return Field{"error", err} }

func Any(key string, value interface{}) Field { return Field{key, value} }

// Duration logs as whole milliseconds.
func Duration(key string, value time.Duration) Field {
	return Field{key, int(value / time.Millisecond)}
}

func Strings(key string, value []string) Field {
	return Field{key, strings.Join(value, ", ")}
}
