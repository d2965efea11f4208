package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Logger is a zerolog logger carrying the service name and any fields bound
// with WithComponent, WithFields or WithError.
type Logger struct {
	zl      zerolog.Logger
	service string
}

// New builds a logger from cfg. An unknown level falls back to info. The
// level is applied process-wide, as zerolog filters globally.
func New(cfg *Config, serviceName string) *Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return build(cfg, serviceName, outputWriter(cfg.Output))
}

// NewWithWriter builds a JSON logger on w, for capturing output in tests.
func NewWithWriter(w io.Writer, serviceName string) *Logger {
	return build(&Config{Format: "json"}, serviceName, w)
}

// NewDefault is an info-level console logger on stdout.
func NewDefault(serviceName string) *Logger {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return New(cfg, serviceName)
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop(), service: "nop"}
}

func build(cfg *Config, serviceName string, out io.Writer) *Logger {
	var zc zerolog.Context
	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		zc = zerolog.New(consoleWriter(cfg, serviceName, out)).With()
	default:
		zc = zerolog.New(out).With().Str("service", serviceName)
	}
	if cfg.Timestamp {
		zc = zc.Timestamp()
	}
	if cfg.Caller {
		zc = zc.Caller()
	}
	return &Logger{zl: zc.Logger(), service: serviceName}
}

func (l *Logger) with(zc zerolog.Context) *Logger {
	return &Logger{zl: zc.Logger(), service: l.service}
}

// WithComponent tags every entry with the component name.
func (l *Logger) WithComponent(name string) *Logger {
	return l.with(l.zl.With().Str(FieldComponent, name))
}

// WithFields binds fields to every entry, e.g. a session's id and peer.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return l.with(l.zl.With().Fields(fields))
}

// WithError binds err under the "error" key.
func (l *Logger) WithError(err error) *Logger {
	return l.with(l.zl.With().Err(err))
}

func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	emit(l.zl.Debug(), msg, fields)
}

func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	emit(l.zl.Info(), msg, fields)
}

func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	emit(l.zl.Warn(), msg, fields)
}

func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	emit(l.zl.Error(), msg, fields)
}

// Fatal logs and exits with status 1.
func (l *Logger) Fatal(msg string, fields ...map[string]interface{}) {
	emit(l.zl.Fatal(), msg, fields)
}

func emit(e *zerolog.Event, msg string, fields []map[string]interface{}) {
	for _, f := range fields {
		e = e.Fields(f)
	}
	e.Msg(msg)
}

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// Init replaces the global logger with one built from cfg.
func Init(cfg *Config) {
	cfg.ApplyDefaults()
	name := cfg.ServiceName
	if name == "" {
		name = "default"
	}
	SetGlobalLogger(New(cfg, name))
}

// SetGlobalLogger replaces the global logger.
func SetGlobalLogger(l *Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// GetGlobalLogger returns the global logger, creating a default one on first
// use.
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = NewDefault("default")
	}
	return globalLogger
}

func Debug(msg string, fields ...map[string]interface{}) { GetGlobalLogger().Debug(msg, fields...) }
func Info(msg string, fields ...map[string]interface{})  { GetGlobalLogger().Info(msg, fields...) }
func Warn(msg string, fields ...map[string]interface{})  { GetGlobalLogger().Warn(msg, fields...) }
func Error(msg string, fields ...map[string]interface{}) { GetGlobalLogger().Error(msg, fields...) }
func Fatal(msg string, fields ...map[string]interface{}) { GetGlobalLogger().Fatal(msg, fields...) }

// WithComponent tags the global logger.
func WithComponent(name string) *Logger {
	return GetGlobalLogger().WithComponent(name)
}

func outputWriter(output string) io.Writer {
	switch strings.ToLower(output) {
	case "stderr":
		return os.Stderr
	case "discard":
		return io.Discard
	default:
		return os.Stdout
	}
}

// Level tags as {colored, plain}.
var levelTags = map[string][2]string{
	"TRACE": {"\033[90m[TRC]\033[0m", "[TRC]"},
	"DEBUG": {"\033[36m[DBG]\033[0m", "[DBG]"},
	"INFO":  {"\033[32m[INF]\033[0m", "[INF]"},
	"WARN":  {"\033[33m[WRN]\033[0m", "[WRN]"},
	"ERROR": {"\033[31m[ERR]\033[0m", "[ERR]"},
	"FATAL": {"\033[35m[FTL]\033[0m", "[FTL]"},
}

// consoleWriter prefixes each line with a three-letter service tag, so the
// server and the watcher are told apart when their output is interleaved.
func consoleWriter(cfg *Config, serviceName string, out io.Writer) zerolog.ConsoleWriter {
	prefix := ""
	if len(serviceName) >= 3 && serviceName != "default" {
		prefix = "[" + strings.ToUpper(serviceName[:3]) + "]"
		if !cfg.NoColor {
			prefix = "\033[34m" + prefix + "\033[0m"
		}
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05",
		NoColor:    cfg.NoColor,
		FormatLevel: func(i interface{}) string {
			lvl := strings.ToUpper(fmt.Sprint(i))
			tag := "[" + lvl + "]"
			if tags, ok := levelTags[lvl]; ok {
				tag = tags[1]
				if !cfg.NoColor {
					tag = tags[0]
				}
			}
			return prefix + tag
		},
		FormatFieldName: func(i interface{}) string {
			return fmt.Sprint(i) + ":"
		},
	}
}
