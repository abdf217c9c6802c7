package log

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"time"
)

const (
	levelMaxVerbosity slog.Level = math.MinInt
	LevelTrace        slog.Level = -8
	LevelDebug                   = slog.LevelDebug
	LevelInfo                    = slog.LevelInfo
	LevelWarn                    = slog.LevelWarn
	LevelError                   = slog.LevelError
	LevelCrit         slog.Level = 12
)

func levelName(l slog.Level) string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelCrit:
		return "crit"
	}
	return "unknown"
}

// Logger emits records tagged with the simulator module that produced them.
type Logger interface {
	Write(level slog.Level, module string, msg string, attrs ...any)
	Enabled(ctx context.Context, level slog.Level) bool

	// RecordLogs starts keeping a copy of every emitted record, including
	// those below the handler's level.
	RecordLogs()
	RecordedLogs() []Record
}

// Record is a kept copy of an emitted log line.
type Record struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Module  string    `json:"module"`
	Message string    `json:"msg"`
}

type recorder struct {
	mu      sync.Mutex
	enabled bool
	records []Record
}

func (r *recorder) keep(level slog.Level, module, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enabled {
		r.records = append(r.records, Record{Time: time.Now(), Level: levelName(level), Module: module, Message: msg})
	}
}

type logger struct {
	inner *slog.Logger
	rec   *recorder
}

// NewLogger wraps h.
func NewLogger(h slog.Handler) Logger {
	return &logger{inner: slog.New(h), rec: &recorder{}}
}

func (l *logger) Write(level slog.Level, module string, msg string, attrs ...any) {
	l.rec.keep(level, module, msg)
	ctx := context.Background()
	if !l.inner.Enabled(ctx, level) {
		return
	}
	// skip runtime.Callers, Write and the package-level wrapper
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	if module != "" {
		r.AddAttrs(slog.String("module", module))
	}
	r.Add(attrs...)
	_ = l.inner.Handler().Handle(ctx, r)
}

func (l *logger) Enabled(ctx context.Context, level slog.Level) bool {
	return l.inner.Enabled(ctx, level)
}

func (l *logger) RecordLogs() {
	l.rec.mu.Lock()
	l.rec.enabled = true
	l.rec.records = l.rec.records[:0]
	l.rec.mu.Unlock()
}

func (l *logger) RecordedLogs() []Record {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	return append([]Record(nil), l.rec.records...)
}
