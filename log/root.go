package log

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	gethlog "github.com/ethereum/go-ethereum/log"
	"golang.org/x/term"
)

const (
	Translate = "translate" // section and instruction translation
	Frep      = "frep"      // FREP sequencer
	Opt       = "opt"       // IR optimizer
	JIT       = "jit"       // closure compiler
	Engine    = "engine"    // cluster setup, hart spawn and join
	Runtime   = "runtime"   // helpers called from translated code
	Memory    = "memory"    // slow-path memory and MMIO
	SSR       = "ssr"       // stream registers
	DMA       = "dma"       // DMA engine
	Loader    = "loader"    // ELF loading and preload
)

var root atomic.Value

func init() {
	root.Store(NewLogger(gethlog.DiscardHandler()))
}

func ParseLevel(lvl string) (slog.Level, error) {
	switch strings.ToUpper(lvl) {
	case "MAX", "MAXVERBOSITY":
		return levelMaxVerbosity, nil
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "CRIT", "CRITICAL":
		return LevelCrit, nil
	default:
		return 0, fmt.Errorf("invalid level: %s", lvl)
	}
}

// InitLogger installs a terminal handler on stderr at the given level.
func InitLogger(logLevel string) error {
	logLvl, err := ParseLevel(logLevel)
	if err != nil {
		return err
	}
	useColor := term.IsTerminal(int(os.Stderr.Fd()))
	SetDefault(NewLogger(gethlog.NewTerminalHandlerWithLevel(os.Stderr, logLvl, useColor)))
	return nil
}

// SetDefault sets the default global logger
func SetDefault(l Logger) {
	root.Store(l)
	if lg, ok := l.(*logger); ok {
		slog.SetDefault(lg.inner)
	}
}

// Root returns the root logger
func Root() Logger {
	return root.Load().(Logger)
}

func initModules(moduleList []string, enabled []string) map[string]bool {
	moduleMap := make(map[string]bool, len(moduleList))
	for _, module := range moduleList {
		moduleMap[module] = false
	}
	for _, module := range enabled {
		moduleMap[module] = true
	}
	return moduleMap
}

var defaultKnownModules = []string{Translate, Frep, Opt, JIT, Engine, Runtime, Memory, SSR, DMA, Loader}
var defaultModuleEnabled = []string{Engine, Loader}

var (
	moduleMu      sync.RWMutex
	moduleEnabled = initModules(defaultKnownModules, defaultModuleEnabled)
)

// EnableModule enables logging for the specified module.
func EnableModule(module string) {
	moduleMu.Lock()
	moduleEnabled[module] = true
	moduleMu.Unlock()
}

// DisableModule disables logging for the specified module.
func DisableModule(module string) {
	moduleMu.Lock()
	moduleEnabled[module] = false
	moduleMu.Unlock()
}

// KnownModules lists the module names accepted by EnableModule.
func KnownModules() []string {
	return append([]string(nil), defaultKnownModules...)
}

func isModuleEnabled(module string) bool {
	moduleMu.RLock()
	defer moduleMu.RUnlock()
	return moduleEnabled[module]
}

// Trace and Debug are dropped unless module is enabled.
func Trace(module string, msg string, ctx ...interface{}) {
	if isModuleEnabled(module) {
		Root().Write(LevelTrace, module, msg, ctx...)
	}
}

func Debug(module string, msg string, ctx ...interface{}) {
	if isModuleEnabled(module) {
		Root().Write(LevelDebug, module, msg, ctx...)
	}
}

func Info(module string, msg string, ctx ...interface{}) {
	Root().Write(LevelInfo, module, msg, ctx...)
}

func Warn(module string, msg string, ctx ...interface{}) {
	Root().Write(LevelWarn, module, msg, ctx...)
}

func Error(module string, msg string, ctx ...interface{}) {
	Root().Write(LevelError, module, msg, ctx...)
}

func RecordLogs() {
	Root().RecordLogs()
}

func RecordedLogs() []Record {
	return Root().RecordedLogs()
}
