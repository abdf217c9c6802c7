// Package engine drives a simulation: it translates the binary once per
// cluster, optimizes and compiles the result, and runs every hart on its
// own goroutine.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/colorfulnotion/clustersim/config"
	"github.com/colorfulnotion/clustersim/ir"
	"github.com/colorfulnotion/clustersim/jit"
	"github.com/colorfulnotion/clustersim/log"
	"github.com/colorfulnotion/clustersim/machine"
	"github.com/colorfulnotion/clustersim/performance"
	"github.com/colorfulnotion/clustersim/program"
	"github.com/colorfulnotion/clustersim/simerrors"
	"github.com/colorfulnotion/clustersim/telemetry"
	"github.com/colorfulnotion/clustersim/trace"
	"github.com/colorfulnotion/clustersim/translate"
)

// ErrorStatus is the process status of a run that hit a runtime error.
const ErrorStatus = 1

type Options struct {
	// DumpIR prints every module to Dump after optimization.
	DumpIR bool
	Dump   io.Writer
	// EmitText and EmitBitcode are output paths; empty means no output.
	EmitText    string
	EmitBitcode string
	// DryRun stops after translation.
	DryRun bool

	NoOptimize bool
	// Generic turns off operand specialisation in the JIT.
	Generic bool
	Codegen ir.Options

	Trace      bool
	TraceOut   io.Writer
	TraceJSONL string
	Latency    bool

	// Output receives console (uart) output; nil means stdout.
	Output    io.Writer
	Telemetry *telemetry.TelemetryClient
}

// DefaultOptions returns options for a plain run.
func DefaultOptions() Options {
	return Options{Codegen: ir.DefaultOptions()}
}

// Engine runs one binary under one configuration.
type Engine struct {
	cfg  *config.Config
	opts Options
	tel  *telemetry.TelemetryClient

	programs []*jit.Program
	report   *performance.Report

	// Global is the machine of the last run.
	Global *machine.Global
}

func New(cfg *config.Config, opts Options) *Engine {
	e := &Engine{cfg: cfg, opts: opts, tel: opts.Telemetry, report: &performance.Report{}}
	if e.tel == nil {
		e.tel = telemetry.NewNoOpTelemetryClient()
	}
	if e.opts.Dump == nil {
		e.opts.Dump = os.Stdout
	}
	if e.opts.TraceOut == nil {
		e.opts.TraceOut = os.Stdout
	}
	return e
}

// Report returns the statistics gathered so far.
func (e *Engine) Report() *performance.Report { return e.report }

// Execute loads the ELF at path, compiles it and runs it. It returns the
// process exit status.
func (e *Engine) Execute(ctx context.Context, path string) (int, error) {
	_, end := e.tel.Phase(ctx, telemetry.PhaseLoad)
	bin, err := program.Load(path)
	end(err)
	if err != nil {
		return ErrorStatus, err
	}
	e.report.Binary = filepath.Base(path)
	if err := e.Compile(ctx, bin); err != nil {
		return ErrorStatus, err
	}
	if e.opts.DryRun {
		return 0, nil
	}
	return e.Run(ctx, bin)
}

// Compile translates bin for every cluster. Unless the run is dry it also
// optimizes and JIT-compiles each module.
func (e *Engine) Compile(ctx context.Context, bin *program.Binary) error {
	e.programs = e.programs[:0]
	e.report.Clusters = e.report.Clusters[:0]
	for i := 0; i < e.cfg.NumClusters; i++ {
		if err := e.compileCluster(ctx, bin, i); err != nil {
			return fmt.Errorf("cluster %d: %w", i, err)
		}
	}
	return nil
}

func (e *Engine) compileCluster(ctx context.Context, bin *program.Binary, cluster int) error {
	stats := &performance.ClusterStats{Cluster: cluster}
	e.report.Clusters = append(e.report.Clusters, stats)

	m := ir.NewModule(fmt.Sprintf("cluster%d", cluster))
	tr := translate.New(e.cfg, cluster, translate.Options{Trace: e.tracing(), Latency: e.opts.Latency})
	_, end := e.tel.Phase(ctx, telemetry.PhaseTranslate, telemetry.Cluster(cluster))
	start := time.Now()
	err := tr.Translate(m, bin)
	if err == nil {
		if verr := ir.Verify(m); verr != nil {
			err = fmt.Errorf("%v: %w", verr, simerrors.ErrVerifyFailed)
		}
	}
	stats.TranslateTime = time.Since(start)
	stats.Translate = tr.Stats
	end(err)
	if err != nil {
		return err
	}
	if e.opts.DryRun {
		return e.emit(m, cluster)
	}

	if !e.opts.NoOptimize {
		_, end = e.tel.Phase(ctx, telemetry.PhaseOptimize, telemetry.Cluster(cluster))
		start = time.Now()
		stats.Optimize = ir.Optimize(m, e.opts.Codegen)
		stats.OptimizeTime = time.Since(start)
		end(nil)
		if e.opts.Codegen.PrintAfterOpt {
			if err := ir.WriteText(e.opts.Dump, m); err != nil {
				return err
			}
		}
	}
	if e.opts.DumpIR {
		if err := ir.WriteText(e.opts.Dump, m); err != nil {
			return err
		}
	}
	if err := e.emit(m, cluster); err != nil {
		return err
	}

	_, end = e.tel.Phase(ctx, telemetry.PhaseJIT, telemetry.Cluster(cluster))
	p, err := jit.Compile(m, jit.Options{Generic: e.opts.Generic})
	end(err)
	if err != nil {
		return fmt.Errorf("%v: %w", err, simerrors.ErrJITFailed)
	}
	stats.JIT = p.Stats
	stats.JITTime = p.Stats.Elapsed
	e.programs = append(e.programs, p)
	log.Info(log.JIT, "compiled cluster", "cluster", cluster, "blocks", p.Stats.Blocks, "steps", p.Stats.Steps,
		"elapsed", p.Stats.Elapsed)
	return nil
}

// emitPath returns path for cluster 0 and inserts ".clusterN" before the
// extension for the others.
func (e *Engine) emitPath(path string, cluster int) string {
	if cluster == 0 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s.cluster%d%s", strings.TrimSuffix(path, ext), cluster, ext)
}

func (e *Engine) emit(m *ir.Module, cluster int) error {
	write := func(path string, w func(io.Writer, *ir.Module) error) error {
		if path == "" {
			return nil
		}
		path = e.emitPath(path, cluster)
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := w(f, m); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
		log.Debug(log.Engine, "wrote module", "cluster", cluster, "path", path)
		return f.Close()
	}
	if err := write(e.opts.EmitText, ir.WriteText); err != nil {
		return err
	}
	return write(e.opts.EmitBitcode, ir.WriteBitcode)
}

// Run executes the compiled programs on a fresh machine and returns the
// exit status.
func (e *Engine) Run(ctx context.Context, bin *program.Binary) (int, error) {
	if len(e.programs) != e.cfg.NumClusters {
		return ErrorStatus, fmt.Errorf("run before compile: %w", simerrors.ErrJITFailed)
	}
	var mopts []machine.Option
	if e.opts.Output != nil {
		mopts = append(mopts, machine.WithOutput(e.opts.Output))
	}
	tracer, err := e.tracer()
	if err != nil {
		return ErrorStatus, err
	}
	if tracer != nil {
		defer tracer.Close()
		mopts = append(mopts, machine.WithTracer(tracer))
	}
	mopts = append(mopts, machine.WithLatency(e.opts.Latency))
	g := machine.NewGlobal(e.cfg, mopts...)
	e.Global = g
	words := bin.Preload(g.Preload)
	log.Debug(log.Loader, "preloaded image", "words", words)

	for _, c := range g.Clusters {
		for core := 0; core < e.cfg.NumCores; core++ {
			c.AddHart(core, bin.Entry)
		}
	}

	ctx, end := e.tel.Phase(ctx, telemetry.PhaseRun)
	start := time.Now()
	var eg errgroup.Group
	for ci, c := range g.Clusters {
		p := e.programs[ci]
		for _, h := range c.Harts {
			h := h
			eg.Go(func() error {
				_, endHart := e.tel.Phase(ctx, telemetry.PhaseRun, telemetry.Hart(h.ID))
				err := p.Run(h, translate.FuncName)
				h.Exit()
				endHart(err)
				return err
			})
		}
	}
	runErr := eg.Wait()
	e.report.RunTime = time.Since(start)
	e.report.AddHarts(g)
	end(runErr)

	status := g.ExitStatus()
	if g.HadError.Load() {
		status = ErrorStatus
	}
	e.report.ExitStatus = status
	for _, hs := range e.report.Harts {
		log.Structured(log.Engine, "hart_exit", fmt.Sprintf("hart%d", hs.ID), hs, e.report.RunTime.Microseconds())
	}
	log.Info(log.Engine, "run finished", "retired", e.report.Retired, "elapsed", e.report.RunTime,
		"mips", fmt.Sprintf("%.2f", e.report.MIPS()), "status", status)
	return status, runErr
}

func (e *Engine) tracing() bool { return e.opts.Trace || e.opts.TraceJSONL != "" }

func (e *Engine) tracer() (*trace.Writer, error) {
	if !e.tracing() {
		return nil, nil
	}
	var text io.Writer
	if e.opts.Trace {
		text = e.opts.TraceOut
	}
	var jsonl *trace.JSONLTraceWriter
	if e.opts.TraceJSONL != "" {
		var err error
		if jsonl, err = trace.NewJSONLTraceWriterFile(e.opts.TraceJSONL); err != nil {
			return nil, err
		}
	}
	return trace.NewWriter(text, jsonl), nil
}
