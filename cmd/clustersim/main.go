// clustersim translates a RISC-V Snitch cluster binary ahead of time and
// runs it with one goroutine per simulated hart.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/colorfulnotion/clustersim/common"
	"github.com/colorfulnotion/clustersim/config"
	"github.com/colorfulnotion/clustersim/engine"
	"github.com/colorfulnotion/clustersim/ir"
	log "github.com/colorfulnotion/clustersim/log"
	"github.com/colorfulnotion/clustersim/performance"
	"github.com/colorfulnotion/clustersim/telemetry"
)

var (
	Commit    = "none"
	BuildTime = "unknown"
)

type flags struct {
	dumpIR      bool
	emitText    string
	emitBitcode string
	dryRun      bool
	noOptIR     bool
	noOptJIT    bool
	trace       bool
	traceJSONL  string
	latency     bool
	numCores    int
	numClusters int
	baseHartID  uint32
	codegen     []string

	config    string
	logLevel  string
	debug     string
	statsHTML string
	otlp      string
	summary   bool
}

func main() {
	var f flags
	rootCmd := &cobra.Command{
		Use:           "clustersim [flags] BINARY",
		Short:         "Snitch cluster simulator based on binary translation",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := run(cmd, &f, args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "clustersim: %v\n", err)
				if status == 0 {
					status = engine.ErrorStatus
				}
			}
			os.Exit(status)
			return nil
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	fl := rootCmd.Flags()
	fl.BoolVar(&f.dumpIR, "dump-llvm", false, "Print the optimized module")
	fl.StringVar(&f.emitText, "emit-llvm", "", "Write the module text to `PATH`")
	fl.StringVar(&f.emitBitcode, "emit-bitcode", "", "Write the binary module to `PATH`")
	fl.BoolVar(&f.dryRun, "dry-run", false, "Stop after translation")
	fl.BoolVar(&f.noOptIR, "no-opt-llvm", false, "Skip the IR optimizer")
	fl.BoolVar(&f.noOptJIT, "no-opt-jit", false, "Compile without operand specialisation")
	fl.BoolVar(&f.trace, "trace", false, "Print an instruction trace to stdout")
	fl.StringVar(&f.traceJSONL, "trace-jsonl", "", "Write the instruction trace as JSON lines to `PATH`")
	fl.BoolVar(&f.latency, "latency", false, "Model instruction and memory latencies")
	fl.IntVar(&f.numCores, "num-cores", 0, "Cores per cluster (default from config)")
	fl.IntVar(&f.numClusters, "num-clusters", 0, "Number of clusters (default from config)")
	fl.Uint32Var(&f.baseHartID, "base-hartid", 0, "mhartid of the first core")
	fl.StringArrayVarP(&f.codegen, "codegen", "L", nil, "Optimizer/JIT option, e.g. max-fold-iterations=8 or no-dce (repeatable)")
	fl.StringVar(&f.config, "config", "snitch", "Preset name ("+strings.Join(config.Presets(), ", ")+") or config file")
	fl.StringVar(&f.logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	fl.StringVar(&f.debug, "debug", "", "Extra log modules to enable ("+strings.Join(log.KnownModules(), ",")+")")
	fl.StringVar(&f.statsHTML, "stats-html", "", "Write an HTML statistics report to `PATH`")
	fl.StringVar(&f.otlp, "otlp-endpoint", "", "Export OpenTelemetry spans to this OTLP/HTTP endpoint")
	fl.BoolVar(&f.summary, "summary", false, "Print a translation and run summary")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			commit := Commit
			if commit == "none" {
				commit = common.GetCommitHash()
			}
			fmt.Printf("clustersim %s (commit %s, built %s)\n", common.Version, commit, BuildTime)
		},
	}
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(engine.ErrorStatus)
	}
}

func run(cmd *cobra.Command, f *flags, path string) (int, error) {
	if err := log.InitLogger(f.logLevel); err != nil {
		return engine.ErrorStatus, err
	}
	for _, m := range strings.Split(f.debug, ",") {
		if m = strings.TrimSpace(m); m != "" {
			log.EnableModule(m)
		}
	}

	cfg, err := config.ReadConfig(f.config)
	if err != nil {
		return engine.ErrorStatus, err
	}
	ov := config.Overrides{NumCores: f.numCores, NumClusters: f.numClusters}
	if cmd.Flags().Changed("base-hartid") {
		ov.BaseHartID = &f.baseHartID
	}
	if err := cfg.Override(ov); err != nil {
		return engine.ErrorStatus, err
	}
	codegen, err := ir.ParseOptions(f.codegen)
	if err != nil {
		return engine.ErrorStatus, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel := telemetry.NewNoOpTelemetryClient()
	if f.otlp != "" {
		if tel, err = telemetry.NewTelemetryClient(ctx, f.otlp); err != nil {
			return engine.ErrorStatus, err
		}
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Close(sctx); err != nil {
			log.Warn(log.Engine, "telemetry flush failed", "err", err)
		}
	}()

	e := engine.New(cfg, engine.Options{
		DumpIR:      f.dumpIR,
		EmitText:    f.emitText,
		EmitBitcode: f.emitBitcode,
		DryRun:      f.dryRun,
		NoOptimize:  f.noOptIR,
		Generic:     f.noOptJIT,
		Codegen:     codegen,
		Trace:       f.trace,
		TraceJSONL:  f.traceJSONL,
		Latency:     f.latency,
		Telemetry:   tel,
	})
	status, runErr := e.Execute(ctx, path)

	report := e.Report()
	if f.summary || f.dryRun {
		fmt.Fprintln(os.Stderr, performance.Summary(report).String())
	}
	if f.statsHTML != "" && len(report.Clusters) > 0 {
		if err := performance.WriteHTML(report, f.statsHTML); err != nil {
			log.Warn(log.Engine, "stats report failed", "path", f.statsHTML, "err", err)
		}
	}
	return status, runErr
}
