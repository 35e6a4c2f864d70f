package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"text/tabwriter"

	"angioscan/internal/config"
	apperrors "angioscan/internal/errors"
	"angioscan/internal/gui"
	"angioscan/internal/logger"
	"angioscan/internal/pipeline"
	"angioscan/internal/shutdown"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const AppVersion = "1.0.0"

const (
	exitOK        = 0
	exitFailure   = 1
	exitCancelled = 130
)

type options struct {
	input      string
	output     string
	configPath string
	workers    int
	roi        bool
	show       bool
	logLevel   string
	logJSON    bool
}

func main() {
	opts := parseFlags()

	level := logger.LevelFromEnv()
	if opts.logLevel != "" {
		level = logger.ParseLevel(opts.logLevel)
	}

	var log logger.Logger
	if opts.logJSON {
		log = logger.NewJSONLogger(level)
	} else {
		log = logger.NewConsoleLogger(level)
	}

	os.Exit(run(opts, log))
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.input, "input", "images", "Directory with angiogram images")
	flag.StringVar(&opts.output, "output", "output", "Directory for annotated images and step panels")
	flag.StringVar(&opts.configPath, "config", "", "YAML config file (defaults are used when empty)")
	flag.IntVar(&opts.workers, "workers", 0, "Images analysed in parallel (0 keeps the config value)")
	flag.BoolVar(&opts.roi, "roi", false, "Select the region of interest for every image interactively")
	flag.BoolVar(&opts.show, "show", false, "Show every processing step after each image")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from LOG_LEVEL)")
	flag.BoolVar(&opts.logJSON, "log-json", false, "Write logs as JSON lines")
	flag.Parse()
	return opts
}

func run(opts options, log logger.Logger) int {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Error("Main", err, map[string]interface{}{"config": opts.configPath})
		return exitFailure
	}
	if opts.workers > 0 {
		cfg.Batch.Workers = opts.workers
	}

	logHost(log, cfg)

	mgr := shutdown.NewManager(context.Background(), log)
	mgr.Listen()
	defer mgr.Shutdown()

	analyzer, err := pipeline.NewAnalyzer(cfg, log)
	if err != nil {
		log.Error("Main", err, nil)
		return exitFailure
	}

	runner := pipeline.NewRunner(cfg, analyzer,
		pipeline.NewFileLoader(log),
		pipeline.NewFileSaver(cfg.Output, log),
		log)

	var report *pipeline.BatchReport
	work := func(ctx context.Context) error {
		var err error
		report, err = runner.Run(ctx, opts.input, opts.output)
		return err
	}

	if opts.roi || opts.show {
		session := gui.NewSession(log)
		if opts.roi {
			runner.SetRegionSelector(session)
		}
		if opts.show {
			runner.SetResultViewer(session)
		}
		err = session.Run(mgr.Context(), work)
	} else {
		err = work(mgr.Context())
	}

	if report != nil {
		printReport(os.Stdout, report)
	}

	switch {
	case err == nil:
		return exitOK
	case apperrors.IsType(err, apperrors.ErrorTypeCancelled):
		log.Warning("Main", "batch cancelled", map[string]interface{}{"error": err.Error()})
		return exitCancelled
	default:
		log.Error("Main", err, map[string]interface{}{"input": opts.input})
		return exitFailure
	}
}

// logHost records the machine the batch runs on. Missing host data is not
// an error.
func logHost(log logger.Logger, cfg *config.Config) {
	fields := map[string]interface{}{
		"version":    AppVersion,
		"go_version": runtime.Version(),
		"workers":    cfg.Batch.Workers,
	}

	if logical, err := cpu.Counts(true); err == nil {
		fields["cpu_logical"] = logical
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fields["mem_total_mb"] = vm.Total / (1 << 20)
		fields["mem_available_mb"] = vm.Available / (1 << 20)
	}

	log.Info("Main", "angioscan starting", fields)
}

func printReport(w io.Writer, report *pipeline.BatchReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IMAGE\tVERDICT\tDETECTIONS\tSITES\tOUTPUT")
	for _, r := range report.Results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.Path, r.Verdict, r.DetectionCount, r.SiteCount, r.Outputs.Image)
	}
	for _, s := range report.Skipped {
		fmt.Fprintf(tw, "%s\tskipped\t-\t-\t%v\n", s.Path, s.Err)
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%d processed, %d flagged, %d skipped\n",
		report.Processed, report.Flagged, len(report.Skipped))
}
