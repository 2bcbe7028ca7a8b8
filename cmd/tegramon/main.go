//go:build linux

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ja7ad/tegramon/pkg/config"
	"github.com/ja7ad/tegramon/pkg/logsink"
	"github.com/ja7ad/tegramon/pkg/monitor"
	"github.com/ja7ad/tegramon/pkg/summary"
	"github.com/ja7ad/tegramon/pkg/system/cgroup"
	"github.com/ja7ad/tegramon/pkg/system/gpu"
	"github.com/ja7ad/tegramon/pkg/system/proc"
	"github.com/ja7ad/tegramon/pkg/system/util"
	"github.com/ja7ad/tegramon/pkg/telemetry"
)

var version = "dev"

type opts struct {
	configPath string

	// sampling
	interval     time.Duration
	hostInterval time.Duration
	hostCPUMode  string
	procRoot     string

	// telemetry source
	gpuCommand   string
	gpuInterval  time.Duration
	carryForward bool

	// outputs
	logDir   string
	logName  string
	logLevel string

	metricsExporter string
	metricsEndpoint string
	metricsInsecure bool
}

func main() {
	if err := newRootCmd(&opts{}).Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func newRootCmd(o *opts) *cobra.Command {
	root := &cobra.Command{
		Use:   "tegramon PID [LOG_NAME]",
		Short: "CPU, memory and GPU monitor for Jetson devices",
		Long: `The tegramon tool samples CPU, memory and GPU (tegrastats) utilization and
appends one status line per tick to a daily log file.

It follows PID until the process exits, its PID is reused by another
process, or tegramon receives SIGINT/SIGTERM. The "host" subcommand logs
whole-host status until stopped.

* GitHub: https://github.com/ja7ad/tegramon

Examples:
  tegramon $(pidof inference_server)
  tegramon --log-dir /var/log/tegramon -i 500ms 12345 detector
  tegramon host`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := util.ParsePID(args[0])
			if err != nil {
				return err
			}
			logName := ""
			if len(args) > 1 {
				logName = args[1]
			}
			return run(cmd, *o, pid, logName)
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "host [LOG_NAME]",
		Short: "Log whole-host CPU, RAM and GPU status every host interval",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logName := ""
			if len(args) > 0 {
				logName = args[0]
			}
			return run(cmd, *o, 0, logName)
		},
	})

	f := root.PersistentFlags()
	f.StringVarP(&o.configPath, "config", "c", "", "path to TOML config file (default "+config.DefaultConfigPath()+")")
	f.DurationVarP(&o.interval, "interval", "i", time.Second, "process mode poll interval")
	f.DurationVar(&o.hostInterval, "host-interval", 5*time.Second, "host mode poll interval")
	f.StringVar(&o.hostCPUMode, "host-cpu-mode", "boot", "host CPU figure: boot (since boot) or window (since last tick)")
	f.StringVar(&o.procRoot, "proc-root", proc.DefaultRoot, "procfs mount point")
	f.StringVar(&o.gpuCommand, "gpu-command", gpu.DefaultCommand, "telemetry command to run")
	f.DurationVar(&o.gpuInterval, "gpu-interval", time.Second, "telemetry reporting interval")
	f.BoolVar(&o.carryForward, "gpu-carry-forward", false, "keep the last known value of fields a telemetry line lacks")
	f.StringVar(&o.logDir, "log-dir", "logs", "directory for daily log files")
	f.StringVarP(&o.logName, "log-name", "n", "system_stats", "log file base name")
	f.StringVar(&o.logLevel, "log-level", "info", "diagnostic level: debug, info, warn or error")
	f.StringVar(&o.metricsExporter, "metrics-exporter", "none", "metrics exporter: none, stdout, otlp-grpc or otlp-http")
	f.StringVar(&o.metricsEndpoint, "metrics-endpoint", "", "OTLP endpoint host:port")
	f.BoolVar(&o.metricsInsecure, "metrics-insecure", false, "disable TLS for the OTLP exporter")

	return root
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

// run starts process mode for pid, or host mode when pid is 0.
func run(cmd *cobra.Command, o opts, pid int, logName string) error {
	loaded, err := loadConfig(o.configPath)
	if err != nil {
		return err
	}
	cfg := loaded.Config
	applyFlags(cmd, &cfg, o, logName)
	if err := config.Validate(&cfg); err != nil {
		return err
	}

	setupLogger(cfg.Log.Level)
	for _, w := range loaded.Warnings {
		slog.Warn("config", "warning", w)
	}

	hostname, platform, kernel, cpus, memory := util.SystemSummary()
	fmt.Printf(_console, hostname, platform, kernel, cpus, memory, time.Now().Format("2006-01-02 15:04:05"))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics, err := newMetrics(ctx, cfg, pid)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown", "err", err)
		}
	}()

	sink := logsink.NewDaily(cfg.Log.Dir, cfg.Log.BaseName)
	defer sink.Close()

	command := strings.Fields(cfg.GPU.Command)
	reader := gpu.NewReader(command[0], command[1:]...)
	reader.SetCarryForward(cfg.GPU.CarryForward)

	mode, _ := proc.ParseHostCPUMode(cfg.Monitor.HostCPUMode)
	mcfg := &monitor.Config{
		FS:            proc.NewFS(cfg.Proc.Root),
		GPUIntervalMs: cfg.GPU.IntervalMS,
		HostCPUMode:   mode,
	}
	if metrics.Enabled() {
		mcfg.Metrics = metrics
	}

	logPath := sink.Path(time.Now())
	if pid == 0 {
		mcfg.Interval = time.Duration(cfg.Monitor.HostIntervalMS) * time.Millisecond
		return runHost(ctx, sink, reader, mcfg, logPath)
	}
	mcfg.Interval = time.Duration(cfg.Monitor.IntervalMS) * time.Millisecond
	return runProcess(ctx, pid, sink, reader, mcfg, logPath)
}

func runProcess(ctx context.Context, pid int, sink logsink.Sink, g monitor.GPUSource, mcfg *monitor.Config, logPath string) error {
	m := monitor.NewProcess(pid, sink, g, mcfg)
	if err := m.Init(); err != nil {
		return err
	}
	slog.Info("monitoring started", "pid", pid, "log", logPath, "interval", mcfg.Interval)
	if cg, err := cgroup.ForPID(mcfg.FS.Root(), pid); err == nil {
		slog.Info("target cgroup", "version", cg.Version, "path", cg.Path, "container", cg.Containerized())
	} else {
		slog.Debug("target cgroup unavailable", "err", err)
	}

	// The signal context only raises the stop flag; Run performs the
	// shutdown itself on its next iteration.
	cancelWatch := context.AfterFunc(ctx, m.RequestStop)
	defer cancelWatch()

	state := m.Run(context.WithoutCancel(ctx))
	slog.Info("monitoring finished", "pid", pid, "state", state)

	printSummary(fmt.Sprintf("PID %d", pid), m.Summary(), mcfg.Interval)
	return nil
}

func runHost(ctx context.Context, sink logsink.Sink, g monitor.GPUSource, mcfg *monitor.Config, logPath string) error {
	h := monitor.NewHost(sink, g, mcfg)
	if err := h.StartGPU(); err != nil {
		slog.Warn("gpu telemetry unavailable, continuing without it", "err", err)
	}
	slog.Info("monitoring started", "mode", "host", "log", logPath, "interval", mcfg.Interval)

	h.Run(ctx)

	printSummary("host", h.Summary(), mcfg.Interval)
	return nil
}

// applyFlags lets explicitly set flags and the positional log name override
// the config file.
func applyFlags(cmd *cobra.Command, cfg *config.Config, o opts, logName string) {
	f := cmd.Flags()
	if f.Changed("interval") {
		cfg.Monitor.IntervalMS = int(o.interval / time.Millisecond)
	}
	if f.Changed("host-interval") {
		cfg.Monitor.HostIntervalMS = int(o.hostInterval / time.Millisecond)
	}
	if f.Changed("host-cpu-mode") {
		cfg.Monitor.HostCPUMode = o.hostCPUMode
	}
	if f.Changed("proc-root") {
		cfg.Proc.Root = o.procRoot
	}
	if f.Changed("gpu-command") {
		cfg.GPU.Command = o.gpuCommand
	}
	if f.Changed("gpu-interval") {
		cfg.GPU.IntervalMS = int(o.gpuInterval / time.Millisecond)
	}
	if f.Changed("gpu-carry-forward") {
		cfg.GPU.CarryForward = o.carryForward
	}
	if f.Changed("log-dir") {
		cfg.Log.Dir = o.logDir
	}
	if f.Changed("log-name") {
		cfg.Log.BaseName = o.logName
	}
	if logName != "" {
		cfg.Log.BaseName = logName
	}
	if f.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if f.Changed("metrics-exporter") {
		cfg.Metrics.Exporter = o.metricsExporter
	}
	if f.Changed("metrics-endpoint") {
		cfg.Metrics.Endpoint = o.metricsEndpoint
	}
	if f.Changed("metrics-insecure") {
		cfg.Metrics.Insecure = o.metricsInsecure
	}
}

func setupLogger(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func newMetrics(ctx context.Context, cfg config.Config, pid int) (*telemetry.Metrics, error) {
	if telemetry.ExporterType(cfg.Metrics.Exporter) == telemetry.ExporterNone {
		return telemetry.NoopMetrics(), nil
	}
	mc := telemetry.DefaultMetricsConfig()
	mc.ServiceVersion = version
	mc.ExporterType = telemetry.ExporterType(cfg.Metrics.Exporter)
	mc.OTLPEndpoint = cfg.Metrics.Endpoint
	mc.OTLPInsecure = cfg.Metrics.Insecure
	if pid > 0 {
		mc.Attributes = map[string]string{"process.pid": strconv.Itoa(pid)}
	}
	m, err := telemetry.NewMetrics(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	return m, nil
}

func printSummary(subject string, r summary.Result, interval time.Duration) {
	fmt.Println()
	fmt.Printf("tegramon summary for %s (over %d samples of ~%s):\n", subject, r.Samples, interval)
	fmt.Printf("- cpu (avg):    %.2f %%\n", r.CPUAvg)
	fmt.Printf("- cpu (peak):   %.2f %%\n", r.CPUPeak)
	fmt.Printf("- ram (avg):    %s\n", r.MemAvg.Humanized())
	fmt.Printf("- ram (peak):   %s\n", r.MemPeak.Humanized())
	if r.GPUSamples > 0 {
		fmt.Printf("- gpu (avg):    %.2f %%\n", r.GPUAvg)
		fmt.Printf("- gpu (peak):   %d %%\n", r.GPUPeak)
	} else {
		fmt.Println("- gpu:          N/A")
	}
	fmt.Println()
}

const _console = `tegramon - Jetson CPU/RAM/GPU Monitor

* GitHub: https://github.com/ja7ad/tegramon

       Host: %s
       Platform: %s
       Kernel: %s
       CPUs: %s
       Mem: %s

Monitoring started as of %s:

`
