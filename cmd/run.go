// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/xataio/hwbench/cmd/flags"
	"github.com/xataio/hwbench/internal/metrics"
	"github.com/xataio/hwbench/pkg/bench"
	"github.com/xataio/hwbench/pkg/config"
	"github.com/xataio/hwbench/pkg/report"
	"github.com/xataio/hwbench/pkg/run"
)

type runOptions struct {
	configFile  string
	tests       []string
	preset      string
	duration    time.Duration
	trials      int
	warmup      bool
	diskSize    string
	interactive bool

	output  string
	format  string
	samples string
	timeout time.Duration
}

func runCmd() *cobra.Command {
	var o runOptions

	runCmd := &cobra.Command{
		Use:     "run",
		Short:   "Run a benchmark and score the results",
		Example: "run --tests cpu,memory --preset quick --output result.json",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := buildConfig(cmd, &o)
			if err != nil {
				return err
			}

			rep, err := executeRun(cmd.Context(), cfg, o.timeout)
			if rep == nil {
				return err
			}

			if serr := saveRun(cmd.Context(), rep, &o); serr != nil {
				err = errors.Join(err, serr)
			}
			if err != nil {
				return err
			}

			switch rep.Status {
			case report.StatusFailed:
				return fmt.Errorf("%w: %s", errRunFailed, rep.Failure.Reason)
			case report.StatusCancelled:
				return errRunCancelled
			}
			return nil
		},
	}

	o.bind(runCmd.Flags())
	runCmd.Flags().String("scratch-dir", "", "Directory for the disk test scratch file")
	runCmd.Flags().Bool("no-history", false, "Do not record the run in the history database")
	runCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while running (eg. :9100)")

	viper.BindPFlag("SCRATCH_DIR", runCmd.Flags().Lookup("scratch-dir"))
	viper.BindPFlag("NO_HISTORY", runCmd.Flags().Lookup("no-history"))
	viper.BindPFlag("METRICS_ADDR", runCmd.Flags().Lookup("metrics-addr"))

	return runCmd
}

func (o *runOptions) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.configFile, "config", "c", "", "Benchmark configuration file (YAML or JSON)")
	fs.StringSliceVarP(&o.tests, "tests", "t", nil, "Tests to run (cpu, memory, disk)")
	fs.StringVarP(&o.preset, "preset", "p", "", "Duration preset (quick, standard, extended)")
	fs.DurationVarP(&o.duration, "duration", "d", 0, "Time budget of each test (eg. 10s)")
	fs.IntVar(&o.trials, "trials", config.DefaultTrials, "Number of timed trials per measurement")
	fs.BoolVar(&o.warmup, "warmup", false, "Run one untimed warm-up pass before the timed trials")
	fs.StringVar(&o.diskSize, "disk-size", "", "Size of the disk test scratch file (eg. 50MB)")
	fs.BoolVarP(&o.interactive, "interactive", "i", false, "Choose tests and durations interactively")
	fs.StringVarP(&o.output, "output", "o", "", "Write the report to this file")
	fs.StringVarP(&o.format, "format", "f", "", "Report format (json, yaml, text); defaults to the output file extension")
	fs.StringVar(&o.samples, "samples", "", "Write per-trial samples to this Parquet file")
	fs.DurationVar(&o.timeout, "timeout", 0, "Cancel the run after this long (0 disables)")
}

// buildConfig starts from the configuration file, or the defaults, and
// applies the flags that were set explicitly.
func buildConfig(cmd *cobra.Command, o *runOptions) (*config.Config, error) {
	cfg := config.Default()
	if o.configFile != "" {
		var err error
		if cfg, err = config.Load(o.configFile); err != nil {
			return nil, err
		}
	}

	if o.interactive {
		if err := promptConfig(cfg); err != nil {
			return nil, err
		}
	}

	fl := cmd.Flags()
	if fl.Changed("tests") {
		cfg.Tests = cfg.Tests[:0]
		for _, name := range o.tests {
			k, err := bench.ParseKind(name)
			if err != nil {
				return nil, config.InvalidConfigError{Field: "tests", Reason: err.Error()}
			}
			cfg.Tests = append(cfg.Tests, k)
		}
	}
	if fl.Changed("preset") {
		if err := cfg.ApplyPreset(config.Preset(o.preset)); err != nil {
			return nil, err
		}
	}
	if fl.Changed("duration") {
		cfg.Duration = config.Duration(o.duration)
	}
	if fl.Changed("trials") {
		cfg.Trials = o.trials
	}
	if fl.Changed("warmup") {
		cfg.Warmup = o.warmup
	}
	if fl.Changed("disk-size") {
		size, err := config.ParseByteSize(o.diskSize)
		if err != nil {
			return nil, config.InvalidConfigError{Field: "disk.file_size", Reason: err.Error()}
		}
		cfg.Disk.FileSize = size
	}
	if dir := flags.ScratchDir(); dir != "" {
		cfg.Disk.ScratchDir = dir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// promptConfig asks for the tests, the duration preset and the disk size.
func promptConfig(cfg *config.Config) error {
	var names, selected []string
	for _, k := range bench.Kinds {
		names = append(names, k.String())
	}
	for _, k := range cfg.Tests {
		selected = append(selected, k.String())
	}

	chosen, err := pterm.DefaultInteractiveMultiselect.
		WithDefaultText("Tests to run").
		WithOptions(names).
		WithDefaultOptions(selected).
		Show()
	if err != nil {
		return err
	}
	cfg.Tests = cfg.Tests[:0]
	for _, name := range chosen {
		k, err := bench.ParseKind(name)
		if err != nil {
			return err
		}
		cfg.Tests = append(cfg.Tests, k)
	}

	defaultPreset := string(config.DefaultPreset)
	if cfg.Preset != "" {
		defaultPreset = string(cfg.Preset)
	}
	preset, err := pterm.DefaultInteractiveSelect.
		WithDefaultText("Test duration").
		WithOptions([]string{string(config.PresetQuick), string(config.PresetStandard), string(config.PresetExtended)}).
		WithDefaultOption(defaultPreset).
		Show()
	if err != nil {
		return err
	}
	if err := cfg.ApplyPreset(config.Preset(preset)); err != nil {
		return err
	}

	if !slices.Contains(cfg.Tests, bench.KindDisk) {
		return nil
	}
	var sizes []string
	for _, s := range config.DiskSizeOptions {
		sizes = append(sizes, s.String())
	}
	size, err := pterm.DefaultInteractiveSelect.
		WithDefaultText("Disk test file size").
		WithOptions(sizes).
		WithDefaultOption(config.ByteSize(bench.DefaultDiskFileSize).String()).
		Show()
	if err != nil {
		return err
	}
	cfg.Disk.FileSize, err = config.ParseByteSize(size)
	return err
}

// executeRun runs cfg to completion while showing progress. Interrupts and
// the timeout cancel the run cooperatively; the report of a cancelled run is
// still returned.
func executeRun(ctx context.Context, cfg *config.Config, timeout time.Duration) (*report.Report, error) {
	baselines, err := loadBaselines()
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	exporter := metrics.NewExporter()
	c := run.NewController(
		run.WithLogger(run.NewLogger()),
		run.WithBaselines(baselines),
		run.WithListener(exporter.ObserveEvent),
	)

	g, gctx := errgroup.WithContext(ctx)
	h, err := c.Start(gctx, cfg)
	if err != nil {
		return nil, err
	}

	g.Go(func() error {
		showProgress(h.Events())
		return nil
	})

	if addr := flags.MetricsAddr(); addr != "" {
		serveCtx, stopServing := context.WithCancel(gctx)
		latest := func() (*report.Report, error) {
			if r, ok := h.Report(); ok {
				return r, nil
			}
			return nil, metrics.ErrNoReport
		}
		g.Go(func() error {
			<-h.Done()
			if r, ok := h.Report(); ok {
				exporter.ObserveReport(r)
			}
			stopServing()
			return nil
		})
		g.Go(func() error {
			return metrics.Serve(serveCtx, addr, metrics.NewMux(exporter, latest))
		})
	}

	if err := g.Wait(); err != nil {
		h.Cancel()
		r, _ := h.Wait(context.Background())
		return r, err
	}
	return h.Wait(context.Background())
}

// showProgress draws a progress bar per test until events is closed.
func showProgress(events <-chan bench.ProgressEvent) {
	var pb *pterm.ProgressbarPrinter
	for ev := range events {
		switch ev.Stage {
		case bench.StageStarted:
			pb, _ = pterm.DefaultProgressbar.
				WithTotal(100).
				WithTitle(fmt.Sprintf("%s test", ev.Kind.Title())).
				WithRemoveWhenDone().
				Start()
		case bench.StageProgress:
			if pb == nil {
				continue
			}
			title := fmt.Sprintf("%s test: %s", ev.Kind.Title(), ev.Phase)
			if ev.Preview != nil {
				title += fmt.Sprintf(" (%s %.1f %s)", ev.Preview.Name, ev.Preview.Value, ev.Preview.Unit)
			}
			pb.UpdateTitle(title)
			if delta := int(ev.Fraction*100) - pb.Current; delta > 0 {
				pb.Add(delta)
			}
		case bench.StageFinished:
			if pb != nil {
				pb.Stop()
				pb = nil
			}
			if ev.Fraction >= 1 {
				pterm.Success.Println(fmt.Sprintf("%s test finished", ev.Kind.Title()))
			} else {
				pterm.Warning.Println(fmt.Sprintf("%s test did not finish", ev.Kind.Title()))
			}
		}
	}
}

// saveRun prints the summary, writes the requested exports and records the
// run in the history.
func saveRun(ctx context.Context, rep *report.Report, o *runOptions) error {
	if err := printSummary(rep); err != nil {
		return err
	}

	if o.output != "" {
		f, err := resolveFormat(o.format, o.output)
		if err != nil {
			return err
		}
		if err := writeReportFile(o.output, f, rep); err != nil {
			return err
		}
		pterm.Success.Println(fmt.Sprintf("Report written to %s", o.output))
	}

	if o.samples != "" {
		n, err := report.WriteSamplesParquet(o.samples, rep)
		if err != nil {
			return err
		}
		pterm.Success.Println(fmt.Sprintf("%d samples written to %s", n, o.samples))
	}

	if flags.NoHistory() {
		return nil
	}
	store, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Put(rep); err != nil {
		return err
	}
	pterm.DefaultLogger.Debug("run recorded in history",
		pterm.DefaultLogger.Args("id", rep.ID, "dir", flags.HistoryDir()))
	return nil
}
