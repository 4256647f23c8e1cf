// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xataio/hwbench/internal/metrics"
	"github.com/xataio/hwbench/pkg/report"
)

func serveCmd() *cobra.Command {
	var addr string
	var refresh time.Duration

	serveCmd := &cobra.Command{
		Use:     "serve",
		Short:   "Serve Prometheus metrics of the recorded runs",
		Example: "serve --addr :9100",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			h := newHistoryFeed(metrics.NewExporter())
			if err := h.refresh(ctx); err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				ticker := time.NewTicker(refresh)
				defer ticker.Stop()
				for {
					select {
					case <-gctx.Done():
						return nil
					case <-ticker.C:
						if err := h.refresh(gctx); err != nil {
							pterm.Warning.Println(fmt.Sprintf("refreshing history: %s", err))
						}
					}
				}
			})
			g.Go(func() error {
				return metrics.Serve(gctx, addr, metrics.NewMux(h.exporter, h.latestReport))
			})

			pterm.Info.Println(fmt.Sprintf("Serving metrics on %s", addr))
			return g.Wait()
		},
	}

	serveCmd.Flags().StringVar(&addr, "addr", ":9100", "Address to listen on")
	serveCmd.Flags().DurationVar(&refresh, "refresh", 30*time.Second, "How often to reload the history database")

	return serveCmd
}

// historyFeed replays the history database into an exporter. The database
// is only held open while reading, so runs can record into it meanwhile.
type historyFeed struct {
	exporter *metrics.Exporter
	latest   atomic.Pointer[report.Report]
}

func newHistoryFeed(e *metrics.Exporter) *historyFeed {
	return &historyFeed{exporter: e}
}

func (h *historyFeed) refresh(ctx context.Context) error {
	store, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	reps, err := store.Recent(0)
	if err != nil {
		return err
	}
	if len(reps) == 0 {
		return nil
	}

	// oldest first so that the gauges end on the newest run
	for _, r := range slices.Backward(reps) {
		h.exporter.ObserveReport(r)
	}
	h.latest.Store(reps[0])
	return nil
}

func (h *historyFeed) latestReport() (*report.Report, error) {
	if r := h.latest.Load(); r != nil {
		return r, nil
	}
	return nil, metrics.ErrNoReport
}
