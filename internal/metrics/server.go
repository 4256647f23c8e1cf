// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/xataio/hwbench/pkg/report"
)

// LatestFunc returns the most recent report, or ErrNoReport.
type LatestFunc func() (*report.Report, error)

var ErrNoReport = errors.New("no report available")

// NewMux routes /metrics to the exporter and, when latest is set,
// /reports/latest to the most recent report as JSON.
func NewMux(e *Exporter, latest LatestFunc) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", e.Handler())
	if latest != nil {
		mux.HandleFunc("GET /reports/latest", func(w http.ResponseWriter, _ *http.Request) {
			r, err := latest()
			switch {
			case errors.Is(err, ErrNoReport):
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			case err != nil:
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			_ = enc.Encode(r)
		})
	}
	return mux
}

// Serve runs an HTTP server on addr until ctx is done.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
