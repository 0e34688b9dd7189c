package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arloliu/vario"
	"github.com/arloliu/vario/events"
	"github.com/arloliu/vario/httpapi"
	"github.com/arloliu/vario/internal/logging"
	"github.com/arloliu/vario/internal/metrics"
	"github.com/arloliu/vario/strategy"
	"github.com/arloliu/vario/types"
)

var errSharedBackendRequired = errors.New("this command needs a shared repository backend (nats or sqlite)")

func newService(cfg appConfig, b *backends, logger types.Logger, opts ...vario.Option) (*vario.Service, error) {
	policy, err := strategy.New(cfg.Engine.Reallocation.Policy, cfg.Engine.Reallocation.Epsilon)
	if err != nil {
		return nil, err
	}

	engineCfg := cfg.Engine
	opts = append([]vario.Option{vario.WithLogger(logger)}, opts...)

	return vario.NewService(&engineCfg, b.repo, b.sticky, policy, opts...)
}

// runServe runs the HTTP server until ctx is cancelled.
func runServe(ctx context.Context, cfg appConfig, logOut io.Writer) error {
	logger, err := logging.NewSlogWriter(logOut, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("closing backends", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hooks := &vario.Hooks{
		OnWeightsChanged: func(_ context.Context, experimentID string, _, after []vario.Variant) error {
			if best := strategy.BestIndex(after); best >= 0 {
				logger.Info("weights changed",
					"experiment", experimentID,
					"best", after[best].ID,
					"weight", after[best].Weight,
				)
			}

			return nil
		},
		OnError: func(_ context.Context, err error) error {
			logger.Warn("engine error", "error", err)
			return nil
		},
	}

	svc, err := newService(cfg, b, logger,
		vario.WithMetrics(metrics.NewPrometheus(reg, "vario")),
		vario.WithHooks(hooks),
	)
	if err != nil {
		return err
	}

	apiOpts := []httpapi.Option{httpapi.WithLogger(logger)}

	if cfg.Events.Publish || cfg.Events.Consume {
		if _, err := events.EnsureStream(ctx, b.js, cfg.Engine.Events); err != nil {
			return err
		}
	}
	if cfg.Events.Publish {
		apiOpts = append(apiOpts, httpapi.WithEventPublisher(events.NewPublisher(b.js, cfg.Engine.Events)))
	}
	if cfg.Events.Consume {
		consumer, err := events.NewConsumer(b.js, svc, cfg.Engine.Events, events.WithLogger(logger))
		if err != nil {
			return err
		}
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			_ = consumer.Stop(stopCtx)
		}()
	}

	router := chi.NewRouter()
	router.Handle(cfg.Server.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.Mount("/", httpapi.New(svc, apiOpts...))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	return svc.Close(shutdownCtx)
}

// runLoad creates every experiment in path. Existing ids are skipped.
func runLoad(ctx context.Context, cfg appConfig, path string, out io.Writer) error {
	if cfg.Backend.Repository == backendMemory {
		return errSharedBackendRequired
	}

	experiments, err := loadExperimentsFile(path)
	if err != nil {
		return err
	}

	logger := logging.NewNop()
	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	svc, err := newService(cfg, b, logger)
	if err != nil {
		return err
	}
	defer svc.Close(ctx)

	for i := range experiments {
		created, err := svc.CreateExperiment(ctx, &experiments[i])
		switch {
		case errors.Is(err, vario.ErrAlreadyExists):
			fmt.Fprintf(out, "skipped %s (already exists)\n", experiments[i].ID)
		case err != nil:
			return err
		default:
			fmt.Fprintf(out, "created %s (%d variants)\n", created.ID, len(created.Variants))
		}
	}

	return nil
}

// runStats prints the counters of each experiment.
func runStats(ctx context.Context, cfg appConfig, ids []string, asJSON bool, out io.Writer) error {
	if cfg.Backend.Repository == backendMemory {
		return errSharedBackendRequired
	}

	logger := logging.NewNop()
	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	svc, err := newService(cfg, b, logger)
	if err != nil {
		return err
	}
	defer svc.Close(ctx)

	snapshots := make([]*vario.Experiment, 0, len(ids))
	for _, id := range ids {
		exp, err := svc.GetStats(ctx, id)
		if err != nil {
			return err
		}
		snapshots = append(snapshots, exp)
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		return enc.Encode(snapshots)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EXPERIMENT\tVARIANT\tIMPRESSIONS\tCONVERSIONS\tRATE\tWEIGHT\tUPDATED")
	for _, exp := range snapshots {
		for _, v := range exp.Variants {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.4f\t%.4f\t%s\n",
				exp.ID, v.ID, v.Impressions, v.Conversions, v.Rate(), v.Weight,
				exp.UpdatedAt.Format(time.RFC3339))
		}
	}

	return tw.Flush()
}
