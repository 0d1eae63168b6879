package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/ctxlog"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/events"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/httpapi"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/pipeline"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/product"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/transport/socketio"
)

// Run executes the process in batch or serve mode.
func (a *App) Run(ctx context.Context, appConfig *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	a.sinks.Attach(events.SinkFunc(a.logEvent))

	if a.model.Progress.URL != "" {
		policy, err := a.model.RetryPolicy()
		if err != nil {
			return err
		}
		emitter, err := socketio.NewEmitter(ctx, socketio.Config{
			URL:       a.model.Progress.URL,
			Namespace: a.model.Progress.Namespace,
			Event:     a.model.Progress.Event,
			Retry:     policy,
		})
		if err != nil {
			return fmt.Errorf("connecting progress stream: %w", err)
		}
		defer emitter.Close()
		a.sinks.Attach(emitter)
		a.logger.Info("Progress streaming enabled.", "url", a.model.Progress.URL)
	}

	if appConfig.ServeAddr != "" {
		return a.serve(ctx, appConfig.ServeAddr)
	}
	return a.batch(ctx, appConfig)
}

// batch submits one job for the configured input and waits for it.
func (a *App) batch(ctx context.Context, appConfig *Config) error {
	specs := make([]product.Spec, 0, len(appConfig.Products))
	for _, name := range appConfig.Products {
		kind, err := product.ParseKind(name)
		if err != nil {
			return err
		}
		specs = append(specs, product.Spec{Kind: kind, Params: a.defaults})
	}

	jobID, err := a.engine.Submit(ctx, appConfig.InputPath, specs)
	if err != nil {
		return err
	}
	a.logger.Info("Job submitted.", "jobID", jobID, "source", appConfig.InputPath, "products", appConfig.Products)

	st, err := a.engine.Wait(ctx, jobID)
	if err != nil {
		// The job keeps running in the engine; in batch mode an interrupted
		// wait means the run is over, so cancel it.
		a.engine.Cancel(jobID)
		return err
	}
	a.printSummary(st)

	switch st.State {
	case pipeline.JobSucceeded:
		return nil
	case pipeline.JobPartialSuccess:
		a.logger.Warn("Job finished with failures.", "jobID", jobID)
		return nil
	default:
		return fmt.Errorf("job %s finished %s", jobID, st.State)
	}
}

func (a *App) printSummary(st pipeline.JobStatus) {
	fmt.Fprintf(a.outW, "job %s: %s\n", st.JobID, st.State)
	for _, s := range st.Steps {
		line := fmt.Sprintf("  %-14s %-9s %s", s.Product, s.State, s.Fingerprint)
		if s.Error != "" {
			line += "  (" + s.Error + ")"
		}
		fmt.Fprintln(a.outW, line)
	}
}

// serve runs the HTTP API until the context is cancelled.
func (a *App) serve(ctx context.Context, addr string) error {
	handler := httpapi.NewHandler(a.engine, a.defaults)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("API server listening.", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		a.logger.Info("API server stopped.")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// logEvent mirrors the progress stream into the process log.
func (a *App) logEvent(ev events.ProgressEvent) {
	switch ev.Kind {
	case events.KindFailed:
		a.logger.Error("Step failed.", "jobID", ev.JobID, "product", ev.Product, "detail", ev.ErrorDetail)
	case events.KindSkipped:
		a.logger.Warn("Step skipped.", "jobID", ev.JobID, "product", ev.Product, "reason", ev.Message)
	case events.KindCompleted:
		a.logger.Info("Step completed.", "jobID", ev.JobID, "product", ev.Product)
	default:
		a.logger.Debug("Step progress.", "jobID", ev.JobID, "product", ev.Product, "percent", ev.Percent)
	}
}
