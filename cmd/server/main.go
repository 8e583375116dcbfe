// Command server runs the OCR-to-LabReport pipeline: the REST API,
// the websocket push transport, and the adaptive orchestrator loop,
// all sharing one *deps.Deps graph.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/baihao/MedTest-Backend-sub000/internal/deps"
	"github.com/baihao/MedTest-Backend-sub000/internal/hub"
	"github.com/baihao/MedTest-Backend-sub000/internal/httpapi"
	"github.com/baihao/MedTest-Backend-sub000/internal/metrics"
	"github.com/baihao/MedTest-Backend-sub000/internal/orchestrator"
	"github.com/baihao/MedTest-Backend-sub000/internal/scheduler"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := deps.Build(ctx)
	if err != nil {
		panic(err)
	}
	defer d.Close()

	api := &httpapi.API{
		Jobs:       d.Jobs,
		Reports:    d.Reports,
		Workspaces: d.Workspaces,
		Auth:       d.Auth,
		Images:     d.Images,
		Log:        d.Log,
	}
	restServer := &http.Server{Addr: d.Config.HTTPAddr, Handler: api.Handler()}

	wsHandler := hub.NewServer(d.Hub, d.Auth, d.Log)

	sched := scheduler.New(translateTask(d.Orchestrator), d.Config.LongDelay, d.Config.ImmediateDelay, d.Config.ErrorRetryDelay, d.Log)

	sweeper := cron.New()
	staleAfter := 2 * d.Config.AITimeout
	if _, err := sweeper.AddFunc("@every 1m", func() {
		if st, err := d.Jobs.Stats(ctx); err == nil {
			metrics.QueueDepth.WithLabelValues("available").Set(float64(st.Available))
			metrics.QueueDepth.WithLabelValues("in_flight").Set(float64(st.InFlight))
		}
		n, err := d.Jobs.RestoreStale(ctx, staleAfter)
		if err != nil {
			d.Log.WithError(err).Warn("server: stale-reservation sweep failed")
			return
		}
		if n > 0 {
			d.Log.WithField("restored", n).Info("server: stale-reservation sweep restored jobs")
		}
	}); err != nil {
		d.Log.WithError(err).Error("server: failed to schedule stale-reservation sweep")
	}
	sweeper.Start()

	go func() {
		d.Log.WithField("addr", d.Config.HTTPAddr).Info("server: rest api listening")
		if err := restServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.Log.WithError(err).Error("server: rest api stopped")
		}
	}()

	go func() {
		d.Log.WithField("addr", d.Config.WSAddr).Info("server: websocket hub listening")
		if err := hub.ListenAndServe(ctx, d.Config.WSAddr, wsHandler); err != nil && err != http.ErrServerClosed {
			d.Log.WithError(err).Error("server: websocket hub stopped")
		}
	}()

	if err := sched.Start(ctx); err != nil {
		d.Log.WithError(err).Error("server: scheduler failed to start")
	}

	<-ctx.Done()
	d.Log.Info("server: shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), d.Config.AITimeout)
	defer cancel()
	_ = sched.Stop(stopCtx)
	<-sweeper.Stop().Done()
	_ = restServer.Shutdown(stopCtx)
}

// translateTask adapts orchestrator.RunOnce's Delay enum to the
// scheduler's generic one; the two packages don't import each other.
func translateTask(o *orchestrator.Orchestrator) scheduler.Task {
	return func(ctx context.Context) (scheduler.Delay, error) {
		delay, err := o.RunOnce(ctx)
		switch delay {
		case orchestrator.ImmediateDelay:
			return scheduler.Immediate, err
		case orchestrator.ErrorDelay:
			return scheduler.ErrorBackoff, err
		default:
			return scheduler.Long, err
		}
	}
}
