// Package cron runs the two background sweeps the HTTP surface never
// triggers directly: expiring unused upload grants and paging operators on
// handover tickets that have sat in the queue past their SLA. Uses
// github.com/robfig/cron/v3: a single *cron.Cron with one AddFunc job per
// sweep rather than a bespoke scheduler abstraction.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omnichat/relay/pkg/handover"
	"github.com/omnichat/relay/pkg/store"
)

// Runner owns the process-wide cron engine.
type Runner struct {
	engine *cron.Cron
}

// NewRunner builds a Runner with second-level precision disabled, so it
// accepts standard 5-field cron expressions.
func NewRunner() *Runner {
	return &Runner{engine: cron.New()}
}

// RegisterUploadExpiry sweeps expired, never-confirmed upload grants on the
// given schedule (a standard 5-field cron expression, e.g. "*/5 * * * *").
func (r *Runner) RegisterUploadExpiry(schedule string, uploads *store.UploadRepo) error {
	_, err := r.engine.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		n, err := uploads.DeleteExpired(ctx, time.Now())
		if err != nil {
			slog.Error("upload grant expiry sweep failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("expired upload grants removed", "count", n)
		}
	})
	return err
}

// HandoverSLA is the maximum time a ticket may sit pending before it is
// re-announced to Slack regardless of its original priority.
const HandoverSLA = 10 * time.Minute

// RegisterHandoverSLA scans the pending queue on the given schedule and
// pages the configured notifier for every pending ticket (up to 100 per run)
// older than HandoverSLA, whatever its priority. A ticket is paged again on
// every run for as long as it stays pending. Nothing is registered when
// notifier is nil.
func (r *Runner) RegisterHandoverSLA(schedule string, svc *handover.Service, notifier *handover.SlackNotifier) error {
	if notifier == nil {
		return nil
	}
	_, err := r.engine.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		tickets, err := svc.Queue(ctx, 100)
		if err != nil {
			slog.Error("handover SLA sweep failed to list queue", "error", err)
			return
		}

		now := time.Now()
		for _, t := range tickets {
			if now.Sub(t.CreatedAt) < HandoverSLA {
				continue
			}
			if err := notifier.NotifyUrgent(ctx, t); err != nil {
				slog.Error("handover SLA alert failed", "ticket_id", t.ID, "error", err)
			}
		}
	})
	return err
}

// Start begins running registered jobs in the background.
func (r *Runner) Start() { r.engine.Start() }

// Stop halts the engine and blocks until any in-flight job finishes or ctx
// is done, whichever comes first.
func (r *Runner) Stop(ctx context.Context) {
	done := r.engine.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("cron shutdown timed out with jobs still running")
	}
}
