// Package orchestrator runs one batch-extraction iteration at a time:
// reserve a batch of OcrJobs, send it to the Extractor, reconcile the
// drafts against jobs the client canceled meanwhile, commit what
// survives as LabReports, and report back how long the scheduler
// should wait before the next iteration (spec.md §4.C).
package orchestrator

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/baihao/MedTest-Backend-sub000/internal/config"
	"github.com/baihao/MedTest-Backend-sub000/internal/extractor"
	"github.com/baihao/MedTest-Backend-sub000/internal/metrics"
	"github.com/baihao/MedTest-Backend-sub000/internal/model"
	"github.com/baihao/MedTest-Backend-sub000/internal/store"
)

// Delay is the feedback signal RunOnce returns to the Adaptive
// Scheduler: how long to wait before the next iteration.
type Delay int

const (
	// LongDelay means the queue looked drained: nothing was reserved,
	// or a partial batch finished without any failure; back off.
	LongDelay Delay = iota
	// ImmediateDelay means the batch was full or at least one job in it
	// failed; more work is likely waiting, so the scheduler should hop
	// again with near-zero delay.
	ImmediateDelay
	// ErrorDelay means the extractor call itself failed; back off
	// longer than LongDelay before retrying would be unwise, but the
	// scheduler still uses its own configured error-retry interval.
	ErrorDelay
)

func (d Delay) String() string {
	switch d {
	case ImmediateDelay:
		return "immediate"
	case ErrorDelay:
		return "error"
	default:
		return "long"
	}
}

// Notifier pushes a live update when a report is committed. Hub
// implements this; orchestrator only depends on the interface to
// avoid an import cycle with internal/hub.
type Notifier interface {
	NotifyReportCreated(ctx context.Context, ownerID int64, report *model.LabReport)
}

// JobQueue is the slice of *store.JobStore the orchestrator needs.
// Narrowing to an interface lets tests substitute an in-memory fake
// instead of a live Postgres pool.
type JobQueue interface {
	ReserveAndTake(ctx context.Context, n int) ([]*model.OcrJob, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Restore(ctx context.Context, id int64) error
	HardDelete(ctx context.Context, ids []int64) (int, error)
}

// ReportWriter is the slice of *store.ReportStore the orchestrator needs.
type ReportWriter interface {
	Create(ctx context.Context, workspaceID int64, patient string, reportTime time.Time, doctor, hospital *string, reportImage string, items []store.NewReportItem) (*model.LabReport, error)
	OwnerOfReport(ctx context.Context, reportID int64) (int64, error)
}

// noopNotifier is used when no Hub is wired (e.g. in tests or a CLI
// one-shot run).
type noopNotifier struct{}

func (noopNotifier) NotifyReportCreated(context.Context, int64, *model.LabReport) {}

// Orchestrator runs one reserve-extract-commit iteration at a time.
// Concurrent calls to RunOnce on the same instance are not supported;
// the Adaptive Scheduler is responsible for serializing calls.
type Orchestrator struct {
	jobs      JobQueue
	reports   ReportWriter
	extractor extractor.Extractor
	notifier  Notifier
	cfg       *config.Config
	log       *logrus.Logger
}

// New builds an Orchestrator. notifier may be nil, in which case
// report-committed events are simply not pushed anywhere.
func New(jobs JobQueue, reports ReportWriter, ex extractor.Extractor, notifier Notifier, cfg *config.Config, log *logrus.Logger) *Orchestrator {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Orchestrator{jobs: jobs, reports: reports, extractor: ex, notifier: notifier, cfg: cfg, log: log}
}

// RunOnce executes exactly one iteration and returns the delay the
// caller should wait before invoking RunOnce again.
func (o *Orchestrator) RunOnce(ctx context.Context) (Delay, error) {
	start := time.Now()
	delay, err := o.runOnce(ctx)
	metrics.CommitDuration.Observe(time.Since(start).Seconds())
	metrics.IterationsTotal.WithLabelValues(delay.String()).Inc()
	return delay, err
}

func (o *Orchestrator) runOnce(ctx context.Context) (Delay, error) {
	reserved, err := o.jobs.ReserveAndTake(ctx, o.cfg.BatchSize)
	if err != nil {
		o.log.WithError(err).Warn("orchestrator: reservation failed")
		return ErrorDelay, err
	}
	if len(reserved) == 0 {
		return LongDelay, nil
	}
	metrics.BatchSize.Observe(float64(len(reserved)))

	drafts, err := o.extractor.Extract(ctx, reserved)
	if err != nil {
		o.log.WithError(err).WithField("batch", len(reserved)).Warn("orchestrator: extraction failed, restoring batch")
		o.restoreAll(ctx, reserved)
		return ErrorDelay, err
	}

	byJob := make(map[int64]*extractor.Draft, len(drafts))
	for _, d := range drafts {
		byJob[d.JobID] = d
	}

	committed := 0
	anyFailure := false
	for _, job := range reserved {
		draft, extracted := byJob[job.ID]

		stillExists, err := o.jobs.Exists(ctx, job.ID)
		if err != nil {
			o.log.WithError(err).WithField("jobId", job.ID).Warn("orchestrator: existence check failed, restoring")
			o.restoreOne(ctx, job.ID)
			anyFailure = true
			continue
		}
		if !stillExists {
			// Client hard-deleted this job while it was reserved
			// (spec.md §4.C "reconciliation"): drop the draft, nothing to commit.
			if extracted {
				metrics.ReconciledAwayTotal.Inc()
			}
			continue
		}
		if !extracted {
			// Extractor declined this job (e.g. unreadable image); make it
			// available for another iteration instead of losing it.
			o.restoreOne(ctx, job.ID)
			anyFailure = true
			continue
		}

		if err := o.commit(ctx, job, draft); err != nil {
			o.log.WithError(err).WithField("jobId", job.ID).Warn("orchestrator: commit failed, restoring")
			o.restoreOne(ctx, job.ID)
			anyFailure = true
			continue
		}
		committed++
	}

	if anyFailure || len(reserved) >= o.cfg.BatchSize {
		return ImmediateDelay, nil
	}
	return LongDelay, nil
}

// commit turns one draft into a persisted LabReport, consumes the
// source OcrJob, and notifies the workspace owner.
func (o *Orchestrator) commit(ctx context.Context, job *model.OcrJob, draft *extractor.Draft) error {
	items := make([]store.NewReportItem, len(draft.Items))
	for i, it := range draft.Items {
		items[i] = store.NewReportItem{
			ItemName:       it.ItemName,
			Result:         it.Result,
			Unit:           it.Unit,
			ReferenceValue: it.ReferenceValue,
		}
	}

	report, err := o.reports.Create(ctx, job.WorkspaceID, draft.Patient, draft.ReportTime, draft.Doctor, draft.Hospital, job.Image, items)
	if err != nil {
		return err
	}

	if _, err := o.jobs.HardDelete(ctx, []int64{job.ID}); err != nil {
		o.log.WithError(err).WithField("jobId", job.ID).Warn("orchestrator: failed to consume committed job, it will be re-extracted")
	}
	metrics.ReportsCommittedTotal.Inc()

	ownerID, err := o.reports.OwnerOfReport(ctx, report.ID)
	if err != nil {
		o.log.WithError(err).WithField("reportId", report.ID).Warn("orchestrator: could not resolve owner for notification")
		return nil
	}
	o.notifier.NotifyReportCreated(ctx, ownerID, report)
	return nil
}

func (o *Orchestrator) restoreAll(ctx context.Context, jobs []*model.OcrJob) {
	for _, j := range jobs {
		o.restoreOne(ctx, j.ID)
	}
}

func (o *Orchestrator) restoreOne(ctx context.Context, jobID int64) {
	if err := o.jobs.Restore(ctx, jobID); err != nil {
		o.log.WithError(err).WithField("jobId", jobID).Error("orchestrator: failed to restore reservation")
	}
}
