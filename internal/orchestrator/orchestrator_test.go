package orchestrator

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/baihao/MedTest-Backend-sub000/internal/apperr"
	"github.com/baihao/MedTest-Backend-sub000/internal/config"
	"github.com/baihao/MedTest-Backend-sub000/internal/extractor"
	"github.com/baihao/MedTest-Backend-sub000/internal/model"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestRunOnceEmptyQueueReturnsLongDelay(t *testing.T) {
	jobs := newFakeJobQueue()
	reports := newFakeReportWriter()
	ex := extractor.NewFake()
	cfg := &config.Config{BatchSize: 5}

	o := New(jobs, reports, ex, nil, cfg, testLogger())
	delay, err := o.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if delay != LongDelay {
		t.Fatalf("expected LongDelay, got %v", delay)
	}
}

func TestRunOnceCommitsAndNotifies(t *testing.T) {
	job := &model.OcrJob{ID: 1, WorkspaceID: 10, Image: "img", OCRText: "ocr"}
	jobs := newFakeJobQueue(job)
	reports := newFakeReportWriter()
	ex := extractor.NewFake()
	ex.Drafts[1] = &extractor.Draft{JobID: 1, Patient: "alice", Items: []extractor.DraftItem{{ItemName: "glucose", Result: "90"}}}
	notifier := &fakeNotifier{}
	cfg := &config.Config{BatchSize: 5}

	o := New(jobs, reports, ex, notifier, cfg, testLogger())
	delay, err := o.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if delay != LongDelay {
		t.Fatalf("expected LongDelay for a partial batch, got %v", delay)
	}
	if len(reports.reports) != 1 {
		t.Fatalf("expected one committed report, got %d", len(reports.reports))
	}
	if len(notifier.calls) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.calls))
	}
	if _, ok := jobs.jobs[1]; ok {
		t.Fatalf("expected committed job to be hard-deleted")
	}
}

func TestRunOnceFullBatchReturnsImmediateDelay(t *testing.T) {
	j1 := &model.OcrJob{ID: 1, WorkspaceID: 10, Image: "i", OCRText: "o"}
	j2 := &model.OcrJob{ID: 2, WorkspaceID: 10, Image: "i", OCRText: "o"}
	jobs := newFakeJobQueue(j1, j2)
	reports := newFakeReportWriter()
	ex := extractor.NewFake()
	cfg := &config.Config{BatchSize: 2}

	o := New(jobs, reports, ex, nil, cfg, testLogger())
	delay, err := o.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if delay != ImmediateDelay {
		t.Fatalf("expected ImmediateDelay for a full batch, got %v", delay)
	}
}

func TestRunOnceExtractionFailureRestoresBatch(t *testing.T) {
	job := &model.OcrJob{ID: 1, WorkspaceID: 10, Image: "i", OCRText: "o"}
	jobs := newFakeJobQueue(job)
	reports := newFakeReportWriter()
	ex := extractor.NewFake()
	ex.FailErr = apperr.New(apperr.Internal, "llm down")
	cfg := &config.Config{BatchSize: 5}

	o := New(jobs, reports, ex, nil, cfg, testLogger())
	delay, err := o.RunOnce(context.Background())
	if err == nil {
		t.Fatalf("expected error from extraction failure")
	}
	if delay != ErrorDelay {
		t.Fatalf("expected ErrorDelay, got %v", delay)
	}
	if !job.Available() {
		t.Fatalf("expected job to be restored to available after extraction failure")
	}
	if len(jobs.restoredIDs) != 1 || jobs.restoredIDs[0] != job.ID {
		t.Fatalf("expected job %d to be restored, got %v", job.ID, jobs.restoredIDs)
	}
}

// cancelDuringExtraction wraps a Fake extractor and deletes a job out
// from under the job queue while "extracting" it, simulating a client
// cancellation that races an in-flight orchestrator iteration.
type cancelDuringExtraction struct {
	*extractor.Fake
	jobs     *fakeJobQueue
	cancelID int64
}

func (c *cancelDuringExtraction) Extract(ctx context.Context, jobs []*model.OcrJob) ([]*extractor.Draft, error) {
	c.jobs.deleteDirectly(c.cancelID)
	return c.Fake.Extract(ctx, jobs)
}

func TestRunOnceSkipsJobHardDeletedDuringExtraction(t *testing.T) {
	job := &model.OcrJob{ID: 1, WorkspaceID: 10, Image: "i", OCRText: "o"}
	jobs := newFakeJobQueue(job)
	reports := newFakeReportWriter()
	inner := extractor.NewFake()
	inner.Drafts[1] = &extractor.Draft{JobID: 1, Patient: "alice", Items: []extractor.DraftItem{{ItemName: "glucose", Result: "90"}}}
	ex := &cancelDuringExtraction{Fake: inner, jobs: jobs, cancelID: job.ID}
	cfg := &config.Config{BatchSize: 5}

	o := New(jobs, reports, ex, nil, cfg, testLogger())

	delay, err := o.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if delay != LongDelay {
		t.Fatalf("expected LongDelay, got %v", delay)
	}
	if len(reports.reports) != 0 {
		t.Fatalf("expected no report committed for a cancelled job, got %d", len(reports.reports))
	}
}

func TestRunOnceRestoresUnextractedJob(t *testing.T) {
	job := &model.OcrJob{ID: 1, WorkspaceID: 10, Image: "i", OCRText: "o"}
	jobs := newFakeJobQueue(job)
	reports := newFakeReportWriter()
	ex := extractor.NewFake() // no draft seeded for job 1
	cfg := &config.Config{BatchSize: 5}

	o := New(jobs, reports, ex, nil, cfg, testLogger())
	delay, err := o.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !job.Available() {
		t.Fatalf("expected job without a draft to be restored")
	}
	if delay != ImmediateDelay {
		t.Fatalf("expected ImmediateDelay when a partial batch contained a failure, got %v", delay)
	}
}
