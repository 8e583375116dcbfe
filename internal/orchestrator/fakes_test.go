package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/baihao/MedTest-Backend-sub000/internal/model"
	"github.com/baihao/MedTest-Backend-sub000/internal/store"
)

// fakeJobQueue is an in-memory JobQueue for orchestrator tests.
type fakeJobQueue struct {
	mu          sync.Mutex
	jobs        map[int64]*model.OcrJob
	reserveErr  error
	existsErr   error
	restoreErr  error
	hardDelErr  error
	restoredIDs []int64
	deletedIDs  []int64
}

func newFakeJobQueue(jobs ...*model.OcrJob) *fakeJobQueue {
	m := make(map[int64]*model.OcrJob, len(jobs))
	for _, j := range jobs {
		m[j.ID] = j
	}
	return &fakeJobQueue{jobs: m}
}

func (f *fakeJobQueue) ReserveAndTake(_ context.Context, n int) ([]*model.OcrJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reserveErr != nil {
		return nil, f.reserveErr
	}
	var out []*model.OcrJob
	for _, j := range f.jobs {
		if j.Available() {
			out = append(out, j)
			if len(out) == n {
				break
			}
		}
	}
	now := timeNow()
	for _, j := range out {
		j.ReservedAt = &now
	}
	return out, nil
}

func (f *fakeJobQueue) Exists(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.jobs[id]
	return ok, nil
}

func (f *fakeJobQueue) Restore(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.restoreErr != nil {
		return f.restoreErr
	}
	f.restoredIDs = append(f.restoredIDs, id)
	if j, ok := f.jobs[id]; ok {
		j.ReservedAt = nil
	}
	return nil
}

func (f *fakeJobQueue) HardDelete(_ context.Context, ids []int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hardDelErr != nil {
		return 0, f.hardDelErr
	}
	n := 0
	for _, id := range ids {
		if _, ok := f.jobs[id]; ok {
			delete(f.jobs, id)
			n++
		}
		f.deletedIDs = append(f.deletedIDs, id)
	}
	return n, nil
}

func (f *fakeJobQueue) deleteDirectly(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, id)
}

func timeNow() time.Time { return time.Unix(1700000000, 0) }

// fakeReportWriter is an in-memory ReportWriter for orchestrator tests.
type fakeReportWriter struct {
	mu      sync.Mutex
	reports []*model.LabReport
	owners  map[int64]int64
	nextID  int64
	createErr error
}

func newFakeReportWriter() *fakeReportWriter {
	return &fakeReportWriter{owners: make(map[int64]int64)}
}

func (f *fakeReportWriter) Create(_ context.Context, workspaceID int64, patient string, reportTime time.Time, doctor, hospital *string, reportImage string, items []store.NewReportItem) (*model.LabReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	r := &model.LabReport{ID: f.nextID, WorkspaceID: workspaceID, Patient: patient, ReportTime: reportTime, Doctor: doctor, Hospital: hospital, ReportImage: reportImage}
	for _, it := range items {
		r.Items = append(r.Items, &model.LabReportItem{ItemName: it.ItemName, Result: it.Result, Unit: it.Unit, ReferenceValue: it.ReferenceValue})
	}
	f.reports = append(f.reports, r)
	return r, nil
}

func (f *fakeReportWriter) OwnerOfReport(_ context.Context, reportID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.owners[reportID], nil
}

// fakeNotifier records every NotifyReportCreated call.
type fakeNotifier struct {
	mu    sync.Mutex
	calls []*model.LabReport
}

func (f *fakeNotifier) NotifyReportCreated(_ context.Context, _ int64, report *model.LabReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, report)
}
