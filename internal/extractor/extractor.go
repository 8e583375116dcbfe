// Package extractor turns OCR primitives into structured LabReport
// drafts via a batch LLM call (spec.md §4.B).
package extractor

import (
	"context"
	"time"

	"github.com/baihao/MedTest-Backend-sub000/internal/apperr"
	"github.com/baihao/MedTest-Backend-sub000/internal/model"
)

// DraftItem mirrors model.LabReportItem before it has a database id.
type DraftItem struct {
	ItemName       string  `json:"itemName"`
	Result         string  `json:"result"`
	Unit           *string `json:"unit,omitempty"`
	ReferenceValue *string `json:"referenceValue,omitempty"`
}

// Draft is one extracted report, keyed back to the OcrJob it came
// from so the orchestrator can reconcile against client cancellations
// (spec.md §4.C "reconciliation").
type Draft struct {
	JobID      int64       `json:"jobId"`
	Patient    string      `json:"patient"`
	ReportTime time.Time   `json:"reportTime"`
	Doctor     *string     `json:"doctor,omitempty"`
	Hospital   *string     `json:"hospital,omitempty"`
	Items      []DraftItem `json:"items"`
}

// Extractor turns a batch of reserved OcrJobs into drafts. It must
// return at most one draft per input job; jobs it could not extract
// are simply absent from the result, not an error, unless the whole
// call fails (network/LLM/timeout failure), in which case the
// orchestrator restores every job in the batch.
type Extractor interface {
	Extract(ctx context.Context, jobs []*model.OcrJob) ([]*Draft, error)
}

// ValidateDraft enforces the same field-length invariants the report
// store enforces, so a malformed LLM response fails fast instead of
// bouncing off a later INSERT.
func ValidateDraft(d *Draft) error {
	if d.Patient == "" {
		return apperr.Validationf("draft for job %d: patient must not be empty", d.JobID)
	}
	if len(d.Items) == 0 {
		return apperr.Validationf("draft for job %d: must contain at least one item", d.JobID)
	}
	for i, it := range d.Items {
		if it.ItemName == "" || len(it.ItemName) > model.MaxItemNameLen {
			return apperr.Validationf("draft for job %d, item %d: invalid itemName", d.JobID, i)
		}
		if len(it.Result) > model.MaxResultLen {
			return apperr.Validationf("draft for job %d, item %d: result too long", d.JobID, i)
		}
		if it.Unit != nil && len(*it.Unit) > model.MaxUnitLen {
			return apperr.Validationf("draft for job %d, item %d: unit too long", d.JobID, i)
		}
		if it.ReferenceValue != nil && len(*it.ReferenceValue) > model.MaxReferenceValueLen {
			return apperr.Validationf("draft for job %d, item %d: referenceValue too long", d.JobID, i)
		}
	}
	return nil
}
