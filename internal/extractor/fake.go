package extractor

import (
	"context"

	"github.com/baihao/MedTest-Backend-sub000/internal/model"
)

// Fake is a scripted Extractor for tests: it looks up a pre-seeded
// Draft per job id and can be told to fail the whole call.
type Fake struct {
	Drafts  map[int64]*Draft
	FailErr error
	Calls   [][]*model.OcrJob
}

// NewFake builds an empty Fake.
func NewFake() *Fake {
	return &Fake{Drafts: make(map[int64]*Draft)}
}

// Extract implements Extractor.
func (f *Fake) Extract(_ context.Context, jobs []*model.OcrJob) ([]*Draft, error) {
	f.Calls = append(f.Calls, jobs)
	if f.FailErr != nil {
		return nil, f.FailErr
	}
	var out []*Draft
	for _, j := range jobs {
		if d, ok := f.Drafts[j.ID]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}
