package scheduler

import (
	"context"
	"slices"

	"github.com/ClusterLabs/pcs-sub012/internal/pool"
	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

type cancelCall struct {
	ident  string
	reason types.FinishType
}

// fakePool records submissions and answers Cancel from a table.
type fakePool struct {
	capacity  int
	submitted []types.WorkerCommand
	submitErr error
	outcomes  map[string]pool.CancelOutcome
	cancels   []cancelCall
	closed    bool
}

func newFakePool(capacity int) *fakePool {
	return &fakePool{capacity: capacity, outcomes: map[string]pool.CancelOutcome{}}
}

func (p *fakePool) Capacity() int { return p.capacity }

func (p *fakePool) Submit(wc types.WorkerCommand) error {
	if p.submitErr != nil {
		return p.submitErr
	}
	p.capacity--
	p.submitted = append(p.submitted, wc)
	return nil
}

func (p *fakePool) Cancel(ident string, reason types.FinishType) (pool.CancelOutcome, error) {
	p.cancels = append(p.cancels, cancelCall{ident: ident, reason: reason})
	return p.outcomes[ident], nil
}

func (p *fakePool) Close(context.Context) error {
	p.closed = true
	return nil
}

func (p *fakePool) submittedIdents() []string {
	idents := make([]string, 0, len(p.submitted))
	for _, wc := range p.submitted {
		idents = append(idents, wc.TaskIdent)
	}
	return idents
}

func (p *fakePool) wasSubmitted(ident string) bool {
	return slices.Contains(p.submittedIdents(), ident)
}

type memRecorder struct {
	records []types.TaskDTO
}

func (r *memRecorder) Record(dto types.TaskDTO) { r.records = append(r.records, dto) }
