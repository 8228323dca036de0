package build

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ritzau/incbuild/pkg/logging"
	"github.com/ritzau/incbuild/pkg/state"
)

// StateSink receives the state of every successful build
type StateSink interface {
	SetState(s *state.BuildState)
}

// Runner serializes builds triggered from several places (the initial
// build, file changes) and hands results on
type Runner struct {
	Builder *Builder
	Sink    StateSink
	// OnReport is called with every finished report
	OnReport func(*Report)

	mu sync.Mutex
}

// NewRunner creates a runner over builder
func NewRunner(builder *Builder, sink StateSink) *Runner {
	return &Runner{Builder: builder, Sink: sink}
}

// Run executes one build; reason is logged, e.g. "initial build" or
// "3 files changed"
func (r *Runner) Run(ctx context.Context, reason string) (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx = logging.WithBuildID(ctx, uuid.NewString())
	logging.InfoContext(ctx, "starting build", "reason", reason)

	report, err := r.Builder.Build(ctx)
	if err != nil {
		logging.ErrorContext(ctx, "build aborted", "reason", reason, "error", err)
		return nil, err
	}

	if r.Sink != nil {
		r.Sink.SetState(report.State)
	}
	if r.OnReport != nil {
		r.OnReport(report)
	}
	return report, nil
}
