package build

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/incbuild/pkg/logging"
	"github.com/ritzau/incbuild/pkg/state"
)

type recordingSink struct {
	states []*state.BuildState
}

func (s *recordingSink) SetState(st *state.BuildState) {
	s.states = append(s.states, st)
}

func TestRunnerHandsOnResults(t *testing.T) {
	f := newFixture(t)
	f.chain()

	sink := &recordingSink{}
	runner := NewRunner(f.builder, sink)
	var reports []*Report
	runner.OnReport = func(r *Report) { reports = append(reports, r) }

	report, err := runner.Run(context.Background(), "initial build")
	require.NoError(t, err)

	require.Len(t, sink.states, 1)
	assert.Same(t, report.State, sink.states[0])
	require.Len(t, reports, 1)
	assert.NotEmpty(t, report.BuildID)

	second, err := runner.Run(context.Background(), "no changes")
	require.NoError(t, err)
	assert.NotEqual(t, report.BuildID, second.BuildID)
}

func TestBuildIDFromContext(t *testing.T) {
	f := newFixture(t)
	f.chain()

	ctx := logging.WithBuildID(context.Background(), "fixed-build-id")
	report, err := f.builder.Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fixed-build-id", report.BuildID)
}

func TestRunnerSkipsSinkOnFailure(t *testing.T) {
	f := newFixture(t)
	f.chain()
	f.stderr = "Ghost.java:1: error: boom\nx\n^\n"

	sink := &recordingSink{}
	_, err := NewRunner(f.builder, sink).Run(context.Background(), "initial build")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, sink.states)
}
