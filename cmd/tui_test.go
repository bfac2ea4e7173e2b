package main

import (
	"context"
	"errors"
	"io"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kass/go-fissura/pkg/detection"
	"github.com/kass/go-fissura/pkg/models"
	"github.com/kass/go-fissura/pkg/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func update(t *testing.T, m progressModel, msg tea.Msg) (progressModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	pm, ok := next.(progressModel)
	require.True(t, ok)
	return pm, cmd
}

func TestProgressModelTracksStages(t *testing.T) {
	m := newProgressModel("/in", func() {})
	assert.Contains(t, m.View(), "Scanning")

	m, _ = update(t, m, progressMsg{Stage: pipeline.StageExtract, Done: 3, Total: 10})
	m, _ = update(t, m, progressMsg{Stage: pipeline.StageExtract, Done: 2, Total: 10})
	assert.Equal(t, 3, m.done)
	assert.Contains(t, m.View(), "3/10")

	m, _ = update(t, m, progressMsg{Stage: pipeline.StageCluster})
	assert.Equal(t, pipeline.StageCluster, m.stage)
	assert.Equal(t, 10, m.total)

	result := &pipeline.Result{}
	m, cmd := update(t, m, runDoneMsg{result: result})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Same(t, result, m.result)
	assert.NoError(t, m.err)
}

func TestProgressModelCancels(t *testing.T) {
	cancelled := false
	m := newProgressModel("/in", func() { cancelled = true })

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.Nil(t, cmd)
	assert.True(t, cancelled)
	assert.Contains(t, m.View(), "Cancelling")

	m, cmd = update(t, m, runDoneMsg{err: errors.New("context canceled")})
	require.NotNil(t, cmd)
	assert.EqualError(t, m.err, "context canceled")
}

func TestRunWithProgressWaitsForRun(t *testing.T) {
	partial := &pipeline.Result{}
	partial.Stats.TotalImages = 4

	tests := []struct {
		name    string
		cancel  bool
		run     func(context.Context, func(pipeline.Progress)) (*pipeline.Result, error)
		want    *pipeline.Result
		wantErr error
	}{
		{
			name: "completed run",
			run: func(_ context.Context, progress func(pipeline.Progress)) (*pipeline.Result, error) {
				progress(pipeline.Progress{Stage: pipeline.StageExtract, Done: 1, Total: 4})
				return partial, nil
			},
			want: partial,
		},
		{
			name:   "parent cancelled",
			cancel: true,
			run: func(ctx context.Context, _ func(pipeline.Progress)) (*pipeline.Result, error) {
				<-ctx.Done()
				return partial, ctx.Err()
			},
			want:    partial,
			wantErr: context.Canceled,
		},
		{
			name:   "parent cancelled and run ignores it",
			cancel: true,
			run: func(ctx context.Context, _ func(pipeline.Progress)) (*pipeline.Result, error) {
				<-ctx.Done()
				return partial, nil
			},
			want:    partial,
			wantErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancel {
				cancel()
			}

			returned := false
			run := func(ctx context.Context, progress func(pipeline.Progress)) (*pipeline.Result, error) {
				defer func() { returned = true }()
				return tt.run(ctx, progress)
			}

			result, err := runWithProgress(ctx, "/in", run, tea.WithInput(nil), tea.WithOutput(io.Discard))
			assert.True(t, returned)
			assert.Same(t, tt.want, result)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSortedLocations(t *testing.T) {
	grouped := map[detection.Location][]models.ImageAnalysis{
		{Building: "Predio-2", Facade: models.FacadeNorth}: nil,
		{Building: "Predio-1", Facade: models.FacadeSouth}: nil,
		{Building: "Predio-1", Facade: models.FacadeEast}:  nil,
	}
	assert.Equal(t, []detection.Location{
		{Building: "Predio-1", Facade: models.FacadeEast},
		{Building: "Predio-1", Facade: models.FacadeSouth},
		{Building: "Predio-2", Facade: models.FacadeNorth},
	}, sortedLocations(grouped))
}

func TestRenderStatsListsBuildingsAndProblems(t *testing.T) {
	b := &models.Building{ID: "Predio-1", AllImages: make([]models.ImageMetadata, 2)}
	b.AddToFacade(models.FacadeNorth, models.ImageMetadata{})
	b.AddToFacade(models.FacadeNorth, models.ImageMetadata{})

	result := &pipeline.Result{Buildings: []*models.Building{b}}
	result.Stats.TotalImages = 3
	result.Stats.BuildingGroups = 1
	for i := 0; i < maxListedErrors+2; i++ {
		result.Stats.AddFailure(models.ExtractionFailure, "bad file")
	}

	out := renderStats(result, 0)
	assert.Contains(t, out, "Predio-1")
	assert.Contains(t, out, "Norte:2")
	assert.Contains(t, out, "12 problems")
	assert.Contains(t, out, "and 2 more")
}
