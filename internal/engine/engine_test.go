package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/pipegate-dev/pipegate/internal/config"
	"github.com/pipegate-dev/pipegate/internal/domain/values"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, cfg ExecutionConfig) *Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, NewStageExecutor(nil, 0), logger)
}

func testPipeline(stages ...config.Stage) *config.Pipeline {
	return &config.Pipeline{
		Metadata: config.PipelineMetadata{Name: "service-ci", Version: "1.0.0"},
		Stages:   config.StagesSection{Items: stages},
	}
}

func Test_Engine_Execute_AllPass(t *testing.T) {
	engine := newTestEngine(t, DefaultExecutionConfig())

	result, err := engine.Execute(context.Background(), testPipeline(
		config.Stage{ID: "backend", Name: "Backend", Command: "true"},
		config.Stage{ID: "frontend", Name: "Frontend", Command: "true"},
	))
	require.NoError(t, err)

	assert.Equal(t, values.VerdictPass, result.Gate.Overall)
	assert.Empty(t, result.Gate.Blocking)
	assert.Equal(t, 2, result.Summary.SucceededStages)
	assert.False(t, result.RunID.IsZero())
}

func Test_Engine_Execute_RequiredFailureBlocks(t *testing.T) {
	engine := newTestEngine(t, DefaultExecutionConfig())

	result, err := engine.Execute(context.Background(), testPipeline(
		config.Stage{ID: "backend", Name: "Backend", Command: "true"},
		config.Stage{ID: "security", Name: "Security", Command: "false"},
	))
	require.NoError(t, err)

	assert.Equal(t, values.VerdictFail, result.Gate.Overall)
	assert.Equal(t, []string{"security"}, result.Gate.Blocking)
}

func Test_Engine_Execute_OptionalFailureDoesNotBlock(t *testing.T) {
	engine := newTestEngine(t, DefaultExecutionConfig())

	result, err := engine.Execute(context.Background(), testPipeline(
		config.Stage{ID: "backend", Name: "Backend", Command: "true"},
		config.Stage{ID: "docs", Name: "Docs", Command: "false", Optional: true},
	))
	require.NoError(t, err)

	assert.Equal(t, values.VerdictPass, result.Gate.Overall)
	assert.Empty(t, result.Gate.Blocking)
	assert.Equal(t, 1, result.Summary.FailedStages)
}

func Test_Engine_Execute_EmptyPipelineIsVacuousPass(t *testing.T) {
	engine := newTestEngine(t, DefaultExecutionConfig())

	result, err := engine.Execute(context.Background(), testPipeline())
	require.NoError(t, err)

	assert.Equal(t, values.VerdictPass, result.Gate.Overall)
	assert.Empty(t, result.Gate.Summary)
}

func Test_Engine_Execute_DependencyFailureSkipsDependent(t *testing.T) {
	engine := newTestEngine(t, ExecutionConfig{Parallel: false})

	result, err := engine.Execute(context.Background(), testPipeline(
		config.Stage{ID: "build", Name: "Build", Command: "false"},
		config.Stage{ID: "test", Name: "Test", Command: "true", DependsOn: []string{"build"}},
	))
	require.NoError(t, err)

	status, found := result.GetStageStatus("test")
	require.True(t, found)
	assert.Equal(t, values.StatusSkipped, status)

	// Skipped required dependent stays visible but the failure blocks
	assert.Equal(t, values.VerdictFail, result.Gate.Overall)
	assert.Equal(t, []string{"build"}, result.Gate.Blocking)
}

func Test_Engine_Execute_DependencyChainRunsInOrder(t *testing.T) {
	engine := newTestEngine(t, DefaultExecutionConfig())

	result, err := engine.Execute(context.Background(), testPipeline(
		config.Stage{ID: "build", Name: "Build", Command: "true"},
		config.Stage{ID: "test", Name: "Test", Command: "true", DependsOn: []string{"build"}},
		config.Stage{ID: "scan", Name: "Scan", Command: "true", DependsOn: []string{"test"}},
	))
	require.NoError(t, err)

	assert.Equal(t, values.VerdictPass, result.Gate.Overall)
	assert.Equal(t, 3, result.Summary.SucceededStages)

	// Summary preserves definition order even with parallel levels
	require.Len(t, result.Stages, 3)
	assert.Equal(t, "build", result.Stages[0].ID)
	assert.Equal(t, "test", result.Stages[1].ID)
	assert.Equal(t, "scan", result.Stages[2].ID)
}

func Test_Engine_Execute_CircularDependency(t *testing.T) {
	engine := newTestEngine(t, DefaultExecutionConfig())

	_, err := engine.Execute(context.Background(), testPipeline(
		config.Stage{ID: "a", Name: "A", Command: "true", DependsOn: []string{"b"}},
		config.Stage{ID: "b", Name: "B", Command: "true", DependsOn: []string{"a"}},
	))
	assert.Error(t, err)
}

func Test_Engine_Execute_StageFilter(t *testing.T) {
	cfg := DefaultExecutionConfig()
	cfg.IncludeStageIDs = []string{"backend"}
	engine := newTestEngine(t, cfg)

	result, err := engine.Execute(context.Background(), testPipeline(
		config.Stage{ID: "backend", Name: "Backend", Command: "true"},
		config.Stage{ID: "security", Name: "Security", Command: "false"},
	))
	require.NoError(t, err)

	status, _ := result.GetStageStatus("security")
	assert.Equal(t, values.StatusSkipped, status)

	// The filtered-out required stage degrades the verdict to warn
	// instead of silently passing
	assert.Equal(t, values.VerdictWarn, result.Gate.Overall)
	assert.Empty(t, result.Gate.Blocking)
}

func Test_Engine_Execute_ExcludeFilter(t *testing.T) {
	cfg := DefaultExecutionConfig()
	cfg.ExcludeStageIDs = []string{"docs"}
	engine := newTestEngine(t, cfg)

	result, err := engine.Execute(context.Background(), testPipeline(
		config.Stage{ID: "backend", Name: "Backend", Command: "true"},
		config.Stage{ID: "docs", Name: "Docs", Command: "false", Optional: true},
	))
	require.NoError(t, err)

	status, _ := result.GetStageStatus("docs")
	assert.Equal(t, values.StatusSkipped, status)
	assert.Equal(t, values.VerdictPass, result.Gate.Overall)
}

func Test_Engine_Execute_StrictEscalatesSkips(t *testing.T) {
	cfg := DefaultExecutionConfig()
	cfg.IncludeStageIDs = []string{"backend"}
	cfg.Strict = true
	engine := newTestEngine(t, cfg)

	result, err := engine.Execute(context.Background(), testPipeline(
		config.Stage{ID: "backend", Name: "Backend", Command: "true"},
		config.Stage{ID: "security", Name: "Security", Command: "true"},
	))
	require.NoError(t, err)

	assert.Equal(t, values.VerdictFail, result.Gate.Overall)
	assert.Equal(t, []string{"security"}, result.Gate.Blocking)
}

func Test_Engine_Execute_SkippedIsPass(t *testing.T) {
	cfg := DefaultExecutionConfig()
	cfg.IncludeStageIDs = []string{"backend"}
	cfg.SkippedIsPass = true
	engine := newTestEngine(t, cfg)

	result, err := engine.Execute(context.Background(), testPipeline(
		config.Stage{ID: "backend", Name: "Backend", Command: "true"},
		config.Stage{ID: "security", Name: "Security", Command: "true"},
	))
	require.NoError(t, err)

	assert.Equal(t, values.VerdictPass, result.Gate.Overall)
}

func Test_Engine_Execute_SequentialMode(t *testing.T) {
	engine := newTestEngine(t, ExecutionConfig{Parallel: false})

	result, err := engine.Execute(context.Background(), testPipeline(
		config.Stage{ID: "a", Name: "A", Command: "true"},
		config.Stage{ID: "b", Name: "B", Command: "true"},
		config.Stage{ID: "c", Name: "C", Command: "false", Optional: true},
	))
	require.NoError(t, err)

	assert.Equal(t, values.VerdictPass, result.Gate.Overall)
	assert.Equal(t, 3, result.Summary.TotalStages)
}
