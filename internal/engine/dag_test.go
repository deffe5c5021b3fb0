package engine

import (
	"testing"

	"github.com/pipegate-dev/pipegate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stage(id string, deps ...string) config.Stage {
	return config.Stage{ID: id, Name: id, Command: "true", DependsOn: deps}
}

func levelIDs(level StageLevel) []string {
	ids := make([]string, 0, len(level.Stages))
	for _, s := range level.Stages {
		ids = append(ids, s.ID)
	}
	return ids
}

func Test_BuildStageDAG_NoDependencies(t *testing.T) {
	levels, err := BuildStageDAG([]config.Stage{stage("a"), stage("b"), stage("c")})
	require.NoError(t, err)

	require.Len(t, levels, 1)
	assert.Equal(t, 0, levels[0].Level)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, levelIDs(levels[0]))
}

func Test_BuildStageDAG_Chain(t *testing.T) {
	levels, err := BuildStageDAG([]config.Stage{
		stage("build"),
		stage("test", "build"),
		stage("scan", "test"),
	})
	require.NoError(t, err)

	require.Len(t, levels, 3)
	assert.Equal(t, []string{"build"}, levelIDs(levels[0]))
	assert.Equal(t, []string{"test"}, levelIDs(levels[1]))
	assert.Equal(t, []string{"scan"}, levelIDs(levels[2]))
}

func Test_BuildStageDAG_Diamond(t *testing.T) {
	levels, err := BuildStageDAG([]config.Stage{
		stage("build"),
		stage("unit", "build"),
		stage("lint", "build"),
		stage("gate", "unit", "lint"),
	})
	require.NoError(t, err)

	require.Len(t, levels, 3)
	assert.Equal(t, []string{"build"}, levelIDs(levels[0]))
	assert.ElementsMatch(t, []string{"unit", "lint"}, levelIDs(levels[1]))
	assert.Equal(t, []string{"gate"}, levelIDs(levels[2]))
}

func Test_BuildStageDAG_Cycle(t *testing.T) {
	_, err := BuildStageDAG([]config.Stage{
		stage("a", "b"),
		stage("b", "a"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular dependency")
}

func Test_BuildStageDAG_MissingDependency(t *testing.T) {
	_, err := BuildStageDAG([]config.Stage{stage("a", "ghost")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-existent stage")
}

func Test_BuildStageDAG_Empty(t *testing.T) {
	levels, err := BuildStageDAG(nil)
	require.NoError(t, err)
	assert.Empty(t, levels)
}
