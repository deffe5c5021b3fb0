package engine

import (
	"fmt"

	"github.com/pipegate-dev/pipegate/internal/config"
)

// StageLevel represents a batch of stages that can run in parallel.
// Level 0 = no dependencies, Level 1 = depends on Level 0, etc.
type StageLevel struct {
	Level  int
	Stages []config.Stage
}

// BuildStageDAG builds a dependency graph and returns stages grouped by level.
// Uses Kahn's algorithm for topological sorting.
//
// Returns an error if a circular dependency is detected or a dependency
// references a non-existent stage.
func BuildStageDAG(stages []config.Stage) ([]StageLevel, error) {
	stageMap := make(map[string]config.Stage)
	inDegree := make(map[string]int)
	dependents := make(map[string][]string)

	for _, stage := range stages {
		stageMap[stage.ID] = stage
		inDegree[stage.ID] = 0
	}

	for _, stage := range stages {
		for _, depID := range stage.DependsOn {
			if _, exists := stageMap[depID]; !exists {
				return nil, fmt.Errorf("stage %s depends on non-existent stage %s", stage.ID, depID)
			}

			inDegree[stage.ID]++
			dependents[depID] = append(dependents[depID], stage.ID)
		}
	}

	var levels []StageLevel
	currentLevel := 0
	processed := make(map[string]bool)

	for len(processed) < len(stages) {
		// Find all stages with inDegree == 0 (no unmet dependencies)
		var levelStages []config.Stage

		for _, stage := range stages {
			if processed[stage.ID] {
				continue
			}

			if inDegree[stage.ID] == 0 {
				levelStages = append(levelStages, stage)
			}
		}

		if len(levelStages) == 0 {
			// No stage has inDegree 0, but not all are processed: cycle.
			var unprocessed []string
			for _, stage := range stages {
				if !processed[stage.ID] {
					unprocessed = append(unprocessed, stage.ID)
				}
			}
			return nil, fmt.Errorf("circular dependency detected among stages: %v", unprocessed)
		}

		levels = append(levels, StageLevel{
			Level:  currentLevel,
			Stages: levelStages,
		})

		for _, stage := range levelStages {
			processed[stage.ID] = true

			for _, depID := range dependents[stage.ID] {
				inDegree[depID]--
			}
		}

		currentLevel++
	}

	return levels, nil
}
