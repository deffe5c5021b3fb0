package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Variable pattern: {{ .vars.key }}
var varPattern = regexp.MustCompile(`\{\{\s*\.vars\.([a-zA-Z0-9_.]+)\s*\}\}`)

// Environment pattern: {{ env "NAME" }}
var envPattern = regexp.MustCompile(`\{\{\s*env\s+"([a-zA-Z0-9_]+)"\s*\}\}`)

// SubstituteVariables performs variable substitution in a pipeline.
// It replaces {{ .vars.key }} patterns with values from the pipeline's vars
// map (nested paths like {{ .vars.registry.host }} are supported) and
// {{ env "NAME" }} patterns with process environment values. Substitution
// covers the fields handed to external tools: command, args, dir, env and
// the stage description. Returns an error if a referenced variable is not
// defined. Modifies the pipeline in place.
func SubstituteVariables(pipeline *Pipeline) error {
	for i := range pipeline.Stages.Items {
		stage := &pipeline.Stages.Items[i]

		fields := []*string{&stage.Command, &stage.Dir, &stage.Description}
		for _, field := range fields {
			substituted, err := substituteInString(*field, pipeline.Vars)
			if err != nil {
				return fmt.Errorf("stage %s: %w", stage.ID, err)
			}
			*field = substituted
		}

		for j := range stage.Args {
			substituted, err := substituteInString(stage.Args[j], pipeline.Vars)
			if err != nil {
				return fmt.Errorf("stage %s, arg %d: %w", stage.ID, j, err)
			}
			stage.Args[j] = substituted
		}

		for key, value := range stage.Env {
			substituted, err := substituteInString(value, pipeline.Vars)
			if err != nil {
				return fmt.Errorf("stage %s, env %s: %w", stage.ID, key, err)
			}
			stage.Env[key] = substituted
		}
	}

	return nil
}

// substituteInString replaces patterns with values.
func substituteInString(str string, vars map[string]interface{}) (string, error) {
	var lastErr error

	// 1. Substitute variables: {{ .vars.key }}
	result := varPattern.ReplaceAllStringFunc(str, func(match string) string {
		submatches := varPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			lastErr = fmt.Errorf("invalid variable pattern: %s", match)
			return match
		}

		value, err := lookupVar(vars, submatches[1])
		if err != nil {
			lastErr = err
			return match
		}

		return fmt.Sprintf("%v", value)
	})

	if lastErr != nil {
		return "", lastErr
	}

	// 2. Substitute environment references: {{ env "NAME" }}
	result = envPattern.ReplaceAllStringFunc(result, func(match string) string {
		submatches := envPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			lastErr = fmt.Errorf("invalid env pattern: %s", match)
			return match
		}

		value, ok := os.LookupEnv(submatches[1])
		if !ok {
			lastErr = fmt.Errorf("environment variable not set: %s", submatches[1])
			return match
		}

		return value
	})

	if lastErr != nil {
		return "", lastErr
	}

	return result, nil
}

// lookupVar looks up a variable value by path (e.g., "registry.host").
// Supports nested paths using dot notation.
func lookupVar(vars map[string]interface{}, path string) (interface{}, error) {
	parts := strings.Split(path, ".")
	current := interface{}(vars)

	for i, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("variable path %s: cannot access %s (not a map)", path, strings.Join(parts[:i+1], "."))
		}

		value, exists := m[part]
		if !exists {
			return nil, fmt.Errorf("variable not found: %s", path)
		}

		current = value
	}

	switch v := current.(type) {
	case string, int, int64, uint64, float64, bool:
		return v, nil
	default:
		return nil, fmt.Errorf("variable %s has non-scalar value", path)
	}
}
